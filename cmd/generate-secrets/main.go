package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/smarttransit/bus-booking-backend/internal/utils"
)

func main() {
	size := flag.Int("bytes", utils.MinSecretBytes, "random bytes per secret")
	flag.Parse()

	accessSecret, refreshSecret, err := utils.GenerateJWTSecrets(*size)
	if err != nil {
		log.Fatalf("Failed to generate secrets: %v", err)
	}

	fmt.Println("# JWT signing secrets for the bus booking backend")
	fmt.Println("# Add these to your .env file; never commit them to version control")
	fmt.Printf("JWT_SECRET=%s\n", accessSecret)
	fmt.Printf("JWT_REFRESH_SECRET=%s\n", refreshSecret)
}
