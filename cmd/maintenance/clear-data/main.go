package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/smarttransit/bus-booking-backend/internal/config"
	"github.com/smarttransit/bus-booking-backend/internal/database"
)

func main() {
	var (
		dbURLFlag   string
		driverFlag  string
		withBuses   bool
		withUsers   bool
		confirmFlag bool
	)
	flag.StringVar(&dbURLFlag, "database-url", "", "PostgreSQL connection string (overrides DATABASE_URL)")
	flag.StringVar(&driverFlag, "driver", "", "database/sql driver: postgres or pgx (overrides DATABASE_DRIVER)")
	flag.BoolVar(&withBuses, "buses", false, "also clear the bus catalog")
	flag.BoolVar(&withUsers, "users", false, "also clear user accounts")
	flag.BoolVar(&confirmFlag, "yes", false, "skip the confirmation prompt")
	flag.Parse()

	// .env is optional; it keeps secrets off the command line
	_ = godotenv.Load()

	dbURL := dbURLFlag
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set and -database-url was not provided")
	}

	driver := driverFlag
	if driver == "" {
		driver = os.Getenv("DATABASE_DRIVER")
	}

	if !confirmFlag {
		fmt.Print("This deletes all bookings. Type 'yes' to continue: ")
		var answer string
		if _, err := fmt.Scanln(&answer); err != nil || answer != "yes" {
			fmt.Println("Aborted.")
			return
		}
	}

	db, err := database.NewConnection(config.DatabaseConfig{
		Driver:             driver,
		URL:                dbURL,
		MaxConnections:     2,
		MaxIdleConnections: 1,
	})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	counts, err := database.ClearData(ctx, db, withBuses, withUsers)
	if err != nil {
		log.Fatalf("failed to clear data: %v", err)
	}

	fmt.Println("Data cleared (tables truncated, identities reset). Post-clear row counts:")
	for _, c := range counts {
		fmt.Printf("  %s: %d\n", c.Table, c.Rows)
	}
}
