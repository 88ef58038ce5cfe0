package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/bus-booking-backend/internal/clock"
	"github.com/smarttransit/bus-booking-backend/internal/config"
	"github.com/smarttransit/bus-booking-backend/internal/database"
	"github.com/smarttransit/bus-booking-backend/internal/handlers"
	"github.com/smarttransit/bus-booking-backend/internal/services"
	"github.com/smarttransit/bus-booking-backend/pkg/jwt"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

// stores bundles the storage contracts the services need
type stores struct {
	users    services.UserStore
	buses    services.BusCatalog
	bookings services.BookingStore
	pinger   handlers.Pinger
	close    func() error
}

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Info("Starting SmartTransit Bus Booking Backend")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	st, err := openStores(cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to open storage: %v", err)
	}
	defer st.close()

	logger.Info("Initializing services...")
	clk := clock.NewSystem()
	jwtService := jwt.NewService(
		cfg.JWT.Secret,
		cfg.JWT.RefreshSecret,
		cfg.JWT.AccessTokenExpiry,
		cfg.JWT.RefreshTokenExpiry,
	)
	userService := services.NewUserService(st.users, jwtService, cfg.Security.BcryptCost, logger)
	busService := services.NewBusService(st.buses, logger)
	bookingService := services.NewBookingService(st.users, st.bookings, clk, logger)

	if cfg.Seed.Enabled {
		seedCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := services.SeedDemoData(seedCtx, userService, busService, cfg.Seed, clk.Now(), logger)
		cancel()
		if err != nil {
			logger.Fatalf("Failed to seed demo data: %v", err)
		}
	}
	logger.Info("Services initialized")

	router := handlers.NewRouter(cfg, handlers.Dependencies{
		Users:    userService,
		Buses:    busService,
		Bookings: bookingService,
		JWT:      jwtService,
		Store:    st.pinger,
		Logger:   logger,
		Version:  version,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Infof("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited successfully")
}

func openStores(cfg *config.Config, logger *logrus.Logger) (*stores, error) {
	if cfg.Storage.Driver == config.StorageDriverMemory {
		logger.Warn("Using in-memory storage; data is lost on restart")
		mem := database.NewMemoryStore(logger)
		return &stores{
			users:    mem,
			buses:    mem,
			bookings: mem,
			pinger:   mem,
			close:    func() error { return nil },
		}, nil
	}

	logger.Info("Connecting to database...")
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	logger.WithField("driver", cfg.Database.Driver).Info("Database connection established")

	if cfg.Database.AutoMigrate {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := database.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		logger.Info("Database migrations applied")
	}

	return &stores{
		users:    database.NewUserRepository(db),
		buses:    database.NewBusRepository(db),
		bookings: database.NewBookingRepository(db),
		pinger:   db,
		close:    db.Close,
	}, nil
}
