package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/smarttransit/bus-booking-backend/internal/config"
	"github.com/smarttransit/bus-booking-backend/internal/models"
)

const (
	demoFrom     = "Chennai"
	demoTo       = "Bangalore"
	demoPrice    = 850
	demoSeats    = 40
	demoTripTime = 6 * time.Hour
)

// SeedDemoData creates the admin account when it is missing and one demo bus
// when the catalog is empty. Running it again changes nothing.
func SeedDemoData(ctx context.Context, users *UserService, buses *BusService, cfg config.SeedConfig, now time.Time, logger *logrus.Logger) error {
	created, err := users.EnsureAdmin(ctx, "Admin", cfg.AdminEmail, cfg.AdminPassword)
	if err != nil {
		return fmt.Errorf("failed to seed admin user: %w", err)
	}
	if created {
		logger.WithField("email", cfg.AdminEmail).Info("Seeded admin user")
	}

	count, err := buses.CountBuses(ctx)
	if err != nil {
		return fmt.Errorf("failed to seed buses: %w", err)
	}
	if count > 0 {
		return nil
	}

	departure := now.Add(24 * time.Hour).Truncate(time.Minute)
	bus, err := buses.CreateBus(ctx, models.CreateBusRequest{
		FromLocation:  demoFrom,
		ToLocation:    demoTo,
		DepartureTime: departure,
		ArrivalTime:   departure.Add(demoTripTime),
		Price:         demoPrice,
		TotalSeats:    demoSeats,
	})
	if err != nil {
		return fmt.Errorf("failed to seed demo bus: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"bus_id":    bus.ID,
		"departure": bus.DepartureTime,
	}).Info("Seeded demo bus")
	return nil
}
