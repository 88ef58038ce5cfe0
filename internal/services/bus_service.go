package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/smarttransit/bus-booking-backend/internal/database"
	"github.com/smarttransit/bus-booking-backend/internal/models"
)

// BusCatalog stores the buses that can be booked
type BusCatalog interface {
	CreateBus(ctx context.Context, bus *models.Bus) error
	GetBusByID(ctx context.Context, id int64) (*models.Bus, error)
	ListBuses(ctx context.Context) ([]models.Bus, error)
	SearchBuses(ctx context.Context, from, to string) ([]models.Bus, error)
	CountBuses(ctx context.Context) (int, error)
}

// BusService handles bus catalog lookups and additions
type BusService struct {
	buses  BusCatalog
	logger *logrus.Logger
}

// NewBusService creates a new BusService
func NewBusService(buses BusCatalog, logger *logrus.Logger) *BusService {
	return &BusService{buses: buses, logger: logger}
}

// ListBuses filters by route when both ends are given, otherwise lists everything
func (s *BusService) ListBuses(ctx context.Context, from, to string) ([]models.Bus, error) {
	from = strings.TrimSpace(from)
	to = strings.TrimSpace(to)

	var (
		buses []models.Bus
		err   error
	)
	if from != "" && to != "" {
		buses, err = s.buses.SearchBuses(ctx, from, to)
	} else {
		buses, err = s.buses.ListBuses(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list buses: %w", err)
	}
	return buses, nil
}

// GetBus returns a single bus
func (s *BusService) GetBus(ctx context.Context, id int64) (*models.Bus, error) {
	if id <= 0 {
		return nil, &NotFoundError{Entity: "bus"}
	}

	bus, err := s.buses.GetBusByID(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, &NotFoundError{Entity: "bus"}
		}
		return nil, fmt.Errorf("failed to get bus: %w", err)
	}
	return bus, nil
}

// CreateBus validates and adds a bus with all of its seats available
func (s *BusService) CreateBus(ctx context.Context, req models.CreateBusRequest) (*models.Bus, error) {
	if err := req.Validate(); err != nil {
		return nil, invalidRequest(err)
	}

	bus := req.ToBus()
	if err := s.buses.CreateBus(ctx, bus); err != nil {
		return nil, fmt.Errorf("failed to create bus: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"bus_id": bus.ID,
		"route":  bus.FromLocation + " -> " + bus.ToLocation,
		"seats":  bus.AvailableSeats,
	}).Info("Bus added to catalog")

	return bus, nil
}

// CountBuses returns the catalog size
func (s *BusService) CountBuses(ctx context.Context) (int, error) {
	count, err := s.buses.CountBuses(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count buses: %w", err)
	}
	return count, nil
}
