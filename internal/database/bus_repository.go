package database

import (
	"context"
	"fmt"

	"github.com/smarttransit/bus-booking-backend/internal/models"
)

const busColumns = `id, from_location, to_location, departure_time, arrival_time, price, available_seats`

// BusRepository handles database operations for the bus catalog
type BusRepository struct {
	db DB
}

// NewBusRepository creates a new BusRepository
func NewBusRepository(db DB) *BusRepository {
	return &BusRepository{db: db}
}

// CreateBus inserts a bus and sets its generated ID
func (r *BusRepository) CreateBus(ctx context.Context, bus *models.Bus) error {
	query := `
		INSERT INTO buses (from_location, to_location, departure_time, arrival_time, price, available_seats)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	err := conn(ctx, r.db).QueryRowxContext(ctx, query,
		bus.FromLocation, bus.ToLocation, bus.DepartureTime, bus.ArrivalTime, bus.Price, bus.AvailableSeats,
	).Scan(&bus.ID)
	if err != nil {
		return fmt.Errorf("failed to create bus: %w", translate(err))
	}
	return nil
}

// GetBusByID retrieves a bus by ID
func (r *BusRepository) GetBusByID(ctx context.Context, id int64) (*models.Bus, error) {
	var bus models.Bus
	query := `SELECT ` + busColumns + ` FROM buses WHERE id = $1`

	if err := conn(ctx, r.db).GetContext(ctx, &bus, query, id); err != nil {
		return nil, fmt.Errorf("failed to get bus: %w", translate(err))
	}
	return &bus, nil
}

// ListBuses returns every bus ordered by departure
func (r *BusRepository) ListBuses(ctx context.Context) ([]models.Bus, error) {
	buses := []models.Bus{}
	query := `SELECT ` + busColumns + ` FROM buses ORDER BY departure_time, id`

	if err := conn(ctx, r.db).SelectContext(ctx, &buses, query); err != nil {
		return nil, fmt.Errorf("failed to list buses: %w", err)
	}
	return buses, nil
}

// SearchBuses returns buses on an exact route, ignoring case
func (r *BusRepository) SearchBuses(ctx context.Context, from, to string) ([]models.Bus, error) {
	buses := []models.Bus{}
	query := `
		SELECT ` + busColumns + `
		FROM buses
		WHERE LOWER(from_location) = LOWER($1) AND LOWER(to_location) = LOWER($2)
		ORDER BY departure_time, id
	`

	if err := conn(ctx, r.db).SelectContext(ctx, &buses, query, from, to); err != nil {
		return nil, fmt.Errorf("failed to search buses: %w", err)
	}
	return buses, nil
}

// CountBuses returns the number of buses in the catalog
func (r *BusRepository) CountBuses(ctx context.Context) (int, error) {
	var count int
	if err := conn(ctx, r.db).GetContext(ctx, &count, `SELECT COUNT(*) FROM buses`); err != nil {
		return 0, fmt.Errorf("failed to count buses: %w", err)
	}
	return count, nil
}
