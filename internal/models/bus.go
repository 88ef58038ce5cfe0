package models

import (
	"errors"
	"strings"
	"time"
)

// Bus represents a scheduled intercity bus departure
type Bus struct {
	ID             int64     `json:"id" db:"id"`
	FromLocation   string    `json:"from_location" db:"from_location"`
	ToLocation     string    `json:"to_location" db:"to_location"`
	DepartureTime  time.Time `json:"departure_time" db:"departure_time"`
	ArrivalTime    time.Time `json:"arrival_time" db:"arrival_time"`
	Price          float64   `json:"price" db:"price"`
	AvailableSeats int       `json:"available_seats" db:"available_seats"`
}

// CreateBusRequest represents the request to add a bus to the catalog
type CreateBusRequest struct {
	FromLocation  string    `json:"from_location" binding:"required"`
	ToLocation    string    `json:"to_location" binding:"required"`
	DepartureTime time.Time `json:"departure_time" binding:"required"`
	ArrivalTime   time.Time `json:"arrival_time" binding:"required"`
	Price         float64   `json:"price"`
	TotalSeats    int       `json:"total_seats" binding:"required"`
}

// Validate validates the create bus request
func (r *CreateBusRequest) Validate() error {
	r.FromLocation = strings.TrimSpace(r.FromLocation)
	r.ToLocation = strings.TrimSpace(r.ToLocation)

	if r.FromLocation == "" || r.ToLocation == "" {
		return errors.New("from_location and to_location are required")
	}

	if strings.EqualFold(r.FromLocation, r.ToLocation) {
		return errors.New("from_location and to_location must differ")
	}

	if !r.ArrivalTime.After(r.DepartureTime) {
		return errors.New("arrival_time must be after departure_time")
	}

	if r.Price < 0 {
		return errors.New("price must not be negative")
	}

	if r.TotalSeats <= 0 {
		return errors.New("total_seats must be at least 1")
	}

	return nil
}

// ToBus builds the catalog record for a validated request
func (r *CreateBusRequest) ToBus() *Bus {
	return &Bus{
		FromLocation:   r.FromLocation,
		ToLocation:     r.ToLocation,
		DepartureTime:  r.DepartureTime,
		ArrivalTime:    r.ArrivalTime,
		Price:          r.Price,
		AvailableSeats: r.TotalSeats,
	}
}

// HasCapacityFor reports whether n more seats can be sold on the bus
func (b *Bus) HasCapacityFor(n int) bool {
	return b.AvailableSeats >= n
}
