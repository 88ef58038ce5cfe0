package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// BookingStatus represents the status of a booking
type BookingStatus string

const (
	BookingStatusConfirmed BookingStatus = "CONFIRMED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
)

// Booking represents a confirmed reservation of one or more seats on a bus
type Booking struct {
	ID          int64         `json:"id" db:"id"`
	UserID      uuid.UUID     `json:"user_id" db:"user_id"`
	BusID       int64         `json:"bus_id" db:"bus_id"`
	BookingTime time.Time     `json:"booking_time" db:"booking_time"`
	Status      BookingStatus `json:"status" db:"status"`
	Passengers  []Passenger   `json:"passengers" db:"-"`
}

// Passenger is a named traveller occupying one seat of a booking
type Passenger struct {
	ID         int64  `json:"id" db:"id"`
	BookingID  int64  `json:"booking_id" db:"booking_id"`
	Name       string `json:"name" db:"name"`
	Age        int    `json:"age" db:"age"`
	SeatNumber string `json:"seat_number" db:"seat_number"`
}

// PassengerRequest is one traveller in a booking request
type PassengerRequest struct {
	Name       string `json:"name"`
	Age        int    `json:"age"`
	SeatNumber string `json:"seat_number"`
}

// CreateBookingRequest represents the request to reserve seats on a bus
type CreateBookingRequest struct {
	BusID      int64              `json:"bus_id"`
	Passengers []PassengerRequest `json:"passengers"`
}

// Validate checks the request shape. It normalises names and seat numbers by
// trimming surrounding whitespace.
func (r *CreateBookingRequest) Validate() error {
	if r.BusID <= 0 {
		return errors.New("bus_id is required")
	}

	if len(r.Passengers) == 0 {
		return errors.New("at least one passenger is required")
	}

	seen := make(map[string]struct{}, len(r.Passengers))
	for i := range r.Passengers {
		p := &r.Passengers[i]
		p.Name = strings.TrimSpace(p.Name)
		p.SeatNumber = strings.TrimSpace(p.SeatNumber)

		if p.Name == "" {
			return fmt.Errorf("passengers[%d].name is required", i)
		}
		if p.Age < 0 {
			return fmt.Errorf("passengers[%d].age must not be negative", i)
		}
		if p.SeatNumber == "" {
			return fmt.Errorf("passengers[%d].seat_number is required", i)
		}
		if _, dup := seen[p.SeatNumber]; dup {
			return fmt.Errorf("seat %s is requested more than once", p.SeatNumber)
		}
		seen[p.SeatNumber] = struct{}{}
	}

	return nil
}

// SeatNumbers returns the requested seats in request order
func (r *CreateBookingRequest) SeatNumbers() []string {
	seats := make([]string, len(r.Passengers))
	for i, p := range r.Passengers {
		seats[i] = p.SeatNumber
	}
	return seats
}

// BookingHistoryResponse is the payload of a user's booking history
type BookingHistoryResponse struct {
	Bookings []Booking `json:"bookings"`
	Count    int       `json:"count"`
}
