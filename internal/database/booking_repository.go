package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/smarttransit/bus-booking-backend/internal/models"
)

// BookingRepository handles bookings, their passengers and the seat counter
// of the booked bus.
type BookingRepository struct {
	db DB
}

// NewBookingRepository creates a new BookingRepository
func NewBookingRepository(db DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// WithTx runs fn in a database transaction
func (r *BookingRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return WithTx(ctx, r.db, fn)
}

// GetBusForUpdate loads a bus and locks its row until the surrounding
// transaction ends. Concurrent reservations on the same bus queue here.
func (r *BookingRepository) GetBusForUpdate(ctx context.Context, busID int64) (*models.Bus, error) {
	var bus models.Bus
	query := `SELECT ` + busColumns + ` FROM buses WHERE id = $1 FOR UPDATE`

	if err := conn(ctx, r.db).GetContext(ctx, &bus, query, busID); err != nil {
		return nil, fmt.Errorf("failed to lock bus: %w", translate(err))
	}
	return &bus, nil
}

// GetOccupiedSeats returns the seat numbers held by any booking on the bus,
// whatever that booking's status.
func (r *BookingRepository) GetOccupiedSeats(ctx context.Context, busID int64) ([]string, error) {
	seats := []string{}
	query := `
		SELECT p.seat_number
		FROM passengers p
		INNER JOIN bookings b ON b.id = p.booking_id
		WHERE b.bus_id = $1
	`

	if err := conn(ctx, r.db).SelectContext(ctx, &seats, query, busID); err != nil {
		return nil, fmt.Errorf("failed to get occupied seats: %w", err)
	}
	return seats, nil
}

// CreateBooking inserts a booking row and sets its generated ID
func (r *BookingRepository) CreateBooking(ctx context.Context, booking *models.Booking) error {
	query := `
		INSERT INTO bookings (user_id, bus_id, booking_time, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	err := conn(ctx, r.db).QueryRowxContext(ctx, query,
		booking.UserID, booking.BusID, booking.BookingTime, booking.Status,
	).Scan(&booking.ID)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", translate(err))
	}
	return nil
}

// CreatePassenger inserts a passenger row and sets its generated ID
func (r *BookingRepository) CreatePassenger(ctx context.Context, passenger *models.Passenger) error {
	query := `
		INSERT INTO passengers (booking_id, name, age, seat_number)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	err := conn(ctx, r.db).QueryRowxContext(ctx, query,
		passenger.BookingID, passenger.Name, passenger.Age, passenger.SeatNumber,
	).Scan(&passenger.ID)
	if err != nil {
		return fmt.Errorf("failed to create passenger: %w", translate(err))
	}
	return nil
}

// DecrementAvailableSeats takes n seats off the bus. It refuses to go below
// zero even when the caller skipped the row lock.
func (r *BookingRepository) DecrementAvailableSeats(ctx context.Context, busID int64, n int) error {
	query := `
		UPDATE buses
		SET available_seats = available_seats - $2
		WHERE id = $1 AND available_seats >= $2
	`

	result, err := conn(ctx, r.db).ExecContext(ctx, query, busID, n)
	if err != nil {
		return fmt.Errorf("failed to decrement available seats: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return ErrInsufficientSeats
	}
	return nil
}

// GetBookingsByUserID returns the user's bookings, newest first, each with its
// passengers.
func (r *BookingRepository) GetBookingsByUserID(ctx context.Context, userID uuid.UUID) ([]models.Booking, error) {
	q := conn(ctx, r.db)

	bookings := []models.Booking{}
	query := `
		SELECT id, user_id, bus_id, booking_time, status
		FROM bookings
		WHERE user_id = $1
		ORDER BY booking_time DESC, id DESC
	`
	if err := q.SelectContext(ctx, &bookings, query, userID); err != nil {
		return nil, fmt.Errorf("failed to get bookings by user: %w", err)
	}
	if len(bookings) == 0 {
		return bookings, nil
	}

	ids := make([]int64, len(bookings))
	for i, b := range bookings {
		ids[i] = b.ID
	}

	var passengers []models.Passenger
	passengerQuery := `
		SELECT id, booking_id, name, age, seat_number
		FROM passengers
		WHERE booking_id = ANY($1)
		ORDER BY booking_id, id
	`
	if err := q.SelectContext(ctx, &passengers, passengerQuery, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("failed to get passengers for bookings: %w", err)
	}

	byBooking := make(map[int64][]models.Passenger, len(bookings))
	for _, p := range passengers {
		byBooking[p.BookingID] = append(byBooking[p.BookingID], p)
	}
	for i := range bookings {
		bookings[i].Passengers = byBooking[bookings[i].ID]
		if bookings[i].Passengers == nil {
			bookings[i].Passengers = []models.Passenger{}
		}
	}

	return bookings, nil
}

// GetBookingByID retrieves a booking without its passengers
func (r *BookingRepository) GetBookingByID(ctx context.Context, id int64) (*models.Booking, error) {
	var booking models.Booking
	query := `SELECT id, user_id, bus_id, booking_time, status FROM bookings WHERE id = $1`

	if err := conn(ctx, r.db).GetContext(ctx, &booking, query, id); err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", translate(err))
	}
	return &booking, nil
}

// GetPassengersByBookingID returns a booking's passengers in insertion order
func (r *BookingRepository) GetPassengersByBookingID(ctx context.Context, bookingID int64) ([]models.Passenger, error) {
	passengers := []models.Passenger{}
	query := `
		SELECT id, booking_id, name, age, seat_number
		FROM passengers
		WHERE booking_id = $1
		ORDER BY id
	`

	if err := conn(ctx, r.db).SelectContext(ctx, &passengers, query, bookingID); err != nil {
		return nil, fmt.Errorf("failed to get passengers: %w", err)
	}
	return passengers, nil
}
