package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/bus-booking-backend/internal/clock"
	"github.com/smarttransit/bus-booking-backend/internal/database"
	"github.com/smarttransit/bus-booking-backend/internal/models"
)

// UserDirectory resolves the caller of a booking operation
type UserDirectory interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// BookingStore is the transactional storage the booking engine writes to.
// GetBusForUpdate must hold the bus exclusively until the transaction ends.
type BookingStore interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetBusForUpdate(ctx context.Context, busID int64) (*models.Bus, error)
	GetOccupiedSeats(ctx context.Context, busID int64) ([]string, error)
	CreateBooking(ctx context.Context, booking *models.Booking) error
	CreatePassenger(ctx context.Context, passenger *models.Passenger) error
	DecrementAvailableSeats(ctx context.Context, busID int64, n int) error
	GetBookingsByUserID(ctx context.Context, userID uuid.UUID) ([]models.Booking, error)
	GetBookingByID(ctx context.Context, id int64) (*models.Booking, error)
	GetPassengersByBookingID(ctx context.Context, bookingID int64) ([]models.Passenger, error)
}

// BookingService reserves seats and reports booking history
type BookingService struct {
	users  UserDirectory
	store  BookingStore
	clock  clock.Clock
	logger *logrus.Logger
}

// NewBookingService creates a new BookingService
func NewBookingService(users UserDirectory, store BookingStore, clk clock.Clock, logger *logrus.Logger) *BookingService {
	return &BookingService{
		users:  users,
		store:  store,
		clock:  clk,
		logger: logger,
	}
}

// Reserve books one seat per passenger on the requested bus.
//
// The bus row is locked before capacity and seat checks, so concurrent
// reservations on one bus run one after another. Either the booking, all its
// passengers and the seat decrement are committed together or nothing is.
func (s *BookingService) Reserve(ctx context.Context, userID uuid.UUID, req models.CreateBookingRequest) (*models.Booking, error) {
	if err := req.Validate(); err != nil {
		return nil, invalidRequest(err)
	}

	if _, err := s.resolveUser(ctx, userID); err != nil {
		return nil, err
	}

	var booking *models.Booking
	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		bus, err := s.store.GetBusForUpdate(ctx, req.BusID)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				return &NotFoundError{Entity: "bus"}
			}
			return fmt.Errorf("failed to load bus: %w", err)
		}

		requested := len(req.Passengers)
		if !bus.HasCapacityFor(requested) {
			return &CapacityError{Requested: requested, Available: bus.AvailableSeats}
		}

		occupied, err := s.store.GetOccupiedSeats(ctx, bus.ID)
		if err != nil {
			return fmt.Errorf("failed to load occupied seats: %w", err)
		}
		if conflicts := seatConflicts(req.SeatNumbers(), occupied); len(conflicts) > 0 {
			return &SeatConflictError{Seats: conflicts}
		}

		b := &models.Booking{
			UserID:      userID,
			BusID:       bus.ID,
			BookingTime: s.clock.Now(),
			Status:      models.BookingStatusConfirmed,
			Passengers:  make([]models.Passenger, 0, requested),
		}
		if err := s.store.CreateBooking(ctx, b); err != nil {
			// the bus row is locked, so a missing reference is the user
			// deleted after it was resolved
			if errors.Is(err, database.ErrNotFound) {
				return &NotFoundError{Entity: "user"}
			}
			return fmt.Errorf("failed to save booking: %w", err)
		}

		for _, p := range req.Passengers {
			passenger := models.Passenger{
				BookingID:  b.ID,
				Name:       p.Name,
				Age:        p.Age,
				SeatNumber: p.SeatNumber,
			}
			if err := s.store.CreatePassenger(ctx, &passenger); err != nil {
				return fmt.Errorf("failed to save passenger: %w", err)
			}
			b.Passengers = append(b.Passengers, passenger)
		}

		if err := s.store.DecrementAvailableSeats(ctx, bus.ID, requested); err != nil {
			if errors.Is(err, database.ErrInsufficientSeats) {
				return &CapacityError{Requested: requested, Available: bus.AvailableSeats}
			}
			return fmt.Errorf("failed to update available seats: %w", err)
		}

		booking = b
		return nil
	})
	if err != nil {
		s.logRejected(userID, req, err)
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"user_id":    userID,
		"bus_id":     booking.BusID,
		"seats":      req.SeatNumbers(),
	}).Info("Booking confirmed")

	return booking, nil
}

func (s *BookingService) logRejected(userID uuid.UUID, req models.CreateBookingRequest, err error) {
	entry := s.logger.WithFields(logrus.Fields{
		"user_id": userID,
		"bus_id":  req.BusID,
		"seats":   req.SeatNumbers(),
	})

	var seatErr *SeatConflictError
	var capErr *CapacityError
	switch {
	case errors.As(err, &seatErr):
		entry.WithField("conflicting_seats", seatErr.Seats).Info("Booking rejected: seat conflict")
	case errors.As(err, &capErr):
		entry.WithField("available", capErr.Available).Info("Booking rejected: capacity exceeded")
	default:
		if _, ok := AsNotFound(err); ok {
			entry.WithError(err).Info("Booking rejected")
			return
		}
		entry.WithError(err).Error("Booking failed")
	}
}

// History returns every booking made by the user, newest first
func (s *BookingService) History(ctx context.Context, userID uuid.UUID) ([]models.Booking, error) {
	if _, err := s.resolveUser(ctx, userID); err != nil {
		return nil, err
	}

	bookings, err := s.store.GetBookingsByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load booking history: %w", err)
	}
	return bookings, nil
}

// GetBookingPassengers returns the passengers of one of the user's bookings.
// A booking owned by someone else is reported as missing.
func (s *BookingService) GetBookingPassengers(ctx context.Context, userID uuid.UUID, bookingID int64) ([]models.Passenger, error) {
	if _, err := s.resolveUser(ctx, userID); err != nil {
		return nil, err
	}

	booking, err := s.store.GetBookingByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, &NotFoundError{Entity: "booking"}
		}
		return nil, fmt.Errorf("failed to load booking: %w", err)
	}
	if booking.UserID != userID {
		return nil, &NotFoundError{Entity: "booking"}
	}

	passengers, err := s.store.GetPassengersByBookingID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to load passengers: %w", err)
	}
	return passengers, nil
}

func (s *BookingService) resolveUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, &NotFoundError{Entity: "user"}
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return user, nil
}

// seatConflicts returns the requested seats present in occupied, sorted
func seatConflicts(requested, occupied []string) []string {
	taken := make(map[string]struct{}, len(occupied))
	for _, seat := range occupied {
		taken[seat] = struct{}{}
	}

	var conflicts []string
	for _, seat := range requested {
		if _, ok := taken[seat]; ok {
			conflicts = append(conflicts, seat)
		}
	}
	sort.Strings(conflicts)
	return conflicts
}
