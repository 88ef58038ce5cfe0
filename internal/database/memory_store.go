package database

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/bus-booking-backend/internal/models"
)

// MemoryStore keeps users, buses and bookings in process memory. It satisfies
// the same contracts as the Postgres repositories and is used for local runs
// and tests.
//
// Transactions are serialized on txMu, which plays the part of the bus row
// lock. Writes made inside a transaction are staged and only become visible
// to other callers on commit.
type MemoryStore struct {
	txMu sync.Mutex

	mu              sync.RWMutex
	users           map[uuid.UUID]models.User
	buses           map[int64]models.Bus
	bookings        map[int64]models.Booking
	passengers      map[int64][]models.Passenger
	nextBusID       int64
	nextBookingID   int64
	nextPassengerID int64

	logger *logrus.Logger
}

type memTxKey struct{}

// memTx holds the writes staged by one transaction
type memTx struct {
	bookings   []models.Booking
	passengers []models.Passenger
	decrements map[int64]int
}

// NewMemoryStore creates an empty store. logger may be nil.
func NewMemoryStore(logger *logrus.Logger) *MemoryStore {
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.WarnLevel)
	}
	return &MemoryStore{
		users:      make(map[uuid.UUID]models.User),
		buses:      make(map[int64]models.Bus),
		bookings:   make(map[int64]models.Booking),
		passengers: make(map[int64][]models.Passenger),
		logger:     logger,
	}
}

func memTxFromContext(ctx context.Context) *memTx {
	tx, _ := ctx.Value(memTxKey{}).(*memTx)
	return tx
}

// WithTx runs fn with exclusive access to the booking tables. Staged writes
// are applied only if fn succeeds and ctx is still live.
func (s *MemoryStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if memTxFromContext(ctx) != nil {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memTx{decrements: make(map[int64]int)}
	if err := fn(context.WithValue(ctx, memTxKey{}, tx)); err != nil {
		s.logger.WithError(err).Debug("memory store transaction rolled back")
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.commitLocked(tx); err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"bookings":   len(tx.bookings),
		"passengers": len(tx.passengers),
	}).Debug("memory store transaction committed")
	return nil
}

func (s *MemoryStore) commitLocked(tx *memTx) error {
	for busID, n := range tx.decrements {
		bus, ok := s.buses[busID]
		if !ok {
			return ErrNotFound
		}
		if bus.AvailableSeats < n {
			return ErrInsufficientSeats
		}
	}
	for busID, n := range tx.decrements {
		bus := s.buses[busID]
		bus.AvailableSeats -= n
		s.buses[busID] = bus
	}
	for _, b := range tx.bookings {
		b.Passengers = nil
		s.bookings[b.ID] = b
	}
	for _, p := range tx.passengers {
		s.passengers[p.BookingID] = append(s.passengers[p.BookingID], p)
	}
	return nil
}

// PingContext only fails once ctx is done
func (s *MemoryStore) PingContext(ctx context.Context) error {
	return ctx.Err()
}

// Users

// CreateUser inserts a user; the email must be unused
func (s *MemoryStore) CreateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Email == user.Email {
			return ErrDuplicate
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	s.users[user.ID] = *user
	return nil
}

// GetUserByID returns a copy of the user
func (s *MemoryStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

// GetUserByEmail returns a copy of the user
func (s *MemoryStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

// UpdateUser replaces the stored user
func (s *MemoryStore) UpdateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.users[user.ID]
	if !ok {
		return ErrNotFound
	}
	for id, u := range s.users {
		if id != user.ID && u.Email == user.Email {
			return ErrDuplicate
		}
	}
	user.CreatedAt = existing.CreatedAt
	user.UpdatedAt = time.Now().UTC()
	s.users[user.ID] = *user
	return nil
}

// Buses

// CreateBus inserts a bus and sets its ID
func (s *MemoryStore) CreateBus(ctx context.Context, bus *models.Bus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextBusID++
	bus.ID = s.nextBusID
	s.buses[bus.ID] = *bus
	return nil
}

// GetBusByID returns the committed state of a bus
func (s *MemoryStore) GetBusByID(ctx context.Context, id int64) (*models.Bus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bus, ok := s.buses[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &bus, nil
}

// ListBuses returns every bus ordered by departure
func (s *MemoryStore) ListBuses(ctx context.Context) ([]models.Bus, error) {
	return s.filterBuses(func(models.Bus) bool { return true }), nil
}

// SearchBuses returns buses on an exact route, ignoring case
func (s *MemoryStore) SearchBuses(ctx context.Context, from, to string) ([]models.Bus, error) {
	return s.filterBuses(func(b models.Bus) bool {
		return strings.EqualFold(b.FromLocation, from) && strings.EqualFold(b.ToLocation, to)
	}), nil
}

// CountBuses returns the number of buses
func (s *MemoryStore) CountBuses(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.buses), nil
}

func (s *MemoryStore) filterBuses(keep func(models.Bus) bool) []models.Bus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	buses := []models.Bus{}
	for _, b := range s.buses {
		if keep(b) {
			buses = append(buses, b)
		}
	}
	sort.Slice(buses, func(i, j int) bool {
		if !buses[i].DepartureTime.Equal(buses[j].DepartureTime) {
			return buses[i].DepartureTime.Before(buses[j].DepartureTime)
		}
		return buses[i].ID < buses[j].ID
	})
	return buses
}

// Bookings

// GetBusForUpdate returns the bus as seen by the current transaction
func (s *MemoryStore) GetBusForUpdate(ctx context.Context, busID int64) (*models.Bus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bus, ok := s.buses[busID]
	if !ok {
		return nil, ErrNotFound
	}
	if tx := memTxFromContext(ctx); tx != nil {
		bus.AvailableSeats -= tx.decrements[busID]
	}
	return &bus, nil
}

// GetOccupiedSeats returns committed and staged seat numbers on the bus
func (s *MemoryStore) GetOccupiedSeats(ctx context.Context, busID int64) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seats := []string{}
	for id, b := range s.bookings {
		if b.BusID != busID {
			continue
		}
		for _, p := range s.passengers[id] {
			seats = append(seats, p.SeatNumber)
		}
	}

	if tx := memTxFromContext(ctx); tx != nil {
		staged := make(map[int64]int64, len(tx.bookings))
		for _, b := range tx.bookings {
			staged[b.ID] = b.BusID
		}
		for _, p := range tx.passengers {
			if staged[p.BookingID] == busID {
				seats = append(seats, p.SeatNumber)
			}
		}
	}
	return seats, nil
}

// CreateBooking stages a booking, or writes it directly outside a transaction
func (s *MemoryStore) CreateBooking(ctx context.Context, booking *models.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[booking.UserID]; !ok {
		return ErrNotFound
	}
	if _, ok := s.buses[booking.BusID]; !ok {
		return ErrNotFound
	}

	s.nextBookingID++
	booking.ID = s.nextBookingID

	if tx := memTxFromContext(ctx); tx != nil {
		tx.bookings = append(tx.bookings, *booking)
		return nil
	}
	stored := *booking
	stored.Passengers = nil
	s.bookings[booking.ID] = stored
	return nil
}

// CreatePassenger stages a passenger, or writes it directly outside a transaction
func (s *MemoryStore) CreatePassenger(ctx context.Context, passenger *models.Passenger) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := memTxFromContext(ctx)
	if !s.bookingVisibleLocked(tx, passenger.BookingID) {
		return ErrNotFound
	}

	s.nextPassengerID++
	passenger.ID = s.nextPassengerID

	if tx != nil {
		tx.passengers = append(tx.passengers, *passenger)
		return nil
	}
	s.passengers[passenger.BookingID] = append(s.passengers[passenger.BookingID], *passenger)
	return nil
}

func (s *MemoryStore) bookingVisibleLocked(tx *memTx, bookingID int64) bool {
	if _, ok := s.bookings[bookingID]; ok {
		return true
	}
	if tx != nil {
		for _, b := range tx.bookings {
			if b.ID == bookingID {
				return true
			}
		}
	}
	return false
}

// DecrementAvailableSeats stages or applies a seat decrement
func (s *MemoryStore) DecrementAvailableSeats(ctx context.Context, busID int64, n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bus, ok := s.buses[busID]
	if !ok {
		return ErrNotFound
	}

	tx := memTxFromContext(ctx)
	if tx == nil {
		if bus.AvailableSeats < n {
			return ErrInsufficientSeats
		}
		bus.AvailableSeats -= n
		s.buses[busID] = bus
		return nil
	}

	if bus.AvailableSeats-tx.decrements[busID] < n {
		return ErrInsufficientSeats
	}
	tx.decrements[busID] += n
	return nil
}

// GetBookingsByUserID returns committed bookings of the user, newest first
func (s *MemoryStore) GetBookingsByUserID(ctx context.Context, userID uuid.UUID) ([]models.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bookings := []models.Booking{}
	for id, b := range s.bookings {
		if b.UserID != userID {
			continue
		}
		b.Passengers = append([]models.Passenger{}, s.passengers[id]...)
		bookings = append(bookings, b)
	}
	sort.Slice(bookings, func(i, j int) bool {
		if !bookings[i].BookingTime.Equal(bookings[j].BookingTime) {
			return bookings[i].BookingTime.After(bookings[j].BookingTime)
		}
		return bookings[i].ID > bookings[j].ID
	})
	return bookings, nil
}

// GetBookingByID returns a committed booking without passengers
func (s *MemoryStore) GetBookingByID(ctx context.Context, id int64) (*models.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &b, nil
}

// GetPassengersByBookingID returns a booking's passengers in insertion order
func (s *MemoryStore) GetPassengersByBookingID(ctx context.Context, bookingID int64) ([]models.Passenger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]models.Passenger{}, s.passengers[bookingID]...), nil
}
