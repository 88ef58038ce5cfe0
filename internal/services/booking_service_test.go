package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/smarttransit/bus-booking-backend/internal/clock"
	"github.com/smarttransit/bus-booking-backend/internal/database"
	"github.com/smarttransit/bus-booking-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)

type bookingFixture struct {
	store   *database.MemoryStore
	service *BookingService
	user    *models.User
	bus     *models.Bus
	hook    *logtest.Hook
}

func newBookingFixture(t *testing.T, seats int) *bookingFixture {
	t.Helper()
	ctx := context.Background()
	logger, hook := logtest.NewNullLogger()
	store := database.NewMemoryStore(logger)

	user := &models.User{Name: "Asha", Email: "asha@bus.com", PasswordHash: "x"}
	require.NoError(t, store.CreateUser(ctx, user))

	bus := &models.Bus{
		FromLocation:   "Chennai",
		ToLocation:     "Bangalore",
		DepartureTime:  testNow.Add(24 * time.Hour),
		ArrivalTime:    testNow.Add(30 * time.Hour),
		Price:          850,
		AvailableSeats: seats,
	}
	require.NoError(t, store.CreateBus(ctx, bus))

	return &bookingFixture{
		store:   store,
		service: NewBookingService(store, store, clock.NewManual(testNow), logger),
		user:    user,
		bus:     bus,
		hook:    hook,
	}
}

func (f *bookingFixture) addUser(t *testing.T, email string) *models.User {
	t.Helper()
	u := &models.User{Name: email, Email: email, PasswordHash: "x"}
	require.NoError(t, f.store.CreateUser(context.Background(), u))
	return u
}

func (f *bookingFixture) availableSeats(t *testing.T) int {
	t.Helper()
	bus, err := f.store.GetBusByID(context.Background(), f.bus.ID)
	require.NoError(t, err)
	return bus.AvailableSeats
}

func bookingRequest(busID int64, seats ...string) models.CreateBookingRequest {
	req := models.CreateBookingRequest{BusID: busID}
	for i, seat := range seats {
		req.Passengers = append(req.Passengers, models.PassengerRequest{
			Name:       fmt.Sprintf("Passenger %d", i+1),
			Age:        20 + i,
			SeatNumber: seat,
		})
	}
	return req
}

func TestReserve_Success(t *testing.T) {
	f := newBookingFixture(t, 40)

	booking, err := f.service.Reserve(context.Background(), f.user.ID, bookingRequest(f.bus.ID, "A1", "A2"))
	require.NoError(t, err)

	assert.NotZero(t, booking.ID)
	assert.Equal(t, f.user.ID, booking.UserID)
	assert.Equal(t, f.bus.ID, booking.BusID)
	assert.Equal(t, models.BookingStatusConfirmed, booking.Status)
	assert.Equal(t, testNow, booking.BookingTime)
	require.Len(t, booking.Passengers, 2)
	for i, p := range booking.Passengers {
		assert.NotZero(t, p.ID)
		assert.Equal(t, booking.ID, p.BookingID)
		assert.Equal(t, []string{"A1", "A2"}[i], p.SeatNumber)
	}

	assert.Equal(t, 38, f.availableSeats(t))

	entry := f.hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "Booking confirmed", entry.Message)
	assert.Equal(t, booking.ID, entry.Data["booking_id"])
}

func TestReserve_SeatConflictAfterEarlierBooking(t *testing.T) {
	f := newBookingFixture(t, 40)
	ctx := context.Background()

	_, err := f.service.Reserve(ctx, f.user.ID, bookingRequest(f.bus.ID, "A1", "A2"))
	require.NoError(t, err)
	require.Equal(t, 38, f.availableSeats(t))

	other := f.addUser(t, "ravi@bus.com")
	booking, err := f.service.Reserve(ctx, other.ID, bookingRequest(f.bus.ID, "A3", "A2"))
	assert.Nil(t, booking)
	require.ErrorIs(t, err, ErrSeatConflict)

	var conflict *SeatConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, []string{"A2"}, conflict.Seats)
	assert.Equal(t, "seats A2 are already booked", err.Error())

	assert.Equal(t, 38, f.availableSeats(t))
	history, err := f.service.History(ctx, other.ID)
	require.NoError(t, err)
	assert.Empty(t, history, "rejected booking leaves no rows")
}

func TestReserve_PaddedSeatConflictsWithStoredSeat(t *testing.T) {
	f := newBookingFixture(t, 40)
	ctx := context.Background()

	first, err := f.service.Reserve(ctx, f.user.ID, bookingRequest(f.bus.ID, " A1 "))
	require.NoError(t, err)
	assert.Equal(t, "A1", first.Passengers[0].SeatNumber, "seat numbers are stored trimmed")

	_, err = f.service.Reserve(ctx, f.user.ID, bookingRequest(f.bus.ID, "A1"))
	require.ErrorIs(t, err, ErrSeatConflict)
	assert.Equal(t, 39, f.availableSeats(t))
}

func TestReserve_SeatConflictNamesEverySeatSorted(t *testing.T) {
	f := newBookingFixture(t, 40)
	ctx := context.Background()

	_, err := f.service.Reserve(ctx, f.user.ID, bookingRequest(f.bus.ID, "C3", "A1", "B2"))
	require.NoError(t, err)

	_, err = f.service.Reserve(ctx, f.user.ID, bookingRequest(f.bus.ID, "C3", "D4", "A1"))
	var conflict *SeatConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, []string{"A1", "C3"}, conflict.Seats)
}

func TestReserve_CapacityExceeded(t *testing.T) {
	f := newBookingFixture(t, 1)

	booking, err := f.service.Reserve(context.Background(), f.user.ID, bookingRequest(f.bus.ID, "A1", "A2"))
	assert.Nil(t, booking)
	require.ErrorIs(t, err, ErrCapacityExceeded)

	var capErr *CapacityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, 2, capErr.Requested)
	assert.Equal(t, 1, capErr.Available)

	assert.Equal(t, 1, f.availableSeats(t), "bus is unchanged")
}

func TestReserve_CapacityCheckedBeforeSeats(t *testing.T) {
	f := newBookingFixture(t, 2)
	ctx := context.Background()

	_, err := f.service.Reserve(ctx, f.user.ID, bookingRequest(f.bus.ID, "A1"))
	require.NoError(t, err)

	_, err = f.service.Reserve(ctx, f.user.ID, bookingRequest(f.bus.ID, "A1", "A2"))
	assert.ErrorIs(t, err, ErrCapacityExceeded)
}

func TestReserve_CancelledBookingSeatsStayOccupied(t *testing.T) {
	f := newBookingFixture(t, 40)
	ctx := context.Background()

	cancelled := &models.Booking{UserID: f.user.ID, BusID: f.bus.ID, BookingTime: testNow, Status: models.BookingStatusCancelled}
	require.NoError(t, f.store.CreateBooking(ctx, cancelled))
	require.NoError(t, f.store.CreatePassenger(ctx, &models.Passenger{BookingID: cancelled.ID, Name: "Old", SeatNumber: "A1"}))

	_, err := f.service.Reserve(ctx, f.user.ID, bookingRequest(f.bus.ID, "A1"))
	assert.ErrorIs(t, err, ErrSeatConflict)
}

func TestReserve_InvalidRequests(t *testing.T) {
	f := newBookingFixture(t, 40)

	tests := []struct {
		name string
		req  models.CreateBookingRequest
	}{
		{"Missing bus id", bookingRequest(0, "A1")},
		{"No passengers", bookingRequest(f.bus.ID)},
		{"Duplicate seat in request", bookingRequest(f.bus.ID, "A1", "A1")},
		{"Negative age", models.CreateBookingRequest{BusID: f.bus.ID, Passengers: []models.PassengerRequest{{Name: "X", Age: -1, SeatNumber: "A1"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.service.Reserve(context.Background(), f.user.ID, tt.req)
			assert.ErrorIs(t, err, ErrInvalidRequest)
		})
	}
	assert.Equal(t, 40, f.availableSeats(t))
}

func TestReserve_UnknownUserAndBus(t *testing.T) {
	f := newBookingFixture(t, 40)

	_, err := f.service.Reserve(context.Background(), uuid.New(), bookingRequest(f.bus.ID, "A1"))
	entity, ok := AsNotFound(err)
	require.True(t, ok)
	assert.Equal(t, "user", entity)

	_, err = f.service.Reserve(context.Background(), f.user.ID, bookingRequest(9999, "A1"))
	entity, ok = AsNotFound(err)
	require.True(t, ok)
	assert.Equal(t, "bus", entity)
}

func TestReserve_ConcurrentSameSeat(t *testing.T) {
	f := newBookingFixture(t, 40)
	ctx := context.Background()

	const attempts = 25
	var wg sync.WaitGroup
	results := make(chan error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.service.Reserve(ctx, f.user.ID, bookingRequest(f.bus.ID, "A1"))
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded, conflicts := 0, 0
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrSeatConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, attempts-1, conflicts)
	assert.Equal(t, 39, f.availableSeats(t))
}

func TestReserve_ConcurrentNeverOversells(t *testing.T) {
	f := newBookingFixture(t, 10)
	ctx := context.Background()

	const attempts = 30
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.service.Reserve(ctx, f.user.ID, bookingRequest(f.bus.ID, fmt.Sprintf("S%d", i)))
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, ErrCapacityExceeded)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)
	assert.Equal(t, 0, f.availableSeats(t))

	history, err := f.service.History(ctx, f.user.ID)
	require.NoError(t, err)
	seen := map[string]bool{}
	for _, b := range history {
		for _, p := range b.Passengers {
			assert.False(t, seen[p.SeatNumber], "seat %s assigned twice", p.SeatNumber)
			seen[p.SeatNumber] = true
		}
	}
	assert.Len(t, seen, 10)
}

func TestHistory(t *testing.T) {
	f := newBookingFixture(t, 40)
	ctx := context.Background()
	clk := clock.NewManual(testNow)
	f.service.clock = clk

	for _, seat := range []string{"A1", "A2", "A3"} {
		_, err := f.service.Reserve(ctx, f.user.ID, bookingRequest(f.bus.ID, seat))
		require.NoError(t, err)
		clk.Advance(time.Minute)
	}
	other := f.addUser(t, "ravi@bus.com")
	_, err := f.service.Reserve(ctx, other.ID, bookingRequest(f.bus.ID, "B1"))
	require.NoError(t, err)

	history, err := f.service.History(ctx, f.user.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "A3", history[0].Passengers[0].SeatNumber, "newest first")
	assert.Equal(t, "A1", history[2].Passengers[0].SeatNumber)
	for _, b := range history {
		assert.Equal(t, f.user.ID, b.UserID)
	}

	fresh := f.addUser(t, "new@bus.com")
	empty, err := f.service.History(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = f.service.History(ctx, uuid.New())
	entity, ok := AsNotFound(err)
	require.True(t, ok)
	assert.Equal(t, "user", entity)
}

func TestGetBookingPassengers(t *testing.T) {
	f := newBookingFixture(t, 40)
	ctx := context.Background()

	booking, err := f.service.Reserve(ctx, f.user.ID, bookingRequest(f.bus.ID, "A1", "A2"))
	require.NoError(t, err)

	passengers, err := f.service.GetBookingPassengers(ctx, f.user.ID, booking.ID)
	require.NoError(t, err)
	require.Len(t, passengers, 2)
	assert.Equal(t, "A1", passengers[0].SeatNumber)

	other := f.addUser(t, "ravi@bus.com")
	_, err = f.service.GetBookingPassengers(ctx, other.ID, booking.ID)
	entity, ok := AsNotFound(err)
	require.True(t, ok, "another user's booking is hidden")
	assert.Equal(t, "booking", entity)

	_, err = f.service.GetBookingPassengers(ctx, f.user.ID, 9999)
	entity, _ = AsNotFound(err)
	assert.Equal(t, "booking", entity)
}

// failingStore wraps the memory store and fails one operation
type failingStore struct {
	*database.MemoryStore
	failOn string
}

var errStoreDown = errors.New("store unavailable")

func (s *failingStore) CreatePassenger(ctx context.Context, p *models.Passenger) error {
	if s.failOn == "passenger" {
		return errStoreDown
	}
	return s.MemoryStore.CreatePassenger(ctx, p)
}

func (s *failingStore) GetOccupiedSeats(ctx context.Context, busID int64) ([]string, error) {
	if s.failOn == "seats" {
		return nil, errStoreDown
	}
	return s.MemoryStore.GetOccupiedSeats(ctx, busID)
}

func TestReserve_StoreFailureRollsBack(t *testing.T) {
	for _, failOn := range []string{"passenger", "seats"} {
		t.Run(failOn, func(t *testing.T) {
			f := newBookingFixture(t, 40)
			store := &failingStore{MemoryStore: f.store, failOn: failOn}
			service := NewBookingService(f.store, store, clock.NewManual(testNow), logrus.New())

			_, err := service.Reserve(context.Background(), f.user.ID, bookingRequest(f.bus.ID, "A1", "A2"))
			require.ErrorIs(t, err, errStoreDown)
			assert.NotErrorIs(t, err, ErrInvalidRequest)
			_, isNotFound := AsNotFound(err)
			assert.False(t, isNotFound)

			assert.Equal(t, 40, f.availableSeats(t))
			history, err := f.service.History(context.Background(), f.user.ID)
			require.NoError(t, err)
			assert.Empty(t, history)
		})
	}
}

func newPostgresBookingService(t *testing.T) (*BookingService, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	db := database.NewPostgresDB(sqlx.NewDb(mockDB, "sqlmock"))
	logger, _ := logtest.NewNullLogger()
	return NewBookingService(database.NewUserRepository(db), database.NewBookingRepository(db), clock.NewManual(testNow), logger), mock
}

var (
	userColumns = []string{"id", "name", "email", "password_hash", "role", "created_at", "updated_at"}
	busColumns  = []string{"id", "from_location", "to_location", "departure_time", "arrival_time", "price", "available_seats"}
)

func TestReserve_PostgresStatementOrder(t *testing.T) {
	service, mock := newPostgresBookingService(t)
	userID := uuid.New()

	mock.ExpectQuery(`FROM users WHERE id`).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows(userColumns).AddRow(userID.String(), "Asha", "asha@bus.com", "x", models.RoleUser, testNow, testNow))
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM buses WHERE id = \$1 FOR UPDATE`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(busColumns).AddRow(1, "Chennai", "Bangalore", testNow, testNow.Add(6*time.Hour), 850.0, 40))
	mock.ExpectQuery(`SELECT p.seat_number`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"seat_number"}))
	mock.ExpectQuery(`INSERT INTO bookings`).
		WithArgs(userID, int64(1), testNow, models.BookingStatusConfirmed).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectQuery(`INSERT INTO passengers`).
		WithArgs(int64(7), "Passenger 1", 20, "A1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectQuery(`INSERT INTO passengers`).
		WithArgs(int64(7), "Passenger 2", 21, "A2").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))
	mock.ExpectExec(`UPDATE buses SET available_seats`).
		WithArgs(int64(1), 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	booking, err := service.Reserve(context.Background(), userID, bookingRequest(1, "A1", "A2"))
	require.NoError(t, err)
	assert.Equal(t, int64(7), booking.ID)
	assert.Len(t, booking.Passengers, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReserve_PostgresConflictRollsBack(t *testing.T) {
	service, mock := newPostgresBookingService(t)
	userID := uuid.New()

	mock.ExpectQuery(`FROM users WHERE id`).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows(userColumns).AddRow(userID.String(), "Asha", "asha@bus.com", "x", models.RoleUser, testNow, testNow))
	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(busColumns).AddRow(1, "Chennai", "Bangalore", testNow, testNow.Add(6*time.Hour), 850.0, 38))
	mock.ExpectQuery(`SELECT p.seat_number`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"seat_number"}).AddRow("A1").AddRow("A2"))
	mock.ExpectRollback()

	_, err := service.Reserve(context.Background(), userID, bookingRequest(1, "A2"))
	require.ErrorIs(t, err, ErrSeatConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReserve_PostgresCapacityRollsBack(t *testing.T) {
	service, mock := newPostgresBookingService(t)
	userID := uuid.New()

	mock.ExpectQuery(`FROM users WHERE id`).
		WillReturnRows(sqlmock.NewRows(userColumns).AddRow(userID.String(), "Asha", "asha@bus.com", "x", models.RoleUser, testNow, testNow))
	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows(busColumns).AddRow(1, "Chennai", "Bangalore", testNow, testNow.Add(6*time.Hour), 850.0, 1))
	mock.ExpectRollback()

	_, err := service.Reserve(context.Background(), userID, bookingRequest(1, "A1", "A2"))
	require.ErrorIs(t, err, ErrCapacityExceeded)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReserve_PostgresUserDeletedMidReservation(t *testing.T) {
	service, mock := newPostgresBookingService(t)
	userID := uuid.New()

	mock.ExpectQuery(`FROM users WHERE id`).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows(userColumns).AddRow(userID.String(), "Asha", "asha@bus.com", "x", models.RoleUser, testNow, testNow))
	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(busColumns).AddRow(1, "Chennai", "Bangalore", testNow, testNow.Add(6*time.Hour), 850.0, 40))
	mock.ExpectQuery(`SELECT p.seat_number`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"seat_number"}))
	mock.ExpectQuery(`INSERT INTO bookings`).
		WillReturnError(&pq.Error{Code: "23503", Constraint: "bookings_user_id_fkey"})
	mock.ExpectRollback()

	booking, err := service.Reserve(context.Background(), userID, bookingRequest(1, "A1"))
	assert.Nil(t, booking)
	require.Error(t, err)
	entity, ok := AsNotFound(err)
	require.True(t, ok, "foreign key violation must not surface as an internal error: %v", err)
	assert.Equal(t, "user", entity)
	assert.NoError(t, mock.ExpectationsWereMet())
}
