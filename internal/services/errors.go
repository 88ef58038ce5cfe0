package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidRequest marks a malformed request; the wrapped message names the field
	ErrInvalidRequest = errors.New("invalid request")

	// ErrCapacityExceeded is matched by *CapacityError
	ErrCapacityExceeded = errors.New("capacity exceeded")

	// ErrSeatConflict is matched by *SeatConflictError
	ErrSeatConflict = errors.New("seat conflict")

	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired refresh token")
	ErrEmailTaken         = errors.New("email is already registered")
)

func invalidRequest(err error) error {
	return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
}

// NotFoundError reports that a referenced entity does not exist
type NotFoundError struct {
	Entity string
}

func (e *NotFoundError) Error() string {
	return e.Entity + " not found"
}

// CapacityError reports that a bus has fewer seats left than requested
type CapacityError struct {
	Requested int
	Available int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("not enough seats available: requested %d, available %d", e.Requested, e.Available)
}

func (e *CapacityError) Is(target error) bool {
	return target == ErrCapacityExceeded
}

// SeatConflictError lists requested seats already held by another booking
type SeatConflictError struct {
	Seats []string
}

func (e *SeatConflictError) Error() string {
	return fmt.Sprintf("seats %s are already booked", strings.Join(e.Seats, ", "))
}

func (e *SeatConflictError) Is(target error) bool {
	return target == ErrSeatConflict
}

// AsNotFound returns the missing entity name when err is a NotFoundError
func AsNotFound(err error) (string, bool) {
	var nf *NotFoundError
	if errors.As(err, &nf) {
		return nf.Entity, true
	}
	return "", false
}
