package models

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/smarttransit/bus-booking-backend/pkg/validator"
)

// Role names carried in access tokens
const (
	RoleUser  = "ROLE_USER"
	RoleAdmin = "ROLE_ADMIN"
)

// MinPasswordLength is the shortest password accepted at registration
const MinPasswordLength = 6

// User represents an account that can hold bookings
type User struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Role         string    `json:"role" db:"role"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// IsAdmin reports whether the user may manage the bus catalog
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// RegisterRequest represents the request to create an account
type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Validate validates and normalises the registration request
func (r *RegisterRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = validator.NormalizeEmail(r.Email)

	if r.Name == "" {
		return errors.New("name is required")
	}
	if err := validator.ValidateEmail(r.Email); err != nil {
		return err
	}
	if len(r.Password) < MinPasswordLength {
		return errors.New("password must be at least 6 characters")
	}
	return nil
}

// LoginRequest represents the request to authenticate with email and password
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RefreshTokenRequest represents the request to exchange a refresh token
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// UpdateProfileRequest changes only the fields that are present
type UpdateProfileRequest struct {
	Name     *string `json:"name,omitempty"`
	Email    *string `json:"email,omitempty"`
	Password *string `json:"password,omitempty"`
}

// Validate validates and normalises the fields that are present
func (r *UpdateProfileRequest) Validate() error {
	if r.Name == nil && r.Email == nil && r.Password == nil {
		return errors.New("nothing to update")
	}
	if r.Name != nil {
		name := strings.TrimSpace(*r.Name)
		if name == "" {
			return errors.New("name must not be empty")
		}
		r.Name = &name
	}
	if r.Email != nil {
		email := validator.NormalizeEmail(*r.Email)
		if err := validator.ValidateEmail(email); err != nil {
			return err
		}
		r.Email = &email
	}
	if r.Password != nil && len(*r.Password) < MinPasswordLength {
		return errors.New("password must be at least 6 characters")
	}
	return nil
}

// AuthResponse is returned by register and login
type AuthResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	User         *User  `json:"user"`
}
