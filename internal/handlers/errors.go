package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/bus-booking-backend/internal/middleware"
	"github.com/smarttransit/bus-booking-backend/internal/services"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string   `json:"error"`
	Message string   `json:"message"`
	Code    string   `json:"code,omitempty"`
	Seats   []string `json:"seats,omitempty"`
}

// respondError writes the HTTP form of a service error. Anything outside the
// known taxonomy is logged and answered with a generic 500.
func respondError(c *gin.Context, logger *logrus.Logger, err error) {
	var seatErr *services.SeatConflictError
	var capErr *services.CapacityError

	switch {
	case errors.Is(err, services.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
			Code:    "INVALID_REQUEST",
		})
	case errors.As(err, &seatErr):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "seat_conflict",
			Message: seatErr.Error(),
			Code:    "SEAT_CONFLICT",
			Seats:   seatErr.Seats,
		})
	case errors.As(err, &capErr):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "capacity_exceeded",
			Message: capErr.Error(),
			Code:    "CAPACITY_EXCEEDED",
		})
	case errors.Is(err, services.ErrEmailTaken):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "email_taken",
			Message: err.Error(),
			Code:    "EMAIL_TAKEN",
		})
	case errors.Is(err, services.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "invalid_credentials",
			Message: err.Error(),
			Code:    "INVALID_CREDENTIALS",
		})
	case errors.Is(err, services.ErrInvalidToken):
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "invalid_token",
			Message: err.Error(),
			Code:    "INVALID_REFRESH_TOKEN",
		})
	default:
		if entity, ok := services.AsNotFound(err); ok {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   entity + "_not_found",
				Message: err.Error(),
				Code:    "NOT_FOUND",
			})
			return
		}

		logger.WithFields(logrus.Fields{
			"request_id": middleware.GetRequestID(c),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
		}).WithError(err).Error("Request failed with internal error")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "An unexpected error occurred",
			Code:    "INTERNAL_ERROR",
		})
	}
}

func respondBadBody(c *gin.Context) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   "invalid_request",
		Message: "Invalid request body",
		Code:    "INVALID_REQUEST",
	})
}

// currentUser returns the authenticated caller or writes a 401
func currentUser(c *gin.Context) (middleware.UserContext, bool) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthorized",
			Message: "User context not found",
			Code:    "MISSING_USER_CONTEXT",
		})
		return middleware.UserContext{}, false
	}
	return userCtx, true
}
