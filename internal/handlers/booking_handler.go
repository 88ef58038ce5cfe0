package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/bus-booking-backend/internal/models"
	"github.com/smarttransit/bus-booking-backend/internal/services"
)

// BookingHandler handles seat reservation HTTP requests
type BookingHandler struct {
	bookings *services.BookingService
	logger   *logrus.Logger
}

// NewBookingHandler creates a new booking handler
func NewBookingHandler(bookings *services.BookingService, logger *logrus.Logger) *BookingHandler {
	return &BookingHandler{bookings: bookings, logger: logger}
}

// CreateBooking handles POST /api/v1/bookings
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	userCtx, ok := currentUser(c)
	if !ok {
		return
	}

	var req models.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadBody(c)
		return
	}

	booking, err := h.bookings.Reserve(c.Request.Context(), userCtx.UserID, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, booking)
}

// GetHistory handles GET /api/v1/bookings/history
func (h *BookingHandler) GetHistory(c *gin.Context) {
	userCtx, ok := currentUser(c)
	if !ok {
		return
	}

	bookings, err := h.bookings.History(c.Request.Context(), userCtx.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, models.BookingHistoryResponse{
		Bookings: bookings,
		Count:    len(bookings),
	})
}

// GetPassengers handles GET /api/v1/bookings/:id/passengers
func (h *BookingHandler) GetPassengers(c *gin.Context) {
	userCtx, ok := currentUser(c)
	if !ok {
		return
	}

	bookingID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid booking ID",
			Code:    "INVALID_REQUEST",
		})
		return
	}

	passengers, err := h.bookings.GetBookingPassengers(c.Request.Context(), userCtx.UserID, bookingID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, passengers)
}
