package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/bus-booking-backend/internal/models"
	"github.com/smarttransit/bus-booking-backend/internal/services"
)

// BusHandler handles bus catalog HTTP requests
type BusHandler struct {
	buses  *services.BusService
	logger *logrus.Logger
}

// NewBusHandler creates a new bus handler
func NewBusHandler(buses *services.BusService, logger *logrus.Logger) *BusHandler {
	return &BusHandler{buses: buses, logger: logger}
}

// ListBuses handles GET /api/v1/buses?from=&to=
func (h *BusHandler) ListBuses(c *gin.Context) {
	buses, err := h.buses.ListBuses(c.Request.Context(), c.Query("from"), c.Query("to"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, buses)
}

// GetBusByID handles GET /api/v1/buses/:id
func (h *BusHandler) GetBusByID(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid bus ID",
			Code:    "INVALID_REQUEST",
		})
		return
	}

	bus, err := h.buses.GetBus(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, bus)
}

// CreateBus handles POST /api/v1/buses
func (h *BusHandler) CreateBus(c *gin.Context) {
	var req models.CreateBusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadBody(c)
		return
	}

	bus, err := h.buses.CreateBus(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, bus)
}
