package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/bus-booking-backend/internal/config"
	"github.com/smarttransit/bus-booking-backend/internal/middleware"
	"github.com/smarttransit/bus-booking-backend/internal/models"
	"github.com/smarttransit/bus-booking-backend/internal/services"
	"github.com/smarttransit/bus-booking-backend/pkg/jwt"
)

// Pinger reports whether the backing store is reachable
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Dependencies are the services the HTTP API is built on
type Dependencies struct {
	Users    *services.UserService
	Buses    *services.BusService
	Bookings *services.BookingService
	JWT      *jwt.Service
	Store    Pinger
	Logger   *logrus.Logger
	Version  string
}

// NewRouter builds the gin engine with middleware and every API route
func NewRouter(cfg *config.Config, deps Dependencies) *gin.Engine {
	router := gin.New()
	if err := router.SetTrustedProxies(cfg.Security.TrustedProxies); err != nil {
		deps.Logger.WithError(err).Warn("Invalid trusted proxies, trusting none")
		_ = router.SetTrustedProxies(nil)
	}

	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	if cfg.Security.EnableRequestLog {
		router.Use(middleware.RequestLogger(deps.Logger))
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", healthCheckHandler(deps.Store, deps.Version))

	authHandler := NewAuthHandler(deps.Users, deps.Logger)
	busHandler := NewBusHandler(deps.Buses, deps.Logger)
	bookingHandler := NewBookingHandler(deps.Bookings, deps.Logger)
	requireAuth := middleware.AuthMiddleware(deps.JWT, deps.Logger)

	v1 := router.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.POST("/refresh", authHandler.RefreshToken)
		}

		users := v1.Group("/users", requireAuth)
		{
			users.GET("/profile", authHandler.GetProfile)
			users.PUT("/profile", authHandler.UpdateProfile)
		}

		buses := v1.Group("/buses")
		{
			buses.GET("", busHandler.ListBuses)
			buses.GET("/:id", busHandler.GetBusByID)
			buses.POST("", requireAuth, middleware.RequireRole(models.RoleAdmin), busHandler.CreateBus)
		}

		bookings := v1.Group("/bookings", requireAuth)
		{
			bookings.POST("", bookingHandler.CreateBooking)
			bookings.GET("/history", bookingHandler.GetHistory)
			bookings.GET("/:id/passengers", bookingHandler.GetPassengers)
		}
	}

	return router
}

// healthCheckHandler returns a health check endpoint
func healthCheckHandler(store Pinger, version string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := store.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": "unhealthy",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"database":  "healthy",
			"version":   version,
			"timestamp": time.Now().Unix(),
		})
	}
}
