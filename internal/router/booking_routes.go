package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/citizen-booking/internal/handler"
	"github.com/iliyamo/citizen-booking/internal/middleware"
)

// RegisterBookings registers the booking API on g.  Every route requires a
// caller token; administrative routes additionally require a staff group.
// Ownership and scope checks happen in the engine.
func RegisterBookings(g *echo.Group, h *handler.BookingHandler, d Deps) {
	// A nil *redis.Client must not reach the middleware as a non-nil
	// interface.
	var scripter redis.Scripter
	var store middleware.CacheStore
	if d.Redis != nil {
		scripter, store = d.Redis, d.Redis
	}

	g.Use(
		middleware.Authenticate(d.JWTSecret),
		middleware.RequireGroups(middleware.AllKinds...),
		middleware.NewTokenBucket(d.RateLimit, scripter, d.Log),
	)
	staff := middleware.RequireGroups(middleware.StaffKinds...)

	// Citizen and anonymous flows.
	g.POST("/bookings", h.Create)
	g.GET("/bookings/:id", h.Get)
	g.GET("/bookings/uuid/:uuid", h.GetByUUID)
	g.POST("/bookings/:id/reschedule", h.Reschedule)
	g.POST("/bookings/:id/cancel", h.Cancel)
	g.POST("/bookings/:id/validateOnHold", h.ValidateOnHold)
	g.GET("/bookings", h.List)

	// Staff flows.
	g.POST("/bookings/admin", h.CreateAdmin, staff)
	g.POST("/bookings/bulk", h.CreateBulk, staff)
	g.POST("/bookings/:id/accept", h.Accept, staff)
	g.POST("/bookings/:id/reject", h.Reject, staff)
	g.GET("/bookings/:id/providers", h.Providers, staff, middleware.NewRedisCache(d.Cache, store))
	g.GET("/bookings/csv", h.ExportCSV, staff)
	g.GET("/bookinglogs", h.ChangeLogs, staff)
}
