// Package router builds the echo instance and registers every route.
package router

import (
	"database/sql"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/citizen-booking/internal/config"
	"github.com/iliyamo/citizen-booking/internal/handler"
	"github.com/iliyamo/citizen-booking/internal/idtoken"
	"github.com/iliyamo/citizen-booking/internal/middleware"
	"github.com/iliyamo/citizen-booking/internal/reservation"
)

// Deps collects what the routes need.  Redis and Tokens are optional:
// without Redis the rate limit and response cache are skipped, without
// Tokens the /v2 routes are not registered.
type Deps struct {
	Engine    *reservation.Engine
	DB        *sql.DB
	Tokens    *idtoken.Codec
	JWTSecret string
	Redis     *redis.Client
	RateLimit config.RateLimitConfig
	Cache     config.CacheConfig
	Log       *zap.Logger
}

// New returns an echo instance with all routes registered.
func New(d Deps) *echo.Echo {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(d.Log))

	RegisterRoutes(e, &handler.HealthHandler{DB: d.DB})
	RegisterBookings(e.Group("/v1"), handler.NewBookingHandler(d.Engine, handler.NumericIDs{}, d.Log), d)
	if d.Tokens != nil {
		RegisterBookings(e.Group("/v2"), handler.NewBookingHandler(d.Engine, handler.TokenIDs{Codec: d.Tokens}, d.Log), d)
	}
	return e
}

// RegisterRoutes registers routes that do not require authentication.
func RegisterRoutes(e *echo.Echo, h *handler.HealthHandler) {
	e.GET("/healthz", h.Health)
}
