package middleware

// identity.go holds the context key under which the resolved caller is
// stored and the helpers that read it back.

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/citizen-booking/internal/authscope"
)

// CallerKey is the echo context key of the authenticated authscope.Caller.
const CallerKey = "caller"

// CallerFrom returns the caller stored by Authenticate.
func CallerFrom(c echo.Context) (authscope.Caller, bool) {
	caller, ok := c.Get(CallerKey).(authscope.Caller)
	return caller, ok
}

// callerRef identifies the caller for rate-limit and cache keys.  It
// returns "guest" when no caller is authenticated.
func callerRef(c echo.Context) string {
	caller, ok := CallerFrom(c)
	if !ok {
		return "guest"
	}
	if caller.Ref != "" {
		return caller.Ref
	}
	if g, ok := caller.Anonymous(); ok {
		return "session:" + g.SessionID
	}
	return "guest"
}

// deny writes the system error envelope used by every middleware.
func deny(c echo.Context, status int, code, msg string) error {
	return c.JSON(status, echo.Map{"error": code, "message": msg})
}

func unauthorized(c echo.Context, msg string) error {
	return deny(c, http.StatusUnauthorized, "unauthorized", msg)
}
