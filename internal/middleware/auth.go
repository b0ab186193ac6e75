package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/citizen-booking/internal/utils"
)

// Authenticate returns an Echo middleware that validates a Bearer caller
// token and stores the resolved authscope.Caller in the request context
// under CallerKey.  The secret must match the one used when issuing
// tokens.
func Authenticate(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return unauthorized(c, "missing bearer token")
			}
			caller, err := utils.ParseCallerToken(secret, strings.TrimPrefix(auth, "Bearer "))
			if err != nil {
				return unauthorized(c, "invalid token")
			}
			c.Set(CallerKey, caller)
			return next(c)
		}
	}
}
