package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/citizen-booking/internal/apperr"
)

var (
	errInvalidBody = apperr.BadRequest("invalid request body")
	errEmptyBulk   = apperr.BadRequest("bookings must not be empty")
)

// statusOf maps a system error kind onto its HTTP status.
func statusOf(k apperr.Kind) int {
	switch k {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindBadRequest:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// errorBody renders err as either the business envelope
// {"data": [{code, message}]} or the system envelope {"error", "message"}.
func errorBody(err error) (int, any) {
	var v apperr.Validations
	if errors.As(err, &v) {
		return http.StatusBadRequest, echo.Map{"data": v}
	}
	var e *apperr.Error
	if errors.As(err, &e) {
		msg := e.Message
		if e.Kind == apperr.KindInternal {
			msg = "internal error"
		}
		return statusOf(e.Kind), echo.Map{"error": e.Kind.String(), "message": msg}
	}
	return http.StatusInternalServerError, echo.Map{"error": apperr.KindInternal.String(), "message": "internal error"}
}

// writeError sends err to the client.  Internal failures are logged with
// their cause; the client only sees a generic message.
func writeError(c echo.Context, log *zap.Logger, err error) error {
	status, body := errorBody(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed",
			zap.String("method", c.Request().Method),
			zap.String("path", c.Path()),
			zap.Error(err))
	}
	return c.JSON(status, body)
}
