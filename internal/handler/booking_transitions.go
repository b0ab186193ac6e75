package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/citizen-booking/internal/authscope"
	"github.com/iliyamo/citizen-booking/internal/model"
	"github.com/iliyamo/citizen-booking/internal/reservation"
)

type mutation func(ctx context.Context, caller authscope.Caller, id int64) (*model.Booking, error)

// mutate runs fn for the booking in the route and writes the result.
func (h *BookingHandler) mutate(c echo.Context, status int, fn mutation) error {
	caller, err := callerOf(c)
	if err != nil {
		return h.fail(c, err)
	}
	id, err := h.bookingID(c)
	if err != nil {
		return h.fail(c, err)
	}
	b, err := fn(c.Request().Context(), caller, id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(status, h.view(b))
}

// Reschedule handles POST /bookings/:id/reschedule.  It answers 201 with
// the on-hold reschedule; the booking moves once that is validated.
func (h *BookingHandler) Reschedule(c echo.Context) error {
	var req reservation.RescheduleRequest
	if err := c.Bind(&req); err != nil {
		return h.fail(c, errInvalidBody)
	}
	return h.mutate(c, http.StatusCreated, func(ctx context.Context, caller authscope.Caller, id int64) (*model.Booking, error) {
		return h.Engine.Reschedule(ctx, caller, id, req)
	})
}

// Accept handles POST /bookings/:id/accept.  The body may name a provider
// to assign on acceptance.
func (h *BookingHandler) Accept(c echo.Context) error {
	var req reservation.AcceptRequest
	if err := c.Bind(&req); err != nil {
		return h.fail(c, errInvalidBody)
	}
	return h.mutate(c, http.StatusOK, func(ctx context.Context, caller authscope.Caller, id int64) (*model.Booking, error) {
		return h.Engine.Accept(ctx, caller, id, req)
	})
}

// Reject handles POST /bookings/:id/reject.
func (h *BookingHandler) Reject(c echo.Context) error {
	return h.mutate(c, http.StatusOK, h.Engine.Reject)
}

// Cancel handles POST /bookings/:id/cancel.
func (h *BookingHandler) Cancel(c echo.Context) error {
	return h.mutate(c, http.StatusOK, h.Engine.Cancel)
}

// ValidateOnHold handles POST /bookings/:id/validateOnHold with the
// citizen's details as body.
func (h *BookingHandler) ValidateOnHold(c echo.Context) error {
	var details model.CitizenDetails
	if err := c.Bind(&details); err != nil {
		return h.fail(c, errInvalidBody)
	}
	return h.mutate(c, http.StatusOK, func(ctx context.Context, caller authscope.Caller, id int64) (*model.Booking, error) {
		return h.Engine.ValidateOnHold(ctx, caller, id, details)
	})
}
