package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/citizen-booking/internal/reservation"
)

// CreateAdmin handles POST /bookings/admin.  Staff may book outside the
// timesheet; the advance-window limits do not apply.
func (h *BookingHandler) CreateAdmin(c echo.Context) error {
	caller, err := callerOf(c)
	if err != nil {
		return h.fail(c, err)
	}
	var req reservation.CreateRequest
	if err := c.Bind(&req); err != nil {
		return h.fail(c, errInvalidBody)
	}
	b, err := h.Engine.CreateAdmin(c.Request().Context(), caller, req)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, h.view(b))
}

type bulkRequest struct {
	Bookings []reservation.CreateRequest `json:"bookings"`
}

// bulkItem is one line of the bulk response.  Error carries the same
// envelope a single create would have returned.
type bulkItem struct {
	Index   int          `json:"index"`
	Status  int          `json:"status"`
	Booking *bookingView `json:"booking,omitempty"`
	Error   any          `json:"error,omitempty"`
}

// CreateBulk handles POST /bookings/bulk.  Items are created
// independently; the response is 200 with one result per item.
func (h *BookingHandler) CreateBulk(c echo.Context) error {
	caller, err := callerOf(c)
	if err != nil {
		return h.fail(c, err)
	}
	var req bulkRequest
	if err := c.Bind(&req); err != nil {
		return h.fail(c, errInvalidBody)
	}
	if len(req.Bookings) == 0 {
		return h.fail(c, errEmptyBulk)
	}
	results := h.Engine.CreateBulk(c.Request().Context(), caller, req.Bookings)
	items := make([]bulkItem, len(results))
	for i, r := range results {
		items[i] = bulkItem{Index: r.Index, Status: http.StatusCreated}
		if r.Err != nil {
			items[i].Status, items[i].Error = errorBody(r.Err)
			continue
		}
		v := h.view(r.Booking)
		items[i].Booking = &v
	}
	return c.JSON(http.StatusOK, echo.Map{"results": items})
}

// Providers handles GET /bookings/:id/providers.  It lists the providers
// that could take the booking's slots instead of the current one.
func (h *BookingHandler) Providers(c echo.Context) error {
	caller, err := callerOf(c)
	if err != nil {
		return h.fail(c, err)
	}
	id, err := h.bookingID(c)
	if err != nil {
		return h.fail(c, err)
	}
	providers, err := h.Engine.EligibleProviders(c.Request().Context(), caller, id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": providers})
}
