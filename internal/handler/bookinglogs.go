package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/citizen-booking/internal/model"
	"github.com/iliyamo/citizen-booking/internal/reservation"
)

// ChangeLogs handles GET /bookinglogs.  Filters are changedSince,
// changedUntil (RFC 3339), bookingIds (comma separated, in the route's id
// format) and serviceId; paging follows GET /bookings.
func (h *BookingHandler) ChangeLogs(c echo.Context) error {
	caller, err := callerOf(c)
	if err != nil {
		return h.fail(c, err)
	}
	var q reservation.ChangeLogQuery
	if q.ChangedSince, err = queryTime(c, "changedSince"); err != nil {
		return h.fail(c, err)
	}
	if q.ChangedUntil, err = queryTime(c, "changedUntil"); err != nil {
		return h.fail(c, err)
	}
	if q.ServiceID, err = queryInt64(c, "serviceId"); err != nil {
		return h.fail(c, err)
	}
	for _, raw := range queryList(c, "bookingIds") {
		id, err := h.IDs.Parse(raw)
		if err != nil {
			return h.fail(c, err)
		}
		q.BookingIDs = append(q.BookingIDs, id)
	}
	if q.Page, err = pageRequest(c); err != nil {
		return h.fail(c, err)
	}

	page, err := h.Engine.ChangeLogs(c.Request().Context(), caller, q)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, mapPage(page, func(e *model.ChangeLogEntry) changeLogView {
		return newChangeLogView(h.IDs, e)
	}))
}
