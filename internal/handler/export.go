package handler

import (
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/citizen-booking/internal/model"
)

var csvHeader = []string{
	"id", "uuid", "status", "serviceId", "serviceProviderId", "eventId",
	"startDateTime", "endDateTime", "citizenName", "citizenUinFin",
	"citizenEmail", "citizenPhone", "refId", "location", "createdAt", "updatedAt",
}

func optID(id *int64) string {
	if id == nil {
		return ""
	}
	return strconv.FormatInt(*id, 10)
}

// writeCSV writes one row per booking after a header row.
func writeCSV(w io.Writer, ids IDCodec, bookings []model.Booking) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, b := range bookings {
		row := []string{
			fmt.Sprint(ids.Format(b.ID)),
			b.UUID,
			string(b.Status),
			strconv.FormatInt(b.ServiceID, 10),
			optID(b.ServiceProviderID),
			optID(b.EventID),
			b.StartDateTime.UTC().Format(time.RFC3339),
			b.EndDateTime.UTC().Format(time.RFC3339),
			b.CitizenName,
			b.CitizenUinFin,
			b.CitizenEmail,
			b.CitizenPhone,
			b.RefID,
			b.Location,
			b.CreatedAt.UTC().Format(time.RFC3339),
			b.UpdatedAt.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportCSV handles GET /bookings/csv.  It accepts the GET /bookings
// filters and returns every matching booking, unpaged.
func (h *BookingHandler) ExportCSV(c echo.Context) error {
	caller, err := callerOf(c)
	if err != nil {
		return h.fail(c, err)
	}
	q, err := listQuery(c)
	if err != nil {
		return h.fail(c, err)
	}
	page, err := h.Engine.ExportAll(c.Request().Context(), caller, q)
	if err != nil {
		return h.fail(c, err)
	}
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
	res.Header().Set(echo.HeaderContentDisposition, `attachment; filename="bookings.csv"`)
	res.WriteHeader(http.StatusOK)
	return writeCSV(res, h.IDs, page.Items)
}
