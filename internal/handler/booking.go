package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/citizen-booking/internal/model"
	"github.com/iliyamo/citizen-booking/internal/reservation"
)

// BookingHandler exposes the reservation engine over HTTP.  The same
// handler serves /v1 and /v2; only IDs differs.  Every method expects the
// auth middleware to have stored the caller on the context.
type BookingHandler struct {
	Engine *reservation.Engine
	IDs    IDCodec
	Log    *zap.Logger
}

// NewBookingHandler constructs a BookingHandler.  engine must be non-nil.
func NewBookingHandler(engine *reservation.Engine, ids IDCodec, log *zap.Logger) *BookingHandler {
	if engine == nil {
		panic("nil engine passed to NewBookingHandler")
	}
	if ids == nil {
		ids = NumericIDs{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &BookingHandler{Engine: engine, IDs: ids, Log: log.Named("http")}
}

func (h *BookingHandler) fail(c echo.Context, err error) error { return writeError(c, h.Log, err) }

func (h *BookingHandler) view(b *model.Booking) bookingView { return newBookingView(h.IDs, b) }

func (h *BookingHandler) bookingID(c echo.Context) (int64, error) { return h.IDs.Parse(c.Param("id")) }

// Create handles POST /bookings.  It returns 201 with the booking, or 400
// with every business rule the request broke.
func (h *BookingHandler) Create(c echo.Context) error {
	caller, err := callerOf(c)
	if err != nil {
		return h.fail(c, err)
	}
	var req reservation.CreateRequest
	if err := c.Bind(&req); err != nil {
		return h.fail(c, errInvalidBody)
	}
	b, err := h.Engine.Create(c.Request().Context(), caller, req)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, h.view(b))
}

// Get handles GET /bookings/:id.
func (h *BookingHandler) Get(c echo.Context) error {
	caller, err := callerOf(c)
	if err != nil {
		return h.fail(c, err)
	}
	id, err := h.bookingID(c)
	if err != nil {
		return h.fail(c, err)
	}
	b, err := h.Engine.Get(c.Request().Context(), caller, id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, h.view(b))
}

// GetByUUID handles GET /bookings/uuid/:uuid, used by anonymous sessions
// that only know the public identifier.
func (h *BookingHandler) GetByUUID(c echo.Context) error {
	caller, err := callerOf(c)
	if err != nil {
		return h.fail(c, err)
	}
	b, err := h.Engine.GetByUUID(c.Request().Context(), caller, c.Param("uuid"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, h.view(b))
}

// listQuery reads the booking filters shared by List and ExportCSV.
func listQuery(c echo.Context) (reservation.ListQuery, error) {
	var q reservation.ListQuery
	var err error
	if q.Statuses, err = queryStatuses(c); err != nil {
		return q, err
	}
	if q.ServiceID, err = queryInt64(c, "serviceId"); err != nil {
		return q, err
	}
	if q.ServiceProviderID, err = queryInt64(c, "serviceProviderId"); err != nil {
		return q, err
	}
	if q.From, err = queryTime(c, "from"); err != nil {
		return q, err
	}
	if q.To, err = queryTime(c, "to"); err != nil {
		return q, err
	}
	q.CitizenUinFin = c.QueryParam("citizenUinFin")
	return q, nil
}

// List handles GET /bookings.  Results are ordered by id and anchored on
// maxId so later pages stay stable while bookings are being created.
func (h *BookingHandler) List(c echo.Context) error {
	caller, err := callerOf(c)
	if err != nil {
		return h.fail(c, err)
	}
	q, err := listQuery(c)
	if err != nil {
		return h.fail(c, err)
	}
	if q.Page, err = pageRequest(c); err != nil {
		return h.fail(c, err)
	}
	page, err := h.Engine.List(c.Request().Context(), caller, q)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, mapPage(page, h.view))
}
