package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/citizen-booking/internal/authscope"
	"github.com/iliyamo/citizen-booking/internal/idtoken"
	"github.com/iliyamo/citizen-booking/internal/middleware"
	"github.com/iliyamo/citizen-booking/internal/model"
	"github.com/iliyamo/citizen-booking/internal/notification"
	"github.com/iliyamo/citizen-booking/internal/reservation"
	"github.com/iliyamo/citizen-booking/internal/testutil"
)

type discardSink struct{}

func (discardSink) Dispatch(context.Context, notification.Event) {}

func day(days, hour, min int) time.Time {
	return time.Date(2026, 3, 2+days, hour, min, 0, 0, time.UTC)
}

var (
	tan = model.CitizenDetails{
		CitizenUinFin: "S1234567A",
		CitizenName:   "Tan Ah Kow",
		CitizenEmail:  "tan@example.com",
		CitizenPhone:  "+6591234567",
	}
	citizenCaller = authscope.Caller{Ref: "citizen-1", Groups: []authscope.Group{authscope.Citizen("citizen-1", "S1234567A")}}
	agencyCaller  = authscope.Caller{Ref: "agency-ops", Groups: []authscope.Group{authscope.Agency()}}
)

type server struct {
	t          *testing.T
	e          *echo.Echo
	caller     *authscope.Caller
	serviceID  int64
	providerID int64
	tokens     *idtoken.Codec
}

func newServer(t *testing.T) *server {
	t.Helper()
	db := testutil.NewDB(t)
	org := testutil.Organisation(t, db, "Immigration")
	serviceID := testutil.Service(t, db, model.Service{OrganisationID: org, Name: "Passport renewal"})
	providerID := testutil.Provider(t, db, model.ServiceProvider{ServiceID: serviceID, Name: "counter-1", Email: "counter-1@example.gov"})
	testutil.Timeslot(t, db, providerID, day(1, 9, 0), day(1, 12, 0), 1)

	clock := testutil.NewClock(day(0, 8, 0))
	engine := reservation.NewWithRepositories(db, discardSink{}, zap.NewNop(), clock.Now, reservation.Options{})
	tokens, err := idtoken.New([]byte("0123456789abcdef0123"), "booking")
	require.NoError(t, err)

	s := &server{t: t, e: echo.New(), serviceID: serviceID, providerID: providerID, tokens: tokens}
	s.e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if s.caller != nil {
				c.Set(middleware.CallerKey, *s.caller)
			}
			return next(c)
		}
	})
	for prefix, ids := range map[string]IDCodec{"/v1": NumericIDs{}, "/v2": TokenIDs{Codec: tokens}} {
		h := NewBookingHandler(engine, ids, nil)
		g := s.e.Group(prefix)
		g.POST("/bookings", h.Create)
		g.POST("/bookings/admin", h.CreateAdmin)
		g.POST("/bookings/bulk", h.CreateBulk)
		g.GET("/bookings", h.List)
		g.GET("/bookings/csv", h.ExportCSV)
		g.GET("/bookings/uuid/:uuid", h.GetByUUID)
		g.GET("/bookings/:id", h.Get)
		g.GET("/bookings/:id/providers", h.Providers)
		g.POST("/bookings/:id/accept", h.Accept)
		g.POST("/bookings/:id/reject", h.Reject)
		g.POST("/bookings/:id/cancel", h.Cancel)
		g.GET("/bookinglogs", h.ChangeLogs)
	}
	return s
}

func (s *server) as(c authscope.Caller) *server {
	s.caller = &c
	return s
}

func (s *server) do(method, target string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func (s *server) request(start, end time.Time) reservation.CreateRequest {
	return reservation.CreateRequest{
		ServiceID:         s.serviceID,
		ServiceProviderID: &s.providerID,
		StartDateTime:     start,
		EndDateTime:       end,
		Details:           tan,
	}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

// codes extracts the business error codes of a {"data": [...]} body.
func codes(body map[string]any) []float64 {
	var out []float64
	list, _ := body["data"].([]any)
	for _, v := range list {
		if m, ok := v.(map[string]any); ok {
			out = append(out, m["code"].(float64))
		}
	}
	return out
}

func TestCreateAndAccept(t *testing.T) {
	s := newServer(t)

	rec := s.as(citizenCaller).do(http.MethodPost, "/v1/bookings", s.request(day(1, 9, 0), day(1, 9, 30)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode(t, rec)
	assert.Equal(t, float64(1), created["id"])
	assert.Equal(t, "PendingApproval", created["status"])

	rec = s.as(citizenCaller).do(http.MethodPost, "/v1/bookings", s.request(day(1, 9, 15), day(1, 9, 45)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []float64{10001}, codes(decode(t, rec)))

	rec = s.as(agencyCaller).do(http.MethodPost, "/v1/bookings/1/accept", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Accepted", decode(t, rec)["status"])

	rec = s.as(agencyCaller).do(http.MethodGet, "/v1/bookings?status=Accepted,PendingApproval", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode(t, rec)
	assert.Equal(t, float64(1), page["total"])
	assert.Equal(t, float64(1), page["maxId"])

	rec = s.as(agencyCaller).do(http.MethodGet, "/v1/bookinglogs?bookingIds=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	logs := decode(t, rec)["data"].([]any)
	require.Len(t, logs, 2)
	assert.Equal(t, "create", logs[0].(map[string]any)["action"])
	assert.Equal(t, "accept", logs[1].(map[string]any)["action"])
}

func TestErrorEnvelopes(t *testing.T) {
	s := newServer(t)

	rec := s.do(http.MethodGet, "/v1/bookings/1", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", decode(t, rec)["error"])

	rec = s.as(agencyCaller).do(http.MethodGet, "/v1/bookings/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "bad_request", decode(t, rec)["error"])

	rec = s.as(agencyCaller).do(http.MethodGet, "/v1/bookings/999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decode(t, rec)["error"])

	rec = s.as(agencyCaller).do(http.MethodGet, "/v1/bookings?limit=101", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.as(agencyCaller).do(http.MethodGet, "/v1/bookings?status=Bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.as(agencyCaller).do(http.MethodGet, "/v1/bookings?from=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOpaqueIDs(t *testing.T) {
	s := newServer(t)

	rec := s.as(citizenCaller).do(http.MethodPost, "/v2/bookings", s.request(day(1, 10, 0), day(1, 10, 30)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	token, ok := decode(t, rec)["id"].(string)
	require.True(t, ok)
	assert.Equal(t, s.tokens.Encode(1), token)

	rec = s.as(citizenCaller).do(http.MethodGet, "/v2/bookings/"+token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, token, decode(t, rec)["id"])

	rec = s.as(citizenCaller).do(http.MethodGet, "/v2/bookings/1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.as(agencyCaller).do(http.MethodGet, "/v2/bookinglogs?bookingIds="+token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	logs := decode(t, rec)["data"].([]any)
	require.Len(t, logs, 1)
	assert.Equal(t, token, logs[0].(map[string]any)["bookingId"])
}

func TestCreateBulkReportsEachItem(t *testing.T) {
	s := newServer(t)

	good := s.request(day(2, 9, 0), day(2, 9, 30))
	bad := s.request(day(2, 11, 0), day(2, 10, 0))
	rec := s.as(agencyCaller).do(http.MethodPost, "/v1/bookings/bulk", bulkRequest{Bookings: []reservation.CreateRequest{good, bad}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	results := decode(t, rec)["results"].([]any)
	require.Len(t, results, 2)
	first := results[0].(map[string]any)
	assert.Equal(t, float64(http.StatusCreated), first["status"])
	assert.NotNil(t, first["booking"])

	second := results[1].(map[string]any)
	assert.Equal(t, float64(http.StatusBadRequest), second["status"])
	assert.Nil(t, second["booking"])
	assert.Contains(t, codes(second["error"].(map[string]any)), float64(10005))

	rec = s.as(agencyCaller).do(http.MethodPost, "/v1/bookings/bulk", bulkRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportCSV(t *testing.T) {
	s := newServer(t)
	require.Equal(t, http.StatusCreated, s.as(citizenCaller).do(http.MethodPost, "/v1/bookings", s.request(day(1, 9, 0), day(1, 9, 30))).Code)

	rec := s.as(agencyCaller).do(http.MethodGet, "/v1/bookings/csv", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get(echo.HeaderContentType))
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[1], "1,"))
}

func TestProvidersAndCancel(t *testing.T) {
	s := newServer(t)
	require.Equal(t, http.StatusCreated, s.as(citizenCaller).do(http.MethodPost, "/v1/bookings", s.request(day(1, 9, 0), day(1, 9, 30))).Code)

	rec := s.as(agencyCaller).do(http.MethodGet, "/v1/bookings/1/providers", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode(t, rec)["data"])

	rec = s.as(citizenCaller).do(http.MethodPost, "/v1/bookings/1/cancel", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code, "pending bookings are rejected, not cancelled")
	assert.Contains(t, rec.Body.String(), "10012")

	require.Equal(t, http.StatusOK, s.as(agencyCaller).do(http.MethodPost, "/v1/bookings/1/accept", nil).Code)
	rec = s.as(citizenCaller).do(http.MethodPost, "/v1/bookings/1/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Cancelled", decode(t, rec)["status"])
}
