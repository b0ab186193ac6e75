package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/citizen-booking/internal/authscope"
	"github.com/iliyamo/citizen-booking/internal/idtoken"
	"github.com/iliyamo/citizen-booking/internal/model"
	"github.com/iliyamo/citizen-booking/internal/notification"
	"github.com/iliyamo/citizen-booking/internal/reservation"
	"github.com/iliyamo/citizen-booking/internal/testutil"
	"github.com/iliyamo/citizen-booking/internal/utils"
)

const secret = "router-test-secret"

type nopSink struct{}

func (nopSink) Dispatch(context.Context, notification.Event) {}

type fixture struct {
	t          *testing.T
	handler    http.Handler
	serviceID  int64
	providerID int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	org := testutil.Organisation(t, db, "Immigration")
	serviceID := testutil.Service(t, db, model.Service{OrganisationID: org, Name: "Passport renewal"})
	providerID := testutil.Provider(t, db, model.ServiceProvider{ServiceID: serviceID, Name: "counter-1"})
	start := time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC)
	testutil.Timeslot(t, db, providerID, start, start.Add(3*time.Hour), 2)

	clock := testutil.NewClock(time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC))
	tokens, err := idtoken.New([]byte("0123456789abcdef0123"), "booking")
	require.NoError(t, err)

	e := New(Deps{
		Engine:    reservation.NewWithRepositories(db, nopSink{}, zap.NewNop(), clock.Now, reservation.Options{}),
		DB:        db,
		Tokens:    tokens,
		JWTSecret: secret,
	})
	return &fixture{t: t, handler: e, serviceID: serviceID, providerID: providerID}
}

func (f *fixture) token(groups ...authscope.Group) string {
	f.t.Helper()
	tok, err := utils.NewCallerToken(secret, "user-1", groups, time.Hour)
	require.NoError(f.t, err)
	return tok.Token
}

func (f *fixture) do(method, target, bearer string, body any) *httptest.ResponseRecorder {
	f.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(f.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestAuthChain(t *testing.T) {
	f := newFixture(t)
	citizen := f.token(authscope.Citizen("user-1", "S1234567A"))
	agency := f.token(authscope.Agency())

	rec := f.do(http.MethodGet, "/v1/bookings", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(http.MethodGet, "/v1/bookings", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(http.MethodGet, "/v1/bookinglogs", citizen, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	start := time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC)
	req := reservation.CreateRequest{
		ServiceID:         f.serviceID,
		ServiceProviderID: &f.providerID,
		StartDateTime:     start,
		EndDateTime:       start.Add(30 * time.Minute),
		Details: model.CitizenDetails{
			CitizenUinFin: "S1234567A",
			CitizenName:   "Tan Ah Kow",
			CitizenEmail:  "tan@example.com",
		},
	}
	rec = f.do(http.MethodPost, "/v1/bookings", citizen, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = f.do(http.MethodGet, "/v1/bookinglogs", agency, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodGet, "/v2/bookings/1", citizen, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
