// Package testutil provides SQLite-backed fixtures and a controllable clock
// for package tests.  Seed helpers write raw SQL so any package, including
// repository, can use them without an import cycle.
package testutil

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/citizen-booking/internal/database"
	"github.com/iliyamo/citizen-booking/internal/model"
)

// NewDB opens a migrated SQLite database in a temp dir, closed on cleanup.
func NewDB(t testing.TB) *sql.DB {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "booking.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db, database.DriverSQLite))
	return db
}

const layout = "2006-01-02 15:04:05"

func exec(t testing.TB, db *sql.DB, query string, args ...any) int64 {
	t.Helper()
	res, err := db.Exec(query, args...)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

// Organisation inserts an organisation.
func Organisation(t testing.TB, db *sql.DB, name string) int64 {
	return exec(t, db, `INSERT INTO organisations (name) VALUES (?)`, name)
}

func optInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

// Service inserts s (ID is ignored) and returns the new id.
func Service(t testing.TB, db *sql.DB, s model.Service) int64 {
	var agency any
	if s.ExternalAgency != "" {
		agency = s.ExternalAgency
	}
	return exec(t, db, `INSERT INTO services (organisation_id, name, is_on_hold, is_stand_alone, is_sp_auto_assigned,
		two_step_approval, min_days_in_advance, max_days_in_advance, require_salutation, allow_anonymous_bookings,
		send_citizen_email, send_provider_email, send_sms, external_agency)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.OrganisationID, s.Name, s.IsOnHold, s.IsStandAlone, s.IsSpAutoAssigned, s.IsTwoStepApprovalRequired,
		optInt(s.MinDaysInAdvance), optInt(s.MaxDaysInAdvance), s.RequireSalutation, s.AllowAnonymousBookings,
		s.SendCitizenEmail, s.SendProviderEmail, s.SendSMS, agency)
}

// Provider inserts p (ID is ignored) and returns the new id.
func Provider(t testing.TB, db *sql.DB, p model.ServiceProvider) int64 {
	return exec(t, db, `INSERT INTO service_providers (service_id, name, email, phone, auto_accept_bookings)
		VALUES (?, ?, ?, ?, ?)`, p.ServiceID, p.Name, p.Email, p.Phone, p.AutoAcceptBookings)
}

// Timeslot inserts a timesheet slot.
func Timeslot(t testing.TB, db *sql.DB, providerID int64, start, end time.Time, capacity int) int64 {
	return exec(t, db, `INSERT INTO timeslots (service_provider_id, start_at, end_at, capacity) VALUES (?, ?, ?, ?)`,
		providerID, start.UTC().Format(layout), end.UTC().Format(layout), capacity)
}

// Event inserts a group event.
func Event(t testing.TB, db *sql.DB, serviceID int64, title string, start, end time.Time, capacity int) int64 {
	return exec(t, db, `INSERT INTO events (service_id, title, start_at, end_at, capacity) VALUES (?, ?, ?, ?, ?)`,
		serviceID, title, start.UTC().Format(layout), end.UTC().Format(layout), capacity)
}

// Clock is a settable, concurrency-safe time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a clock fixed at now, truncated to whole seconds.
func NewClock(now time.Time) *Clock { return &Clock{now: now.UTC().Truncate(time.Second)} }

// Now returns the current fixed time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
