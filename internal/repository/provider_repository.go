package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/citizen-booking/internal/model"
)

// ProviderRepo reads service providers, their timesheet slots and events.
type ProviderRepo struct {
	db *sql.DB
}

func NewProviderRepo(db *sql.DB) *ProviderRepo { return &ProviderRepo{db: db} }

const providerColumns = `id, service_id, name, email, phone, auto_accept_bookings`

func scanProvider(row interface{ Scan(...any) error }) (*model.ServiceProvider, error) {
	var p model.ServiceProvider
	if err := row.Scan(&p.ID, &p.ServiceID, &p.Name, &p.Email, &p.Phone, &p.AutoAcceptBookings); err != nil {
		return nil, err
	}
	return &p, nil
}

func getProvider(ctx context.Context, q queryer, id int64) (*model.ServiceProvider, error) {
	p, err := scanProvider(q.QueryRowContext(ctx, `SELECT `+providerColumns+` FROM service_providers WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// GetByID returns a provider outside any transaction.
func (r *ProviderRepo) GetByID(ctx context.Context, id int64) (*model.ServiceProvider, error) {
	return getProvider(ctx, r.db, id)
}

// GetTx returns a provider inside tx.
func (r *ProviderRepo) GetTx(ctx context.Context, tx *sql.Tx, id int64) (*model.ServiceProvider, error) {
	return getProvider(ctx, tx, id)
}

// ListByServiceTx returns the providers of a service ordered by id, which is
// the order auto-assignment scans them in.
func (r *ProviderRepo) ListByServiceTx(ctx context.Context, tx *sql.Tx, serviceID int64) ([]model.ServiceProvider, error) {
	return listProviders(ctx, tx, serviceID)
}

// ListByService is ListByServiceTx outside a transaction.
func (r *ProviderRepo) ListByService(ctx context.Context, serviceID int64) ([]model.ServiceProvider, error) {
	return listProviders(ctx, r.db, serviceID)
}

func listProviders(ctx context.Context, q queryer, serviceID int64) ([]model.ServiceProvider, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+providerColumns+` FROM service_providers WHERE service_id = ? ORDER BY id`, serviceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.ServiceProvider
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// TimeslotsCoveringTx returns the provider's timeslots that fully contain
// [start, end).
func (r *ProviderRepo) TimeslotsCoveringTx(ctx context.Context, tx *sql.Tx, providerID int64, start, end time.Time) ([]model.Timeslot, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id, service_provider_id, start_at, end_at, capacity
		FROM timeslots
		WHERE service_provider_id = ? AND start_at <= ? AND end_at >= ?
		ORDER BY start_at, id`,
		providerID, fmtTime(start), fmtTime(end))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Timeslot
	for rows.Next() {
		var (
			ts       model.Timeslot
			from, to dbTime
		)
		if err := rows.Scan(&ts.ID, &ts.ServiceProviderID, &from, &to, &ts.Capacity); err != nil {
			return nil, err
		}
		ts.StartDateTime, ts.EndDateTime = from.Time, to.Time
		out = append(out, ts)
	}
	return out, rows.Err()
}

// EventTx returns an event inside tx.
func (r *ProviderRepo) EventTx(ctx context.Context, tx *sql.Tx, id int64) (*model.Event, error) {
	var (
		e          model.Event
		start, end dbTime
	)
	err := tx.QueryRowContext(ctx, `SELECT id, service_id, title, start_at, end_at, capacity FROM events WHERE id = ?`, id).
		Scan(&e.ID, &e.ServiceID, &e.Title, &start, &end, &e.Capacity)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	e.StartDateTime, e.EndDateTime = start.Time, end.Time
	return &e, nil
}

// Create inserts a provider and sets its ID.
func (r *ProviderRepo) Create(ctx context.Context, p *model.ServiceProvider) error {
	res, err := r.db.ExecContext(ctx, `INSERT INTO service_providers (service_id, name, email, phone, auto_accept_bookings)
		VALUES (?, ?, ?, ?, ?)`, p.ServiceID, p.Name, p.Email, p.Phone, p.AutoAcceptBookings)
	if err != nil {
		return err
	}
	p.ID, err = res.LastInsertId()
	return err
}

// CreateTimeslot inserts a timeslot and sets its ID.
func (r *ProviderRepo) CreateTimeslot(ctx context.Context, ts *model.Timeslot) error {
	res, err := r.db.ExecContext(ctx, `INSERT INTO timeslots (service_provider_id, start_at, end_at, capacity) VALUES (?, ?, ?, ?)`,
		ts.ServiceProviderID, fmtTime(ts.StartDateTime), fmtTime(ts.EndDateTime), ts.Capacity)
	if err != nil {
		return err
	}
	ts.ID, err = res.LastInsertId()
	return err
}

// CreateEvent inserts an event and sets its ID.
func (r *ProviderRepo) CreateEvent(ctx context.Context, e *model.Event) error {
	res, err := r.db.ExecContext(ctx, `INSERT INTO events (service_id, title, start_at, end_at, capacity) VALUES (?, ?, ?, ?, ?)`,
		e.ServiceID, e.Title, fmtTime(e.StartDateTime), fmtTime(e.EndDateTime), e.Capacity)
	if err != nil {
		return err
	}
	e.ID, err = res.LastInsertId()
	return err
}
