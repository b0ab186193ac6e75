package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/citizen-booking/internal/model"
)

// ServiceRepo reads services and their organisations and provides the
// per-service row lock that serializes booking writers.
type ServiceRepo struct {
	db *sql.DB
}

func NewServiceRepo(db *sql.DB) *ServiceRepo { return &ServiceRepo{db: db} }

// DB exposes the handle so callers can open transactions.
func (r *ServiceRepo) DB() *sql.DB { return r.db }

// LockTx takes the write lock of a service row.  It must be the first
// statement of a booking transaction: under REPEATABLE READ the snapshot is
// taken by the first read, so every read after the lock observes the last
// committed writer for this service.
func (r *ServiceRepo) LockTx(ctx context.Context, tx *sql.Tx, serviceID int64) error {
	res, err := tx.ExecContext(ctx, `UPDATE services SET lock_version = lock_version + 1 WHERE id = ?`, serviceID)
	if err != nil {
		return fmt.Errorf("lock service %d: %w", serviceID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

const serviceColumns = `id, organisation_id, name, is_on_hold, is_stand_alone, is_sp_auto_assigned,
	two_step_approval, min_days_in_advance, max_days_in_advance, require_salutation,
	allow_anonymous_bookings, send_citizen_email, send_provider_email, send_sms, external_agency`

func scanService(row interface{ Scan(...any) error }) (*model.Service, error) {
	var (
		s        model.Service
		min, max sql.NullInt64
		agency   sql.NullString
	)
	if err := row.Scan(&s.ID, &s.OrganisationID, &s.Name, &s.IsOnHold, &s.IsStandAlone, &s.IsSpAutoAssigned,
		&s.IsTwoStepApprovalRequired, &min, &max, &s.RequireSalutation,
		&s.AllowAnonymousBookings, &s.SendCitizenEmail, &s.SendProviderEmail, &s.SendSMS, &agency); err != nil {
		return nil, err
	}
	if min.Valid {
		v := int(min.Int64)
		s.MinDaysInAdvance = &v
	}
	if max.Valid {
		v := int(max.Int64)
		s.MaxDaysInAdvance = &v
	}
	s.ExternalAgency = agency.String
	return &s, nil
}

func getService(ctx context.Context, q queryer, id int64) (*model.Service, error) {
	s, err := scanService(q.QueryRowContext(ctx, `SELECT `+serviceColumns+` FROM services WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return s, err
}

// GetByID returns a service outside any transaction.
func (r *ServiceRepo) GetByID(ctx context.Context, id int64) (*model.Service, error) {
	return getService(ctx, r.db, id)
}

// GetTx returns a service inside tx.
func (r *ServiceRepo) GetTx(ctx context.Context, tx *sql.Tx, id int64) (*model.Service, error) {
	return getService(ctx, tx, id)
}

// List returns every service ordered by id.
func (r *ServiceRepo) List(ctx context.Context) ([]model.Service, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+serviceColumns+` FROM services ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Service
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// CreateOrganisation inserts an organisation and sets its ID.
func (r *ServiceRepo) CreateOrganisation(ctx context.Context, o *model.Organisation) error {
	res, err := r.db.ExecContext(ctx, `INSERT INTO organisations (name) VALUES (?)`, o.Name)
	if err != nil {
		return err
	}
	o.ID, err = res.LastInsertId()
	return err
}

func optInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func optString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Create inserts a service and sets its ID.
func (r *ServiceRepo) Create(ctx context.Context, s *model.Service) error {
	res, err := r.db.ExecContext(ctx, `INSERT INTO services (organisation_id, name, is_on_hold, is_stand_alone,
		is_sp_auto_assigned, two_step_approval, min_days_in_advance, max_days_in_advance, require_salutation,
		allow_anonymous_bookings, send_citizen_email, send_provider_email, send_sms, external_agency)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.OrganisationID, s.Name, s.IsOnHold, s.IsStandAlone, s.IsSpAutoAssigned, s.IsTwoStepApprovalRequired,
		optInt(s.MinDaysInAdvance), optInt(s.MaxDaysInAdvance), s.RequireSalutation, s.AllowAnonymousBookings,
		s.SendCitizenEmail, s.SendProviderEmail, s.SendSMS, optString(s.ExternalAgency))
	if err != nil {
		return err
	}
	s.ID, err = res.LastInsertId()
	return err
}
