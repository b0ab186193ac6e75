package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/citizen-booking/internal/authscope"
	"github.com/iliyamo/citizen-booking/internal/lifecycle"
	"github.com/iliyamo/citizen-booking/internal/model"
	"github.com/iliyamo/citizen-booking/internal/paging"
)

// BookingFilter narrows a booking search.  Scope is always applied;
// the other fields are optional.  Shadow rows are never returned.
type BookingFilter struct {
	Scope             authscope.Predicate
	Statuses          []lifecycle.Status
	ServiceID         *int64
	ServiceProviderID *int64
	From              *time.Time
	To                *time.Time
	CitizenUinFin     string
}

// scopeSQL renders a visibility predicate over the b (bookings) and s
// (services) aliases.
func scopeSQL(p authscope.Predicate) (string, []any) {
	if p.All {
		return "1=1", nil
	}
	var (
		terms []string
		args  []any
	)
	if len(p.ServiceProviderIDs) > 0 {
		terms = append(terms, "b.service_provider_id IN ("+placeholders(len(p.ServiceProviderIDs))+")")
		args = append(args, int64Args(p.ServiceProviderIDs)...)
	}
	if len(p.ServiceIDs) > 0 {
		terms = append(terms, "b.service_id IN ("+placeholders(len(p.ServiceIDs))+")")
		args = append(args, int64Args(p.ServiceIDs)...)
	}
	if len(p.OrganisationIDs) > 0 {
		terms = append(terms, "s.organisation_id IN ("+placeholders(len(p.OrganisationIDs))+")")
		args = append(args, int64Args(p.OrganisationIDs)...)
	}
	if len(terms) == 0 {
		return "1=0", nil
	}
	return "(" + strings.Join(terms, " OR ") + ")", args
}

func (f BookingFilter) where() (string, []any) {
	scope, args := scopeSQL(f.Scope)
	clauses := []string{"b.original_booking_id IS NULL", scope}
	if len(f.Statuses) > 0 {
		clauses = append(clauses, "b.status IN ("+placeholders(len(f.Statuses))+")")
		for _, s := range f.Statuses {
			args = append(args, string(s))
		}
	}
	if f.ServiceID != nil {
		clauses = append(clauses, "b.service_id = ?")
		args = append(args, *f.ServiceID)
	}
	if f.ServiceProviderID != nil {
		clauses = append(clauses, "b.service_provider_id = ?")
		args = append(args, *f.ServiceProviderID)
	}
	if f.From != nil {
		clauses = append(clauses, "b.end_at > ?")
		args = append(args, fmtTime(*f.From))
	}
	if f.To != nil {
		clauses = append(clauses, "b.start_at < ?")
		args = append(args, fmtTime(*f.To))
	}
	if f.CitizenUinFin != "" {
		clauses = append(clauses, "b.citizen_uinfin = ?")
		args = append(args, f.CitizenUinFin)
	}
	return strings.Join(clauses, " AND "), args
}

// Search returns a pageable view of the bookings matching f.
func (r *BookingRepo) Search(f BookingFilter) paging.Source[model.Booking] {
	where, args := f.where()
	return &bookingSource{db: r.db, where: where, args: args}
}

type bookingSource struct {
	db    queryer
	where string
	args  []any
}

const bookingFrom = ` FROM bookings b JOIN services s ON s.id = b.service_id WHERE `

func (s *bookingSource) MaxID(ctx context.Context) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(b.id), 0)`+bookingFrom+s.where, s.args...).Scan(&id)
	return id, err
}

func (s *bookingSource) Count(ctx context.Context, maxID int64) (int, error) {
	var n int
	args := append(append([]any{}, s.args...), maxID)
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*)`+bookingFrom+s.where+` AND b.id <= ?`, args...).Scan(&n)
	return n, err
}

func (s *bookingSource) Fetch(ctx context.Context, maxID int64, skip, take int) ([]model.Booking, error) {
	query := bookingSelect + ` WHERE ` + s.where + ` AND b.id <= ? ORDER BY b.id`
	args := append(append([]any{}, s.args...), maxID)
	if take >= 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, take, skip)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search bookings: %w", err)
	}
	var list []*model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		list = append(list, b)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("search bookings: %w", err)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := loadSlots(ctx, s.db, list); err != nil {
		return nil, err
	}
	out := make([]model.Booking, len(list))
	for i, b := range list {
		out[i] = *b
	}
	return out, nil
}
