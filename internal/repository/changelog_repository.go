package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/citizen-booking/internal/authscope"
	"github.com/iliyamo/citizen-booking/internal/model"
	"github.com/iliyamo/citizen-booking/internal/paging"
)

// ChangeLogRepo persists booking_changelogs rows.  Entries are append-only.
type ChangeLogRepo struct {
	db *sql.DB
}

func NewChangeLogRepo(db *sql.DB) *ChangeLogRepo { return &ChangeLogRepo{db: db} }

// AppendTx inserts e inside tx and sets e.ID.
func (r *ChangeLogRepo) AppendTx(ctx context.Context, tx *sql.Tx, e *model.ChangeLogEntry) error {
	prev, err := json.Marshal(e.PreviousState)
	if err != nil {
		return err
	}
	next, err := json.Marshal(e.NewState)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `INSERT INTO booking_changelogs
		(booking_id, service_id, created_at, user_ref, user_type, action, previous_state, new_state)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.BookingID, e.ServiceID, fmtTime(e.Timestamp), e.Actor.Ref, e.Actor.Type, string(e.Action), string(prev), string(next))
	if err != nil {
		return fmt.Errorf("insert changelog: %w", err)
	}
	e.ID, err = res.LastInsertId()
	return err
}

// ChangeLogFilter narrows a change log query.  Scope applies to the booking
// each entry belongs to.
type ChangeLogFilter struct {
	Scope        authscope.Predicate
	ChangedSince *time.Time
	ChangedUntil *time.Time
	BookingIDs   []int64
	ServiceID    *int64
}

func (f ChangeLogFilter) where() (string, []any) {
	scope, args := scopeSQL(f.Scope)
	clauses := []string{scope}
	if f.ChangedSince != nil {
		clauses = append(clauses, "c.created_at >= ?")
		args = append(args, fmtTime(*f.ChangedSince))
	}
	if f.ChangedUntil != nil {
		clauses = append(clauses, "c.created_at < ?")
		args = append(args, fmtTime(*f.ChangedUntil))
	}
	if len(f.BookingIDs) > 0 {
		clauses = append(clauses, "c.booking_id IN ("+placeholders(len(f.BookingIDs))+")")
		args = append(args, int64Args(f.BookingIDs)...)
	}
	if f.ServiceID != nil {
		clauses = append(clauses, "c.service_id = ?")
		args = append(args, *f.ServiceID)
	}
	return strings.Join(clauses, " AND "), args
}

// Search returns a pageable view of the entries matching f.
func (r *ChangeLogRepo) Search(f ChangeLogFilter) paging.Source[model.ChangeLogEntry] {
	where, args := f.where()
	return &changeLogSource{db: r.db, where: where, args: args}
}

// ForBooking returns every entry of one booking in insertion order.
func (r *ChangeLogRepo) ForBooking(ctx context.Context, bookingID int64) ([]model.ChangeLogEntry, error) {
	src := r.Search(ChangeLogFilter{Scope: authscope.Predicate{All: true}, BookingIDs: []int64{bookingID}})
	max, err := src.MaxID(ctx)
	if err != nil {
		return nil, err
	}
	return src.Fetch(ctx, max, 0, -1)
}

type changeLogSource struct {
	db    queryer
	where string
	args  []any
}

const changeLogFrom = ` FROM booking_changelogs c
	JOIN bookings b ON b.id = c.booking_id
	JOIN services s ON s.id = b.service_id
	WHERE `

func (s *changeLogSource) MaxID(ctx context.Context) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(c.id), 0)`+changeLogFrom+s.where, s.args...).Scan(&id)
	return id, err
}

func (s *changeLogSource) Count(ctx context.Context, maxID int64) (int, error) {
	var n int
	args := append(append([]any{}, s.args...), maxID)
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*)`+changeLogFrom+s.where+` AND c.id <= ?`, args...).Scan(&n)
	return n, err
}

func (s *changeLogSource) Fetch(ctx context.Context, maxID int64, skip, take int) ([]model.ChangeLogEntry, error) {
	query := `SELECT c.id, c.booking_id, c.service_id, c.created_at, c.user_ref, c.user_type, c.action,
		c.previous_state, c.new_state` + changeLogFrom + s.where + ` AND c.id <= ? ORDER BY c.id`
	args := append(append([]any{}, s.args...), maxID)
	if take >= 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, take, skip)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search changelogs: %w", err)
	}
	defer rows.Close()

	out := []model.ChangeLogEntry{}
	for rows.Next() {
		var (
			e          model.ChangeLogEntry
			at         dbTime
			action     string
			prev, next string
		)
		if err := rows.Scan(&e.ID, &e.BookingID, &e.ServiceID, &at, &e.Actor.Ref, &e.Actor.Type, &action, &prev, &next); err != nil {
			return nil, err
		}
		e.Timestamp = at.Time
		e.Action = model.ChangeLogAction(action)
		if err := json.Unmarshal([]byte(prev), &e.PreviousState); err != nil {
			return nil, fmt.Errorf("decode changelog %d: %w", e.ID, err)
		}
		if err := json.Unmarshal([]byte(next), &e.NewState); err != nil {
			return nil, fmt.Errorf("decode changelog %d: %w", e.ID, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
