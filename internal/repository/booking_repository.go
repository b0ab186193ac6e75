package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/citizen-booking/internal/lifecycle"
	"github.com/iliyamo/citizen-booking/internal/model"
)

// BookingRepo provides data access to the bookings and booked_slots tables.
// Mutating methods take the caller's transaction; the caller owns commit
// and rollback.
type BookingRepo struct {
	db *sql.DB
}

func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// DB exposes the handle so callers can open transactions.
func (r *BookingRepo) DB() *sql.DB { return r.db }

const bookingSelect = `SELECT b.id, b.uuid, b.status, b.start_at, b.end_at, b.created_at, b.updated_at,
	b.service_id, s.organisation_id, b.service_provider_id, b.event_id,
	b.citizen_uinfin, b.citizen_name, b.citizen_email, b.citizen_phone, b.citizen_salutation,
	b.dynamic_values, b.ref_id, b.location, b.description, b.video_conference_url,
	b.workflow_type, b.out_of_slot, b.creator_ref, b.creator_type, b.original_booking_id, b.on_hold_until
	FROM bookings b JOIN services s ON s.id = b.service_id`

func scanBooking(row interface{ Scan(...any) error }) (*model.Booking, error) {
	var (
		b                                  model.Booking
		status, workflow, creatorType      string
		start, end, created, updated, hold dbTime
		provider, event, original          sql.NullInt64
		dynamic, description               sql.NullString
	)
	err := row.Scan(&b.ID, &b.UUID, &status, &start, &end, &created, &updated,
		&b.ServiceID, &b.OrganisationID, &provider, &event,
		&b.CitizenUinFin, &b.CitizenName, &b.CitizenEmail, &b.CitizenPhone, &b.CitizenSalutation,
		&dynamic, &b.RefID, &b.Location, &description, &b.VideoConferenceURL,
		&workflow, &b.OutOfSlot, &b.CreatorRef, &creatorType, &original, &hold)
	if err != nil {
		return nil, err
	}
	b.Status = lifecycle.Status(status)
	b.WorkflowType = model.WorkflowType(workflow)
	b.CreatorType = model.CreatorType(creatorType)
	b.StartDateTime, b.EndDateTime = start.Time, end.Time
	b.CreatedAt, b.UpdatedAt = created.Time, updated.Time
	b.ServiceProviderID = nullInt(provider)
	b.EventID = nullInt(event)
	b.OriginalBookingID = nullInt(original)
	b.OnHoldUntil = hold.ptr()
	b.Description = description.String
	if dynamic.Valid && dynamic.String != "" {
		if err := json.Unmarshal([]byte(dynamic.String), &b.DynamicValues); err != nil {
			return nil, fmt.Errorf("decode dynamic values of booking %d: %w", b.ID, err)
		}
	}
	return &b, nil
}

func dynamicArg(v map[string]any) (any, error) {
	if len(v) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode dynamic values: %w", err)
	}
	return string(raw), nil
}

func getBooking(ctx context.Context, q queryer, where string, arg any) (*model.Booking, error) {
	b, err := scanBooking(q.QueryRowContext(ctx, bookingSelect+" WHERE "+where, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := loadSlots(ctx, q, []*model.Booking{b}); err != nil {
		return nil, err
	}
	return b, nil
}

// GetByID returns a booking (shadow or not) with its slots.
func (r *BookingRepo) GetByID(ctx context.Context, id int64) (*model.Booking, error) {
	return getBooking(ctx, r.db, "b.id = ?", id)
}

// GetTx is GetByID inside tx.
func (r *BookingRepo) GetTx(ctx context.Context, tx *sql.Tx, id int64) (*model.Booking, error) {
	return getBooking(ctx, tx, "b.id = ?", id)
}

// GetByUUID returns a booking by its public UUID.
func (r *BookingRepo) GetByUUID(ctx context.Context, uuid string) (*model.Booking, error) {
	return getBooking(ctx, r.db, "b.uuid = ?", uuid)
}

// loadSlots fills BookedSlots for every booking with one query.
func loadSlots(ctx context.Context, q queryer, bookings []*model.Booking) error {
	if len(bookings) == 0 {
		return nil
	}
	byID := make(map[int64]*model.Booking, len(bookings))
	ids := make([]int64, 0, len(bookings))
	for _, b := range bookings {
		b.BookedSlots = []model.BookedSlot{}
		byID[b.ID] = b
		ids = append(ids, b.ID)
	}
	rows, err := q.QueryContext(ctx, `SELECT booking_id, start_at, end_at, service_provider_id
		FROM booked_slots WHERE booking_id IN (`+placeholders(len(ids))+`)
		ORDER BY booking_id, position`, int64Args(ids)...)
	if err != nil {
		return fmt.Errorf("load booked slots: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			bookingID  int64
			start, end dbTime
			provider   sql.NullInt64
		)
		if err := rows.Scan(&bookingID, &start, &end, &provider); err != nil {
			return err
		}
		b := byID[bookingID]
		b.BookedSlots = append(b.BookedSlots, model.BookedSlot{
			StartDateTime:     start.Time,
			EndDateTime:       end.Time,
			ServiceProviderID: nullInt(provider),
		})
	}
	return rows.Err()
}

// InsertTx inserts b and its booked slots and sets b.ID.
func (r *BookingRepo) InsertTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
	dyn, err := dynamicArg(b.DynamicValues)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `INSERT INTO bookings (uuid, status, start_at, end_at, created_at, updated_at,
		service_id, service_provider_id, event_id, citizen_uinfin, citizen_name, citizen_email, citizen_phone,
		citizen_salutation, dynamic_values, ref_id, location, description, video_conference_url, workflow_type,
		out_of_slot, creator_ref, creator_type, original_booking_id, on_hold_until)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.UUID, string(b.Status), fmtTime(b.StartDateTime), fmtTime(b.EndDateTime), fmtTime(b.CreatedAt), fmtTime(b.UpdatedAt),
		b.ServiceID, intArg(b.ServiceProviderID), intArg(b.EventID), b.CitizenUinFin, b.CitizenName, b.CitizenEmail, b.CitizenPhone,
		b.CitizenSalutation, dyn, b.RefID, b.Location, b.Description, b.VideoConferenceURL, string(b.WorkflowType),
		b.OutOfSlot, b.CreatorRef, string(b.CreatorType), intArg(b.OriginalBookingID), fmtTimePtr(b.OnHoldUntil))
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	if b.ID, err = res.LastInsertId(); err != nil {
		return err
	}
	return insertSlots(ctx, tx, b.ID, b.BookedSlots)
}

func insertSlots(ctx context.Context, tx *sql.Tx, bookingID int64, slots []model.BookedSlot) error {
	if len(slots) == 0 {
		return nil
	}
	var sb strings.Builder
	sb.WriteString(`INSERT INTO booked_slots (booking_id, position, start_at, end_at, service_provider_id) VALUES `)
	args := make([]any, 0, len(slots)*5)
	for i, s := range slots {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(?, ?, ?, ?, ?)")
		args = append(args, bookingID, i, fmtTime(s.StartDateTime), fmtTime(s.EndDateTime), intArg(s.ServiceProviderID))
	}
	if _, err := tx.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("insert booked slots: %w", err)
	}
	return nil
}

// UpdateTx writes every mutable column of b and replaces its booked slots.
func (r *BookingRepo) UpdateTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
	dyn, err := dynamicArg(b.DynamicValues)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `UPDATE bookings SET status = ?, start_at = ?, end_at = ?, updated_at = ?,
		service_provider_id = ?, event_id = ?, citizen_uinfin = ?, citizen_name = ?, citizen_email = ?,
		citizen_phone = ?, citizen_salutation = ?, dynamic_values = ?, ref_id = ?, location = ?, description = ?,
		video_conference_url = ?, out_of_slot = ?, on_hold_until = ?
		WHERE id = ?`,
		string(b.Status), fmtTime(b.StartDateTime), fmtTime(b.EndDateTime), fmtTime(b.UpdatedAt),
		intArg(b.ServiceProviderID), intArg(b.EventID), b.CitizenUinFin, b.CitizenName, b.CitizenEmail,
		b.CitizenPhone, b.CitizenSalutation, dyn, b.RefID, b.Location, b.Description,
		b.VideoConferenceURL, b.OutOfSlot, fmtTimePtr(b.OnHoldUntil), b.ID)
	if err != nil {
		return fmt.Errorf("update booking %d: %w", b.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM booked_slots WHERE booking_id = ?`, b.ID); err != nil {
		return fmt.Errorf("clear booked slots: %w", err)
	}
	return insertSlots(ctx, tx, b.ID, b.BookedSlots)
}

// DeleteShadowTx removes a reschedule shadow and its slots.  Regular
// bookings are never deleted; attempting it returns ErrConflict.
func (r *BookingRepo) DeleteShadowTx(ctx context.Context, tx *sql.Tx, id int64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM booked_slots WHERE booking_id = ?
		AND booking_id IN (SELECT id FROM bookings WHERE original_booking_id IS NOT NULL)`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM bookings WHERE id = ? AND original_booking_id IS NOT NULL`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrConflict
	}
	return nil
}

// DeleteShadowsOfTx removes every pending reschedule of originalID; a new
// reschedule supersedes them.  It returns the number of shadows removed.
func (r *BookingRepo) DeleteShadowsOfTx(ctx context.Context, tx *sql.Tx, originalID int64) (int64, error) {
	if _, err := tx.ExecContext(ctx, `DELETE FROM booked_slots WHERE booking_id IN
		(SELECT id FROM bookings WHERE original_booking_id = ?)`, originalID); err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM bookings WHERE original_booking_id = ?`, originalID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// SlotUsage is one capacity-consuming booked slot.
type SlotUsage struct {
	BookingID int64
	Status    lifecycle.Status
	Start     time.Time
	End       time.Time
}

// activeClause selects bookings that still consume capacity at now: not
// terminal, and not an on-hold row whose hold has lapsed.
const activeClause = `b.status NOT IN ('Rejected', 'Cancelled')
	AND (b.status <> 'OnHold' OR b.on_hold_until IS NULL OR b.on_hold_until > ?)`

// OverlappingSlotsTx returns the active booked slots of a provider that
// overlap [start, end), ignoring the bookings in exclude.
func (r *BookingRepo) OverlappingSlotsTx(ctx context.Context, tx *sql.Tx, providerID int64, start, end, now time.Time, exclude ...int64) ([]SlotUsage, error) {
	query := `SELECT bs.booking_id, b.status, bs.start_at, bs.end_at
		FROM booked_slots bs JOIN bookings b ON b.id = bs.booking_id
		WHERE bs.service_provider_id = ? AND bs.start_at < ? AND bs.end_at > ? AND ` + activeClause
	args := []any{providerID, fmtTime(end), fmtTime(start), fmtTime(now)}
	if len(exclude) > 0 {
		query += ` AND b.id NOT IN (` + placeholders(len(exclude)) + `)`
		args = append(args, int64Args(exclude)...)
	}
	query += ` ORDER BY bs.start_at, bs.booking_id`

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("overlapping slots: %w", err)
	}
	defer rows.Close()
	var out []SlotUsage
	for rows.Next() {
		var (
			u        SlotUsage
			status   string
			from, to dbTime
		)
		if err := rows.Scan(&u.BookingID, &status, &from, &to); err != nil {
			return nil, err
		}
		u.Status, u.Start, u.End = lifecycle.Status(status), from.Time, to.Time
		out = append(out, u)
	}
	return out, rows.Err()
}

// CountEventBookingsTx counts active bookings attached to an event.
func (r *BookingRepo) CountEventBookingsTx(ctx context.Context, tx *sql.Tx, eventID int64, now time.Time, exclude ...int64) (int, error) {
	query := `SELECT COUNT(*) FROM bookings b WHERE b.event_id = ? AND ` + activeClause
	args := []any{eventID, fmtTime(now)}
	if len(exclude) > 0 {
		query += ` AND b.id NOT IN (` + placeholders(len(exclude)) + `)`
		args = append(args, int64Args(exclude)...)
	}
	var n int
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count event bookings: %w", err)
	}
	return n, nil
}
