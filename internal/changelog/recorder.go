// Package changelog builds append-only audit entries for booking mutations.
// Each entry stores only the projected fields that changed.
package changelog

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"time"

	"github.com/iliyamo/citizen-booking/internal/model"
)

// Sink persists entries inside the caller's transaction.
type Sink interface {
	AppendTx(ctx context.Context, tx *sql.Tx, e *model.ChangeLogEntry) error
}

// Recorder diffs booking snapshots and appends the result to a Sink.
type Recorder struct {
	sink Sink
	now  func() time.Time
}

func NewRecorder(sink Sink, now func() time.Time) *Recorder {
	if now == nil {
		now = time.Now
	}
	return &Recorder{sink: sink, now: now}
}

// Record appends an entry describing the change from before to after.
// before is nil for creations.
func (r *Recorder) Record(ctx context.Context, tx *sql.Tx, action model.ChangeLogAction, actor model.Actor, before, after *model.Booking) (*model.ChangeLogEntry, error) {
	prev, next := Diff(Project(before), Project(after))
	e := &model.ChangeLogEntry{
		BookingID:     after.ID,
		ServiceID:     after.ServiceID,
		Timestamp:     r.now().UTC(),
		Actor:         actor,
		Action:        action,
		PreviousState: prev,
		NewState:      next,
	}
	if err := r.sink.AppendTx(ctx, tx, e); err != nil {
		return nil, fmt.Errorf("append changelog: %w", err)
	}
	return e, nil
}

// Project returns the audited view of a booking.  Empty values are left
// out so a creation records only what was supplied.
func Project(b *model.Booking) map[string]any {
	out := map[string]any{}
	if b == nil {
		return out
	}
	put := func(k string, v any) {
		switch x := v.(type) {
		case string:
			if x == "" {
				return
			}
		case *int64:
			if x == nil {
				return
			}
			v = *x
		case map[string]any:
			if len(x) == 0 {
				return
			}
		}
		out[k] = v
	}
	put("status", string(b.Status))
	put("startDateTime", b.StartDateTime.UTC().Format(time.RFC3339))
	put("endDateTime", b.EndDateTime.UTC().Format(time.RFC3339))
	put("serviceProviderId", b.ServiceProviderID)
	put("eventId", b.EventID)
	put("citizenUinFin", b.CitizenUinFin)
	put("citizenName", b.CitizenName)
	put("citizenEmail", b.CitizenEmail)
	put("citizenPhone", b.CitizenPhone)
	put("citizenSalutation", b.CitizenSalutation)
	put("refId", b.RefID)
	put("location", b.Location)
	put("description", b.Description)
	put("videoConferenceUrl", b.VideoConferenceURL)
	put("dynamicValues", b.DynamicValues)
	return out
}

// Diff returns the previous and new values of every key that differs.
// A key missing on one side is reported with a nil value on that side.
func Diff(before, after map[string]any) (prev, next map[string]any) {
	prev, next = map[string]any{}, map[string]any{}
	for k, a := range after {
		b, ok := before[k]
		if ok && reflect.DeepEqual(a, b) {
			continue
		}
		prev[k] = b
		next[k] = a
	}
	for k, b := range before {
		if _, ok := after[k]; !ok {
			prev[k] = b
			next[k] = nil
		}
	}
	return prev, next
}
