package reservation

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"github.com/iliyamo/citizen-booking/internal/apperr"
	"github.com/iliyamo/citizen-booking/internal/lifecycle"
	"github.com/iliyamo/citizen-booking/internal/model"
	"github.com/iliyamo/citizen-booking/internal/repository"
)

const (
	msgProviderUnavailable = "The service provider is not available in the selected time range"
	msgNoProviders         = "No available service providers in the selected time range"
	msgOverlapsAccepted    = "The booking overlaps with an accepted booking"
	msgOverlapsOnHold      = "The booking overlaps with an on-hold or pending booking"
	msgEventFull           = "The event has no remaining capacity"
	msgSlotOutsideWindow   = "Every booked slot must lie within the booking time range"
	msgSlotsOverlap        = "Booked slots of a booking must not overlap each other"
)

// window is a half-open interval [Start, End).
type window struct {
	Start time.Time
	End   time.Time
}

func windowsOf(slots []model.BookedSlot) []window {
	out := make([]window, len(slots))
	for i, s := range slots {
		out[i] = window{s.StartDateTime, s.EndDateTime}
	}
	return out
}

// peakConcurrency returns the largest number of usages active at the same
// instant inside w.  Intervals are half-open, so one ending exactly when
// another starts does not overlap it.
func peakConcurrency(usages []repository.SlotUsage, w window) int {
	type edge struct {
		at    time.Time
		delta int
	}
	edges := make([]edge, 0, len(usages)*2)
	for _, u := range usages {
		start, end := u.Start, u.End
		if start.Before(w.Start) {
			start = w.Start
		}
		if end.After(w.End) {
			end = w.End
		}
		if !start.Before(end) {
			continue
		}
		edges = append(edges, edge{start, 1}, edge{end, -1})
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].at.Equal(edges[j].at) {
			return edges[i].delta < edges[j].delta
		}
		return edges[i].at.Before(edges[j].at)
	})
	peak, cur := 0, 0
	for _, e := range edges {
		cur += e.delta
		if cur > peak {
			peak = cur
		}
	}
	return peak
}

// checkInSlot verifies every window lies inside one of the provider's
// timeslots and that adding one more booking never exceeds the slot's
// capacity at any instant.  Windows already checked for this booking count
// as usage for the ones after them.
func (e *Engine) checkInSlot(ctx context.Context, tx *sql.Tx, providerID int64, windows []window, now time.Time, exclude ...int64) error {
	own := make([]repository.SlotUsage, 0, len(windows))
	for _, w := range windows {
		slots, err := e.providers.TimeslotsCoveringTx(ctx, tx, providerID, w.Start, w.End)
		if err != nil {
			return apperr.Internal("load timeslots", err)
		}
		if len(slots) == 0 {
			return apperr.Validation(apperr.CodeServiceProviderNotAvailable, msgProviderUnavailable)
		}
		capacity := 0
		for _, s := range slots {
			if s.Capacity > capacity {
				capacity = s.Capacity
			}
		}
		usages, err := e.bookings.OverlappingSlotsTx(ctx, tx, providerID, w.Start, w.End, now, exclude...)
		if err != nil {
			return apperr.Internal("load booked slots", err)
		}
		if peakConcurrency(append(usages, own...), w)+1 > capacity {
			return apperr.Validation(apperr.CodeServiceProviderNotAvailable, msgProviderUnavailable)
		}
		own = append(own, repository.SlotUsage{Start: w.Start, End: w.End})
	}
	return nil
}

// checkOutOfSlot enforces overlap rules for admin bookings that are not
// bound to a timesheet slot.
func (e *Engine) checkOutOfSlot(ctx context.Context, tx *sql.Tx, providerID int64, windows []window, now time.Time, exclude ...int64) error {
	var c apperr.Collector
	accepted, other := false, false
	for _, w := range windows {
		usages, err := e.bookings.OverlappingSlotsTx(ctx, tx, providerID, w.Start, w.End, now, exclude...)
		if err != nil {
			return apperr.Internal("load booked slots", err)
		}
		for _, u := range usages {
			if u.Status == lifecycle.Accepted {
				accepted = true
			} else {
				other = true
			}
		}
	}
	if accepted {
		c.Add(apperr.CodeOverlapsAcceptedBooking, msgOverlapsAccepted)
	}
	if other && e.opts.OutOfSlotOverlap == OverlapAll {
		c.Add(apperr.CodeOverlapsOnHoldBooking, msgOverlapsOnHold)
	}
	return c.Err()
}

// checkProvider applies the in-slot or out-of-slot rule.
func (e *Engine) checkProvider(ctx context.Context, tx *sql.Tx, providerID int64, windows []window, outOfSlot bool, now time.Time, exclude ...int64) error {
	if outOfSlot {
		return e.checkOutOfSlot(ctx, tx, providerID, windows, now, exclude...)
	}
	return e.checkInSlot(ctx, tx, providerID, windows, now, exclude...)
}

// checkEvent verifies the event can take one more booking.
func (e *Engine) checkEvent(ctx context.Context, tx *sql.Tx, ev *model.Event, now time.Time, exclude ...int64) error {
	n, err := e.bookings.CountEventBookingsTx(ctx, tx, ev.ID, now, exclude...)
	if err != nil {
		return apperr.Internal("count event bookings", err)
	}
	if n+1 > ev.Capacity {
		return apperr.Validation(apperr.CodeEventCapacityUnavailable, msgEventFull)
	}
	return nil
}

// firstAvailable scans the service's providers in id order and returns the
// first with capacity for windows, skipping skipID.  A nil provider means
// none qualifies.
func (e *Engine) firstAvailable(ctx context.Context, tx *sql.Tx, svc *model.Service, windows []window, outOfSlot bool, now time.Time, skipID int64, exclude ...int64) (*model.ServiceProvider, error) {
	all, err := e.availableProviders(ctx, tx, svc, windows, outOfSlot, now, skipID, true, exclude...)
	if err != nil || len(all) == 0 {
		return nil, err
	}
	return &all[0], nil
}

func (e *Engine) availableProviders(ctx context.Context, tx *sql.Tx, svc *model.Service, windows []window, outOfSlot bool, now time.Time, skipID int64, firstOnly bool, exclude ...int64) ([]model.ServiceProvider, error) {
	providers, err := e.providers.ListByServiceTx(ctx, tx, svc.ID)
	if err != nil {
		return nil, apperr.Internal("list providers", err)
	}
	var out []model.ServiceProvider
	for _, p := range providers {
		if p.ID == skipID {
			continue
		}
		err := e.checkProvider(ctx, tx, p.ID, windows, outOfSlot, now, exclude...)
		var v apperr.Validations
		if errors.As(err, &v) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, p)
		if firstOnly {
			break
		}
	}
	return out, nil
}

// validateSlots reports an InvalidBookedSlots violation when an explicit
// slot leaves the booking window or overlaps another slot.
func validateSlots(c *apperr.Collector, span window, slots []window) {
	if len(slots) == 0 {
		return
	}
	sorted := append([]window(nil), slots...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })
	for i, w := range sorted {
		if w.Start.Before(span.Start) || w.End.After(span.End) {
			c.Add(apperr.CodeInvalidBookedSlots, msgSlotOutsideWindow)
			return
		}
		if i > 0 && w.Start.Before(sorted[i-1].End) {
			c.Add(apperr.CodeInvalidBookedSlots, msgSlotsOverlap)
			return
		}
	}
}

// validateWindows reports an EndTimeBeforeStartTime violation when any
// window is empty or inverted.
func validateWindows(c *apperr.Collector, windows ...window) {
	for _, w := range windows {
		if !w.End.After(w.Start) {
			c.Add(apperr.CodeEndTimeBeforeStartTime, "End time must be after start time")
			return
		}
	}
}
