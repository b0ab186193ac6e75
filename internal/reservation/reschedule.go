package reservation

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/citizen-booking/internal/apperr"
	"github.com/iliyamo/citizen-booking/internal/authscope"
	"github.com/iliyamo/citizen-booking/internal/lifecycle"
	"github.com/iliyamo/citizen-booking/internal/model"
	"github.com/iliyamo/citizen-booking/internal/workflow"
)

// RescheduleRequest moves a booking to a new window, optionally with a new
// provider.  OutOfSlot is honoured for staff only.
type RescheduleRequest struct {
	StartDateTime     time.Time     `json:"startDateTime"`
	EndDateTime       time.Time     `json:"endDateTime"`
	ServiceProviderID *int64        `json:"serviceProviderId,omitempty"`
	Slots             []SlotRequest `json:"bookedSlots,omitempty"`
	OutOfSlot         bool          `json:"outOfSlot,omitempty"`
}

func (r RescheduleRequest) windows() []window {
	return CreateRequest{StartDateTime: r.StartDateTime, EndDateTime: r.EndDateTime, Slots: r.Slots}.windows()
}

// Reschedule writes an on-hold shadow booking holding the new window and
// leaves the original untouched.  The move completes when the shadow is
// validated with ValidateOnHold, which folds it back into the original so
// the booking keeps its id.  Earlier pending shadows of the same booking
// are discarded.
func (e *Engine) Reschedule(ctx context.Context, caller authscope.Caller, bookingID int64, req RescheduleRequest) (*model.Booking, error) {
	orig, err := e.loadBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if orig.IsShadow() {
		return nil, apperr.BookingNotFound()
	}
	if err := e.authorize(caller, orig, authscope.OpUpdate); err != nil {
		return nil, err
	}
	if req.OutOfSlot && !caller.IsPrivileged() {
		return nil, apperr.Forbidden("out-of-slot reschedule requires a staff group")
	}

	var shadow *model.Booking
	err = e.inTx(ctx, orig.ServiceID, func(tx *sql.Tx, _ *txResult) error {
		now := e.clock()
		orig, err := e.loadBookingTx(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if !orig.Status.Reschedulable() {
			return apperr.BookingNotFound()
		}
		svc, err := e.loadServiceTx(ctx, tx, orig.ServiceID)
		if err != nil {
			return err
		}
		windows := req.windows()

		var c apperr.Collector
		validateWindows(&c, append([]window{{req.StartDateTime, req.EndDateTime}}, windows...)...)
		validateSlots(&c, window{req.StartDateTime, req.EndDateTime}, windows)
		if !caller.IsPrivileged() {
			if err := c.Merge(workflow.CheckAdvanceWindow(svc, req.StartDateTime, now)); err != nil {
				return err
			}
		}
		if err := c.Err(); err != nil {
			return err
		}

		if _, err := e.bookings.DeleteShadowsOfTx(ctx, tx, orig.ID); err != nil {
			return apperr.Internal("discard previous reschedules", err)
		}

		providerID := orig.ServiceProviderID
		if req.ServiceProviderID != nil {
			providerID = req.ServiceProviderID
		}
		provider, err := e.loadProviderTx(ctx, tx, svc, providerID)
		if err != nil {
			return err
		}
		outOfSlot := orig.OutOfSlot || req.OutOfSlot
		if err := e.checkTarget(ctx, tx, svc, orig, provider, windows, outOfSlot, now, orig.ID); err != nil {
			return err
		}

		s := *orig
		s.ID = 0
		s.UUID = uuid.NewString()
		s.Status = lifecycle.OnHold
		s.StartDateTime, s.EndDateTime = req.StartDateTime, req.EndDateTime
		s.ServiceProviderID = providerID
		s.OutOfSlot = outOfSlot
		s.BookedSlots = bookedSlots(windows, providerID)
		s.CreatedAt, s.UpdatedAt = now, now
		until := now.Add(e.opts.OnHoldTTL)
		s.OnHoldUntil = &until
		origID := orig.ID
		s.OriginalBookingID = &origID

		if err := e.bookings.InsertTx(ctx, tx, &s); err != nil {
			return apperr.Internal("insert reschedule", err)
		}
		shadow = &s
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.log.Info("reschedule pending",
		zap.Int64("booking_id", bookingID),
		zap.Int64("shadow_id", shadow.ID))
	return shadow, nil
}

// checkTarget verifies capacity for a booking moving to windows with the
// given provider, excluding the listed bookings from usage.
func (e *Engine) checkTarget(ctx context.Context, tx *sql.Tx, svc *model.Service, b *model.Booking, provider *model.ServiceProvider, windows []window, outOfSlot bool, now time.Time, exclude ...int64) error {
	if b.EventID != nil {
		ev, err := e.providers.EventTx(ctx, tx, *b.EventID)
		if err != nil {
			return apperr.Internal("load event", err)
		}
		return e.checkEvent(ctx, tx, ev, now, exclude...)
	}
	if provider != nil {
		return e.checkProvider(ctx, tx, provider.ID, windows, outOfSlot, now, exclude...)
	}
	avail, err := e.firstAvailable(ctx, tx, svc, windows, outOfSlot, now, 0, exclude...)
	if err != nil {
		return err
	}
	if avail == nil {
		return apperr.Validation(apperr.CodeNoAvailableServiceProviders, msgNoProviders)
	}
	return nil
}

// ValidateOnHold promotes an on-hold booking once the citizen's details are
// supplied.  For a reschedule shadow, capacity is re-checked and the
// shadow's window, provider, slots and details are copied onto the original,
// the shadow is deleted, and the original is returned.  The original's
// status only moves forward (see workflow.AfterReschedule).
func (e *Engine) ValidateOnHold(ctx context.Context, caller authscope.Caller, bookingID int64, details model.CitizenDetails) (*model.Booking, error) {
	pre, err := e.loadBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := e.authorize(caller, pre, authscope.OpUpdate); err != nil {
		return nil, err
	}

	var result *model.Booking
	err = e.inTx(ctx, pre.ServiceID, func(tx *sql.Tx, res *txResult) error {
		now := e.clock()
		b, err := e.loadBookingTx(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		svc, err := e.loadServiceTx(ctx, tx, b.ServiceID)
		if err != nil {
			return err
		}
		if err := anonymousGate(caller, svc); err != nil {
			return err
		}
		if b.Status != lifecycle.OnHold {
			return apperr.Validation(apperr.CodeInvalidStateTransition, "Booking is not on hold")
		}
		if b.OnHoldExpired(now) {
			return apperr.Validation(apperr.CodeOnHoldExpired, "The on-hold booking has expired")
		}

		if b.IsShadow() {
			result, err = e.foldShadow(ctx, tx, res, caller, svc, b, details, now)
			return err
		}

		before := *b
		after := *b
		after.ApplyDetails(details)
		if err := workflow.ValidateDetails(svc, workflow.DetailsOf(&after)); err != nil {
			return err
		}
		provider, err := e.loadProviderTx(ctx, tx, svc, after.ServiceProviderID)
		if err != nil {
			return err
		}
		if after.Status, err = lifecycle.Transition(b.Status, workflow.AfterOnHold(svc, provider)); err != nil {
			return err
		}
		after.OnHoldUntil = nil
		after.UpdatedAt = now
		if err := e.bookings.UpdateTx(ctx, tx, &after); err != nil {
			return apperr.Internal("update booking", err)
		}
		if err := e.record(ctx, tx, model.ActionUpdate, caller.Actor(), &before, &after); err != nil {
			return err
		}
		res.emit(&after, svc, provider, model.ActionCreate, caller.Actor(), now)
		result = &after
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.log.Info("on-hold booking validated",
		zap.Int64("booking_id", result.ID),
		zap.String("status", string(result.Status)))
	return result, nil
}

func (e *Engine) foldShadow(ctx context.Context, tx *sql.Tx, res *txResult, caller authscope.Caller, svc *model.Service, shadow *model.Booking, details model.CitizenDetails, now time.Time) (*model.Booking, error) {
	orig, err := e.loadBookingTx(ctx, tx, *shadow.OriginalBookingID)
	if err != nil {
		return nil, err
	}
	if !orig.Status.Reschedulable() {
		return nil, apperr.BookingNotFound()
	}

	after := *orig
	after.StartDateTime, after.EndDateTime = shadow.StartDateTime, shadow.EndDateTime
	after.ServiceProviderID = shadow.ServiceProviderID
	after.OutOfSlot = shadow.OutOfSlot
	after.BookedSlots = append([]model.BookedSlot(nil), shadow.BookedSlots...)
	after.ApplyDetails(workflow.DetailsOf(shadow))
	after.ApplyDetails(details)
	if err := workflow.ValidateDetails(svc, workflow.DetailsOf(&after)); err != nil {
		return nil, err
	}

	provider, err := e.loadProviderTx(ctx, tx, svc, after.ServiceProviderID)
	if err != nil {
		return nil, err
	}
	if err := e.checkTarget(ctx, tx, svc, &after, provider, windowsOf(after.BookedSlots), after.OutOfSlot, now, orig.ID, shadow.ID); err != nil {
		return nil, err
	}
	if _, err := lifecycle.Transition(shadow.Status, workflow.AfterOnHold(svc, provider)); err != nil {
		return nil, err
	}
	if next := workflow.AfterReschedule(orig.Status, svc, provider); next != orig.Status {
		if after.Status, err = lifecycle.Transition(orig.Status, next); err != nil {
			return nil, err
		}
	}
	after.OnHoldUntil = nil
	after.UpdatedAt = now

	if err := e.bookings.DeleteShadowTx(ctx, tx, shadow.ID); err != nil {
		return nil, apperr.Internal("delete reschedule", err)
	}
	if err := e.bookings.UpdateTx(ctx, tx, &after); err != nil {
		return nil, apperr.Internal("update booking", err)
	}
	if err := e.record(ctx, tx, model.ActionReschedule, caller.Actor(), orig, &after); err != nil {
		return nil, err
	}
	res.emit(&after, svc, provider, model.ActionReschedule, caller.Actor(), now)
	return &after, nil
}
