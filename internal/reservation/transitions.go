package reservation

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"github.com/iliyamo/citizen-booking/internal/apperr"
	"github.com/iliyamo/citizen-booking/internal/authscope"
	"github.com/iliyamo/citizen-booking/internal/lifecycle"
	"github.com/iliyamo/citizen-booking/internal/model"
	"github.com/iliyamo/citizen-booking/internal/workflow"
)

// AcceptRequest optionally re-targets the booking to another provider of
// the same service.
type AcceptRequest struct {
	ServiceProviderID *int64 `json:"serviceProviderId,omitempty"`
}

// Accept approves a pending booking.  From PendingApprovalSA the booking
// moves to PendingApproval unless the provider auto-accepts.
func (e *Engine) Accept(ctx context.Context, caller authscope.Caller, bookingID int64, req AcceptRequest) (*model.Booking, error) {
	return e.transition(ctx, caller, bookingID, authscope.OpApprove, model.ActionAccept,
		func(ctx context.Context, tx *sql.Tx, svc *model.Service, b *model.Booking) (*model.ServiceProvider, error) {
			if !b.Status.IsPending() {
				return nil, apperr.Validation(apperr.CodeInvalidStateTransition,
					"Booking in status "+string(b.Status)+" cannot be accepted")
			}
			if req.ServiceProviderID != nil && !sameID(req.ServiceProviderID, b.ServiceProviderID) {
				return e.retarget(ctx, tx, svc, b, *req.ServiceProviderID)
			}
			if b.ServiceProviderID == nil && b.EventID == nil && b.Status == lifecycle.PendingApproval {
				return nil, apperr.Validation(apperr.CodeServiceProviderRequired, "A service provider is required")
			}
			p, err := e.loadProviderTx(ctx, tx, svc, b.ServiceProviderID)
			if err != nil {
				return nil, err
			}
			b.Status, err = lifecycle.Transition(b.Status, workflow.AfterAccept(b.Status, p))
			return p, err
		})
}

// Reject declines a pending booking.
func (e *Engine) Reject(ctx context.Context, caller authscope.Caller, bookingID int64) (*model.Booking, error) {
	return e.transition(ctx, caller, bookingID, authscope.OpApprove, model.ActionReject, e.moveTo(lifecycle.Rejected))
}

// Cancel withdraws an accepted booking.  Pending requests are declined
// through Reject instead.
func (e *Engine) Cancel(ctx context.Context, caller authscope.Caller, bookingID int64) (*model.Booking, error) {
	return e.transition(ctx, caller, bookingID, authscope.OpCancel, model.ActionCancel, e.moveTo(lifecycle.Cancelled))
}

// mutateFunc changes b in place and returns its provider for notifications.
type mutateFunc func(ctx context.Context, tx *sql.Tx, svc *model.Service, b *model.Booking) (*model.ServiceProvider, error)

func (e *Engine) moveTo(to lifecycle.Status) mutateFunc {
	return func(ctx context.Context, tx *sql.Tx, svc *model.Service, b *model.Booking) (*model.ServiceProvider, error) {
		var err error
		if b.Status, err = lifecycle.Transition(b.Status, to); err != nil {
			return nil, err
		}
		return e.loadProviderTx(ctx, tx, svc, b.ServiceProviderID)
	}
}

func (e *Engine) transition(ctx context.Context, caller authscope.Caller, bookingID int64, op authscope.Operation, action model.ChangeLogAction, mutate mutateFunc) (*model.Booking, error) {
	pre, err := e.loadBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if pre.IsShadow() {
		return nil, apperr.BookingNotFound()
	}
	if err := e.authorize(caller, pre, op); err != nil {
		return nil, err
	}

	var result *model.Booking
	err = e.inTx(ctx, pre.ServiceID, func(tx *sql.Tx, res *txResult) error {
		now := e.clock()
		b, err := e.loadBookingTx(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if err := e.authorize(caller, b, op); err != nil {
			return err
		}
		svc, err := e.loadServiceTx(ctx, tx, b.ServiceID)
		if err != nil {
			return err
		}
		before := *b
		after := *b
		after.BookedSlots = append([]model.BookedSlot(nil), b.BookedSlots...)
		provider, err := mutate(ctx, tx, svc, &after)
		if err != nil {
			return err
		}
		after.UpdatedAt = now
		if err := e.bookings.UpdateTx(ctx, tx, &after); err != nil {
			return apperr.Internal("update booking", err)
		}
		if err := e.record(ctx, tx, action, caller.Actor(), &before, &after); err != nil {
			return err
		}
		res.emit(&after, svc, provider, action, caller.Actor(), now)
		result = &after
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.log.Info("booking "+string(action),
		zap.Int64("booking_id", result.ID),
		zap.String("status", string(result.Status)),
		zap.String("actor", caller.Actor().Type))
	return result, nil
}

// retarget moves b to providerID after checking that provider has room for
// every booked slot, then applies the accept transition.
func (e *Engine) retarget(ctx context.Context, tx *sql.Tx, svc *model.Service, b *model.Booking, providerID int64) (*model.ServiceProvider, error) {
	p, err := e.loadProviderTx(ctx, tx, svc, &providerID)
	if err != nil {
		return nil, err
	}
	if b.EventID == nil {
		if err := e.checkProvider(ctx, tx, p.ID, windowsOf(b.BookedSlots), b.OutOfSlot, e.clock(), b.ID); err != nil {
			return nil, err
		}
	}
	id := p.ID
	b.ServiceProviderID = &id
	for i := range b.BookedSlots {
		b.BookedSlots[i].ServiceProviderID = &id
	}
	b.Status, err = lifecycle.Transition(b.Status, workflow.AfterAccept(b.Status, p))
	return p, err
}

func sameID(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
