package reservation

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/citizen-booking/internal/apperr"
	"github.com/iliyamo/citizen-booking/internal/authscope"
	"github.com/iliyamo/citizen-booking/internal/lifecycle"
	"github.com/iliyamo/citizen-booking/internal/model"
	"github.com/iliyamo/citizen-booking/internal/repository"
	"github.com/iliyamo/citizen-booking/internal/workflow"
)

// SlotRequest is one requested booked slot.
type SlotRequest struct {
	StartDateTime time.Time `json:"startDateTime"`
	EndDateTime   time.Time `json:"endDateTime"`
}

// CreateRequest describes a new booking.  When Slots is empty the booking
// consumes the single slot [StartDateTime, EndDateTime); otherwise every
// slot must lie inside that range without overlapping another.
type CreateRequest struct {
	ServiceID         int64                `json:"serviceId"`
	ServiceProviderID *int64               `json:"serviceProviderId,omitempty"`
	EventID           *int64               `json:"eventId,omitempty"`
	StartDateTime     time.Time            `json:"startDateTime"`
	EndDateTime       time.Time            `json:"endDateTime"`
	Slots             []SlotRequest        `json:"bookedSlots,omitempty"`
	Details           model.CitizenDetails `json:"citizen"`
}

func (r CreateRequest) windows() []window {
	if len(r.Slots) == 0 {
		return []window{{r.StartDateTime, r.EndDateTime}}
	}
	out := make([]window, len(r.Slots))
	for i, s := range r.Slots {
		out[i] = window{s.StartDateTime, s.EndDateTime}
	}
	return out
}

func bookedSlots(windows []window, providerID *int64) []model.BookedSlot {
	out := make([]model.BookedSlot, len(windows))
	for i, w := range windows {
		out[i] = model.BookedSlot{StartDateTime: w.Start, EndDateTime: w.End, ServiceProviderID: providerID}
	}
	return out
}

// createMode distinguishes the citizen-facing path from the admin path.
type createMode int

const (
	modeInSlot createMode = iota
	modeOutOfSlot
)

// Create books an in-slot window on behalf of a citizen or anonymous
// session.  Policy order is advance window, then capacity, then initial
// status.
func (e *Engine) Create(ctx context.Context, caller authscope.Caller, req CreateRequest) (*model.Booking, error) {
	return e.create(ctx, caller, req, modeInSlot)
}

// CreateAdmin books a window for a mandatory provider without requiring a
// timesheet slot.  Overlap with existing bookings is still enforced and
// the advance window is not.
func (e *Engine) CreateAdmin(ctx context.Context, caller authscope.Caller, req CreateRequest) (*model.Booking, error) {
	if !caller.IsPrivileged() {
		return nil, apperr.Forbidden("admin booking requires a staff group")
	}
	if req.ServiceProviderID == nil && req.EventID == nil {
		return nil, apperr.Validation(apperr.CodeServiceProviderRequired, "A service provider is required")
	}
	return e.create(ctx, caller, req, modeOutOfSlot)
}

// BulkResult is the outcome of one item of CreateBulk.
type BulkResult struct {
	Index   int            `json:"index"`
	Booking *model.Booking `json:"booking,omitempty"`
	Err     error          `json:"-"`
}

// CreateBulk runs CreateAdmin for every request in its own transaction.
// One item failing does not affect the others.
func (e *Engine) CreateBulk(ctx context.Context, caller authscope.Caller, reqs []CreateRequest) []BulkResult {
	out := make([]BulkResult, len(reqs))
	for i, r := range reqs {
		b, err := e.CreateAdmin(ctx, caller, r)
		out[i] = BulkResult{Index: i, Booking: b, Err: err}
	}
	return out
}

func (e *Engine) create(ctx context.Context, caller authscope.Caller, req CreateRequest, mode createMode) (*model.Booking, error) {
	var created *model.Booking
	err := e.inTx(ctx, req.ServiceID, func(tx *sql.Tx, res *txResult) error {
		now := e.clock()
		svc, err := e.loadServiceTx(ctx, tx, req.ServiceID)
		if err != nil {
			return err
		}
		if mode == modeInSlot {
			if err := anonymousGate(caller, svc); err != nil {
				return err
			}
		} else {
			scoped := &model.Booking{ServiceID: svc.ID, OrganisationID: svc.OrganisationID, ServiceProviderID: req.ServiceProviderID}
			if !authscope.HasAnyPermission(caller.Groups, scoped, authscope.OpApprove) {
				return apperr.Forbidden("caller cannot create bookings for this service")
			}
		}

		var event *model.Event
		if req.EventID != nil {
			event, err = e.providers.EventTx(ctx, tx, *req.EventID)
			if errors.Is(err, repository.ErrNotFound) || (err == nil && event.ServiceID != svc.ID) {
				return apperr.NotFound("event not found")
			}
			if err != nil {
				return apperr.Internal("load event", err)
			}
			if req.StartDateTime.IsZero() && req.EndDateTime.IsZero() {
				req.StartDateTime, req.EndDateTime = event.StartDateTime, event.EndDateTime
			}
		}
		windows := req.windows()

		var c apperr.Collector
		validateWindows(&c, append([]window{{req.StartDateTime, req.EndDateTime}}, windows...)...)
		validateSlots(&c, window{req.StartDateTime, req.EndDateTime}, windows)
		if mode == modeInSlot && !caller.IsPrivileged() {
			if err := c.Merge(workflow.CheckAdvanceWindow(svc, req.StartDateTime, now)); err != nil {
				return err
			}
		}
		if workflow.RequiresDetails(svc) {
			if err := c.Merge(workflow.ValidateDetails(svc, req.Details)); err != nil {
				return err
			}
		}
		if err := c.Err(); err != nil {
			return err
		}

		provider, err := e.loadProviderTx(ctx, tx, svc, req.ServiceProviderID)
		if err != nil {
			return err
		}
		outOfSlot := mode == modeOutOfSlot
		switch {
		case event != nil:
			if err := e.checkEvent(ctx, tx, event, now); err != nil {
				return err
			}
		case provider != nil:
			if err := e.checkProvider(ctx, tx, provider.ID, windows, outOfSlot, now); err != nil {
				return err
			}
		case svc.IsSpAutoAssigned:
			provider, err = e.firstAvailable(ctx, tx, svc, windows, outOfSlot, now, 0)
			if err != nil {
				return err
			}
			if provider == nil {
				return apperr.Validation(apperr.CodeNoAvailableServiceProviders, msgNoProviders)
			}
		default:
			avail, err := e.firstAvailable(ctx, tx, svc, windows, outOfSlot, now, 0)
			if err != nil {
				return err
			}
			if avail == nil {
				return apperr.Validation(apperr.CodeNoAvailableServiceProviders, msgNoProviders)
			}
		}

		var providerID *int64
		if provider != nil {
			id := provider.ID
			providerID = &id
		}
		ref, creatorType := caller.CreatorRef()
		b := &model.Booking{
			UUID:              uuid.NewString(),
			Status:            workflow.InitialStatus(svc, provider),
			StartDateTime:     req.StartDateTime,
			EndDateTime:       req.EndDateTime,
			CreatedAt:         now,
			UpdatedAt:         now,
			ServiceID:         svc.ID,
			OrganisationID:    svc.OrganisationID,
			ServiceProviderID: providerID,
			EventID:           req.EventID,
			WorkflowType:      workflow.Type(svc),
			OutOfSlot:         outOfSlot,
			CreatorRef:        ref,
			CreatorType:       creatorType,
			BookedSlots:       bookedSlots(windows, providerID),
		}
		b.ApplyDetails(req.Details)
		if b.Status == lifecycle.OnHold {
			until := now.Add(e.opts.OnHoldTTL)
			b.OnHoldUntil = &until
		}

		if err := e.bookings.InsertTx(ctx, tx, b); err != nil {
			return apperr.Internal("insert booking", err)
		}
		if err := e.record(ctx, tx, model.ActionCreate, caller.Actor(), nil, b); err != nil {
			return err
		}
		res.emit(b, svc, provider, model.ActionCreate, caller.Actor(), now)
		created = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.log.Info("booking created",
		zap.Int64("booking_id", created.ID),
		zap.Int64("service_id", created.ServiceID),
		zap.String("status", string(created.Status)))
	return created, nil
}
