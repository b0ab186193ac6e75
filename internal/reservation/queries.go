package reservation

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/citizen-booking/internal/apperr"
	"github.com/iliyamo/citizen-booking/internal/authscope"
	"github.com/iliyamo/citizen-booking/internal/lifecycle"
	"github.com/iliyamo/citizen-booking/internal/model"
	"github.com/iliyamo/citizen-booking/internal/paging"
	"github.com/iliyamo/citizen-booking/internal/repository"
)

// Get returns a booking the caller may read.
func (e *Engine) Get(ctx context.Context, caller authscope.Caller, id int64) (*model.Booking, error) {
	b, err := e.loadBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := e.authorize(caller, b, authscope.OpRead); err != nil {
		return nil, err
	}
	return b, nil
}

// GetByUUID is Get keyed by the booking's public UUID.
func (e *Engine) GetByUUID(ctx context.Context, caller authscope.Caller, uuid string) (*model.Booking, error) {
	b, err := e.bookings.GetByUUID(ctx, uuid)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.BookingNotFound()
	}
	if err != nil {
		return nil, apperr.Internal("load booking", err)
	}
	if err := e.authorize(caller, b, authscope.OpRead); err != nil {
		return nil, err
	}
	return b, nil
}

// ListQuery holds the optional booking filters and the page to return.
type ListQuery struct {
	Statuses          []lifecycle.Status
	ServiceID         *int64
	ServiceProviderID *int64
	From              *time.Time
	To                *time.Time
	CitizenUinFin     string
	Page              paging.Request
}

func (q ListQuery) filter(caller authscope.Caller) repository.BookingFilter {
	return repository.BookingFilter{
		Scope:             authscope.VisibilityPredicate(caller.Groups...),
		Statuses:          q.Statuses,
		ServiceID:         q.ServiceID,
		ServiceProviderID: q.ServiceProviderID,
		From:              q.From,
		To:                q.To,
		CitizenUinFin:     q.CitizenUinFin,
	}
}

// List pages through the bookings visible to the caller.
func (e *Engine) List(ctx context.Context, caller authscope.Caller, q ListQuery) (*paging.Page[model.Booking], error) {
	page, err := paging.Paginate(ctx, e.bookings.Search(q.filter(caller)), q.Page)
	if err != nil {
		return nil, asSystem(err, "list bookings")
	}
	return page, nil
}

// ExportAll returns every booking matching q in one page.
func (e *Engine) ExportAll(ctx context.Context, caller authscope.Caller, q ListQuery) (*paging.Page[model.Booking], error) {
	q.Page = paging.Request{Limit: paging.Unbounded}
	return e.List(ctx, caller, q)
}

// EligibleProviders lists the other providers of the booking's service that
// could take over its booked slots.
func (e *Engine) EligibleProviders(ctx context.Context, caller authscope.Caller, bookingID int64) ([]model.ServiceProvider, error) {
	b, err := e.loadBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := e.authorize(caller, b, authscope.OpApprove); err != nil {
		return nil, err
	}

	var out []model.ServiceProvider
	err = e.readTx(ctx, func(tx *sql.Tx) error {
		svc, err := e.loadServiceTx(ctx, tx, b.ServiceID)
		if err != nil {
			return err
		}
		var skip int64
		if b.ServiceProviderID != nil {
			skip = *b.ServiceProviderID
		}
		out, err = e.availableProviders(ctx, tx, svc, windowsOf(b.BookedSlots), b.OutOfSlot, e.clock(), skip, false, b.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []model.ServiceProvider{}
	}
	return out, nil
}

// ChangeLogQuery holds the change log filters and the page to return.
type ChangeLogQuery struct {
	ChangedSince *time.Time
	ChangedUntil *time.Time
	BookingIDs   []int64
	ServiceID    *int64
	Page         paging.Request
}

// ChangeLogs pages through the change log entries of bookings visible to
// the caller.
func (e *Engine) ChangeLogs(ctx context.Context, caller authscope.Caller, q ChangeLogQuery) (*paging.Page[model.ChangeLogEntry], error) {
	src := e.logs.Search(repository.ChangeLogFilter{
		Scope:        authscope.VisibilityPredicate(caller.Groups...),
		ChangedSince: q.ChangedSince,
		ChangedUntil: q.ChangedUntil,
		BookingIDs:   q.BookingIDs,
		ServiceID:    q.ServiceID,
	})
	page, err := paging.Paginate(ctx, src, q.Page)
	if err != nil {
		return nil, asSystem(err, "list change logs")
	}
	return page, nil
}

// asSystem passes typed errors through and wraps the rest as internal.
func asSystem(err error, msg string) error {
	var typed *apperr.Error
	if errors.As(err, &typed) {
		return err
	}
	return apperr.Internal(msg, err)
}
