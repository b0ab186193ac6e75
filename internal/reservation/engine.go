// Package reservation is the booking lifecycle engine.  Every mutating
// operation runs in one transaction that first row-locks the owning service,
// re-reads what it needs, checks capacity, writes, and records a change log
// entry.  Notifications are dispatched only after the commit succeeds.
package reservation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/citizen-booking/internal/apperr"
	"github.com/iliyamo/citizen-booking/internal/authscope"
	"github.com/iliyamo/citizen-booking/internal/changelog"
	"github.com/iliyamo/citizen-booking/internal/model"
	"github.com/iliyamo/citizen-booking/internal/notification"
	"github.com/iliyamo/citizen-booking/internal/paging"
	"github.com/iliyamo/citizen-booking/internal/repository"
)

// ServiceStore reads services and takes the per-service write lock.
type ServiceStore interface {
	LockTx(ctx context.Context, tx *sql.Tx, serviceID int64) error
	GetTx(ctx context.Context, tx *sql.Tx, id int64) (*model.Service, error)
	GetByID(ctx context.Context, id int64) (*model.Service, error)
}

// ProviderCapacityReader reads providers and the capacity they offer.
type ProviderCapacityReader interface {
	GetTx(ctx context.Context, tx *sql.Tx, id int64) (*model.ServiceProvider, error)
	ListByServiceTx(ctx context.Context, tx *sql.Tx, serviceID int64) ([]model.ServiceProvider, error)
	TimeslotsCoveringTx(ctx context.Context, tx *sql.Tx, providerID int64, start, end time.Time) ([]model.Timeslot, error)
	EventTx(ctx context.Context, tx *sql.Tx, id int64) (*model.Event, error)
}

// BookingStore persists bookings and reports capacity usage.
type BookingStore interface {
	GetByID(ctx context.Context, id int64) (*model.Booking, error)
	GetByUUID(ctx context.Context, uuid string) (*model.Booking, error)
	GetTx(ctx context.Context, tx *sql.Tx, id int64) (*model.Booking, error)
	InsertTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error
	UpdateTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error
	DeleteShadowTx(ctx context.Context, tx *sql.Tx, id int64) error
	DeleteShadowsOfTx(ctx context.Context, tx *sql.Tx, originalID int64) (int64, error)
	OverlappingSlotsTx(ctx context.Context, tx *sql.Tx, providerID int64, start, end, now time.Time, exclude ...int64) ([]repository.SlotUsage, error)
	CountEventBookingsTx(ctx context.Context, tx *sql.Tx, eventID int64, now time.Time, exclude ...int64) (int, error)
	Search(f repository.BookingFilter) paging.Source[model.Booking]
}

// ChangeLogStore appends and queries change log entries.
type ChangeLogStore interface {
	changelog.Sink
	Search(f repository.ChangeLogFilter) paging.Source[model.ChangeLogEntry]
}

// OverlapMode selects which existing bookings block an out-of-slot booking.
type OverlapMode string

const (
	// OverlapAccepted blocks only on accepted bookings.
	OverlapAccepted OverlapMode = "accepted"
	// OverlapAll blocks on any booking that still consumes capacity.
	OverlapAll OverlapMode = "all"
)

// ParseOverlapMode validates a configured mode; empty selects OverlapAccepted.
func ParseOverlapMode(s string) (OverlapMode, error) {
	switch OverlapMode(s) {
	case "", OverlapAccepted:
		return OverlapAccepted, nil
	case OverlapAll:
		return OverlapAll, nil
	}
	return "", fmt.Errorf("unknown out-of-slot overlap mode %q", s)
}

// Options tune engine behaviour.
type Options struct {
	Isolation        sql.IsolationLevel
	OnHoldTTL        time.Duration
	OutOfSlotOverlap OverlapMode
}

// Deps are the engine's collaborators.
type Deps struct {
	DB         *sql.DB
	Services   ServiceStore
	Providers  ProviderCapacityReader
	Bookings   BookingStore
	ChangeLogs ChangeLogStore
	Notifier   notification.Sink
	Logger     *zap.Logger
	Now        func() time.Time
}

// Engine implements the booking lifecycle operations.
type Engine struct {
	db        *sql.DB
	services  ServiceStore
	providers ProviderCapacityReader
	bookings  BookingStore
	logs      ChangeLogStore
	recorder  *changelog.Recorder
	notify    notification.Sink
	log       *zap.Logger
	now       func() time.Time
	opts      Options
}

// New builds an engine from explicit collaborators.
func New(d Deps, opts Options) *Engine {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if opts.OnHoldTTL <= 0 {
		opts.OnHoldTTL = 10 * time.Minute
	}
	if opts.OutOfSlotOverlap == "" {
		opts.OutOfSlotOverlap = OverlapAccepted
	}
	return &Engine{
		db:        d.DB,
		services:  d.Services,
		providers: d.Providers,
		bookings:  d.Bookings,
		logs:      d.ChangeLogs,
		recorder:  changelog.NewRecorder(d.ChangeLogs, d.Now),
		notify:    d.Notifier,
		log:       d.Logger.Named("reservation"),
		now:       d.Now,
		opts:      opts,
	}
}

// NewWithRepositories wires the SQL repositories over db.
func NewWithRepositories(db *sql.DB, notifier notification.Sink, log *zap.Logger, now func() time.Time, opts Options) *Engine {
	return New(Deps{
		DB:         db,
		Services:   repository.NewServiceRepo(db),
		Providers:  repository.NewProviderRepo(db),
		Bookings:   repository.NewBookingRepo(db),
		ChangeLogs: repository.NewChangeLogRepo(db),
		Notifier:   notifier,
		Logger:     log,
		Now:        now,
	}, opts)
}

func (e *Engine) clock() time.Time { return e.now().UTC().Truncate(time.Second) }

// txResult carries the events a committed transaction should publish.
type txResult struct {
	events []notification.Event
}

func (r *txResult) emit(b *model.Booking, svc *model.Service, p *model.ServiceProvider, action model.ChangeLogAction, actor model.Actor, at time.Time) {
	r.events = append(r.events, notification.NewEvent(b, svc, p, action, actor, at))
}

// inTx runs fn in a transaction whose first statement locks serviceID.
// Events collected by fn are dispatched after commit.
func (e *Engine) inTx(ctx context.Context, serviceID int64, fn func(tx *sql.Tx, res *txResult) error) error {
	tx, err := e.db.BeginTx(ctx, &sql.TxOptions{Isolation: e.opts.Isolation})
	if err != nil {
		return apperr.Internal("begin transaction", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := e.services.LockTx(ctx, tx, serviceID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("service not found")
		}
		return apperr.Internal("lock service", err)
	}

	var res txResult
	if err := fn(tx, &res); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return apperr.Internal("commit", err)
	}
	committed = true

	if e.notify != nil {
		for _, ev := range res.events {
			e.notify.Dispatch(ctx, ev)
		}
	}
	return nil
}

// readTx runs fn in a transaction without taking the service lock and
// always rolls back.
func (e *Engine) readTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Internal("begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()
	return fn(tx)
}

// denied is the error returned when a caller lacks permission on a booking.
// Staff learn nothing about bookings outside their scope; citizens and
// anonymous sessions are told they are not the booking's owner.
func denied(c authscope.Caller) error {
	if c.IsPrivileged() {
		return apperr.BookingNotFound()
	}
	return apperr.Unauthorized("booking belongs to another session")
}

func (e *Engine) authorize(c authscope.Caller, b *model.Booking, op authscope.Operation) error {
	if authscope.HasAnyPermission(c.Groups, b, op) {
		return nil
	}
	return denied(c)
}

// anonymousGate rejects anonymous sessions without OTP verification on
// services that do not accept anonymous bookings.
func anonymousGate(c authscope.Caller, svc *model.Service) error {
	if c.IsPrivileged() {
		return nil
	}
	if _, isCitizen := c.Citizen(); isCitizen {
		return nil
	}
	g, ok := c.Anonymous()
	if !ok {
		return apperr.Unauthorized("no caller identity")
	}
	if !svc.AllowAnonymousBookings && !g.OTPVerified {
		return apperr.ServiceNotConfiguredForAnonymous()
	}
	return nil
}

// loadBooking reads a booking outside a transaction for routing purposes.
func (e *Engine) loadBooking(ctx context.Context, id int64) (*model.Booking, error) {
	b, err := e.bookings.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.BookingNotFound()
	}
	if err != nil {
		return nil, apperr.Internal("load booking", err)
	}
	return b, nil
}

func (e *Engine) loadBookingTx(ctx context.Context, tx *sql.Tx, id int64) (*model.Booking, error) {
	b, err := e.bookings.GetTx(ctx, tx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.BookingNotFound()
	}
	if err != nil {
		return nil, apperr.Internal("load booking", err)
	}
	return b, nil
}

func (e *Engine) loadServiceTx(ctx context.Context, tx *sql.Tx, id int64) (*model.Service, error) {
	svc, err := e.services.GetTx(ctx, tx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("service not found")
	}
	if err != nil {
		return nil, apperr.Internal("load service", err)
	}
	return svc, nil
}

// loadProviderTx returns the provider if it belongs to svc.
func (e *Engine) loadProviderTx(ctx context.Context, tx *sql.Tx, svc *model.Service, id *int64) (*model.ServiceProvider, error) {
	if id == nil {
		return nil, nil
	}
	p, err := e.providers.GetTx(ctx, tx, *id)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && p.ServiceID != svc.ID) {
		return nil, apperr.NotFound("service provider not found")
	}
	if err != nil {
		return nil, apperr.Internal("load service provider", err)
	}
	return p, nil
}

func (e *Engine) record(ctx context.Context, tx *sql.Tx, action model.ChangeLogAction, actor model.Actor, before, after *model.Booking) error {
	if _, err := e.recorder.Record(ctx, tx, action, actor, before, after); err != nil {
		return apperr.Internal("record change log", err)
	}
	return nil
}
