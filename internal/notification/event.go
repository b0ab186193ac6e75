// Package notification fans booking events out to email, SMS and external
// agency channels.  Each mutation builds an Event value after its
// transaction commits and hands it to a Sink; there is no shared state
// between dispatches.
package notification

import (
	"context"
	"time"

	"github.com/iliyamo/citizen-booking/internal/model"
)

// Event describes one committed booking mutation.  Booking, Service and
// Provider are copies so observers can never mutate engine state.
type Event struct {
	Booking    model.Booking
	Service    model.Service
	Provider   *model.ServiceProvider
	Action     model.ChangeLogAction
	Actor      model.Actor
	OccurredAt time.Time
}

// NewEvent copies the given entities into an Event.
func NewEvent(b *model.Booking, svc *model.Service, p *model.ServiceProvider, action model.ChangeLogAction, actor model.Actor, at time.Time) Event {
	ev := Event{Booking: *b, Service: *svc, Action: action, Actor: actor, OccurredAt: at}
	ev.Booking.BookedSlots = append([]model.BookedSlot(nil), b.BookedSlots...)
	if p != nil {
		cp := *p
		ev.Provider = &cp
	}
	return ev
}

// Sink accepts events for delivery.
type Sink interface {
	Dispatch(ctx context.Context, ev Event)
}

// Observer is one notification channel.
type Observer interface {
	Name() string
	Notify(ctx context.Context, ev Event) error
}
