package notification

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Hub runs every attached observer in attachment order.  A failing or
// panicking observer is logged and skipped; it never stops the others.
type Hub struct {
	observers []Observer
	log       *zap.Logger
}

func NewHub(log *zap.Logger, observers ...Observer) *Hub {
	return &Hub{observers: observers, log: log.Named("notification")}
}

// Attach appends an observer.  Attach is not safe to call concurrently with
// Dispatch; wire observers at start-up.
func (h *Hub) Attach(o Observer) { h.observers = append(h.observers, o) }

// Dispatch delivers ev to every observer synchronously.
func (h *Hub) Dispatch(ctx context.Context, ev Event) {
	for _, o := range h.observers {
		if err := h.notify(ctx, o, ev); err != nil {
			h.log.Warn("observer failed",
				zap.String("observer", o.Name()),
				zap.Int64("booking_id", ev.Booking.ID),
				zap.String("action", string(ev.Action)),
				zap.Error(err))
		}
	}
}

func (h *Hub) notify(ctx context.Context, o Observer, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return o.Notify(ctx, ev)
}
