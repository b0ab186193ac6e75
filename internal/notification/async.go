package notification

import (
	"context"
	"sync"
	"time"
)

// AsyncDispatcher hands events to a Sink on a background goroutine so
// delivery never delays the response that triggered it.
type AsyncDispatcher struct {
	next    Sink
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewAsyncDispatcher(next Sink, timeout time.Duration) *AsyncDispatcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &AsyncDispatcher{next: next, timeout: timeout}
}

// Dispatch returns immediately.  Delivery is detached from ctx cancellation
// because the originating request usually finishes first.
func (a *AsyncDispatcher) Dispatch(ctx context.Context, ev Event) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
		defer cancel()
		a.next.Dispatch(dctx, ev)
	}()
}

// Wait blocks until every in-flight dispatch has finished.
func (a *AsyncDispatcher) Wait() { a.wg.Wait() }
