package zeros

import (
	"context"
	"sync"
	"time"
)

// WaitOptions bounds a ready-signal wait.
type WaitOptions struct {
	// Interval is the poll period for signal sources that can only be polled.
	Interval time.Duration
	// Timeout is how long to wait before giving up. Giving up is not an error.
	Timeout time.Duration
}

// Signals is the ready-signal primitive. Modules call Publish once their own
// initialization is complete; the loader calls WaitFor with a bounded timeout.
// WaitFor returns true if the signal was seen, false if the wait timed out or
// ctx ended. It never fails because of a timeout alone.
type Signals interface {
	Publish(id string)
	WaitFor(ctx context.Context, id string, opts WaitOptions) bool
}

// SignalBus is a typed publish/subscribe channel of ready signals keyed by module id.
// Each waiter is resolved exactly once. A publish that happens before anyone waits
// is remembered, so late waiters return immediately.
type SignalBus struct {
	mu        sync.Mutex
	published map[string]time.Time
	waiters   map[string][]chan struct{}
}

// NewSignalBus creates an empty signal bus.
func NewSignalBus() *SignalBus {
	return &SignalBus{
		published: make(map[string]time.Time),
		waiters:   make(map[string][]chan struct{}),
	}
}

// Publish announces that id is ready. Publishing twice is a no-op.
func (b *SignalBus) Publish(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.published[id]; ok {
		return
	}
	b.published[id] = time.Now()
	for _, ch := range b.waiters[id] {
		close(ch)
	}
	delete(b.waiters, id)
}

// Published reports whether id has announced readiness.
func (b *SignalBus) Published(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.published[id]
	return ok
}

// Subscribe returns a channel that is closed when id publishes.
func (b *SignalBus) Subscribe(id string) <-chan struct{} {
	return b.subscribe(id)
}

func (b *SignalBus) subscribe(id string) chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan struct{})
	if _, ok := b.published[id]; ok {
		close(ch)
		return ch
	}
	b.waiters[id] = append(b.waiters[id], ch)
	return ch
}

func (b *SignalBus) unsubscribe(id string, ch chan struct{}) {
	b.mu.Lock()
	defer b.mu.Unlock()

	waiters := b.waiters[id]
	for i, w := range waiters {
		if w == ch {
			b.waiters[id] = append(waiters[:i], waiters[i+1:]...)
			break
		}
	}
	if len(b.waiters[id]) == 0 {
		delete(b.waiters, id)
	}
}

// WaitFor blocks until id publishes, the timeout elapses, or ctx is done.
// A zero timeout only checks whether the signal was already published. Loader
// and SelfCheck never pass one: they replace a zero timeout with the default.
func (b *SignalBus) WaitFor(ctx context.Context, id string, opts WaitOptions) bool {
	ch := b.subscribe(id)
	defer b.unsubscribe(id, ch)

	if opts.Timeout <= 0 {
		select {
		case <-ch:
			return true
		default:
			return false
		}
	}

	timer := time.NewTimer(opts.Timeout)
	defer timer.Stop()

	select {
	case <-ch:
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}

// PollingSignals adapts a readiness predicate that can only be polled, such as a
// flag set by a module in shared state, to the Signals interface.
type PollingSignals struct {
	Ready  func(id string) bool
	Notify func(id string)
}

// Publish forwards to Notify when set.
func (p PollingSignals) Publish(id string) {
	if p.Notify != nil {
		p.Notify(id)
	}
}

// WaitFor polls Ready every opts.Interval until it returns true or the timeout elapses.
func (p PollingSignals) WaitFor(ctx context.Context, id string, opts WaitOptions) bool {
	if p.Ready == nil {
		return false
	}
	if p.Ready(id) {
		return true
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultSignalPollInterval
	}

	deadline := time.NewTimer(opts.Timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if p.Ready(id) {
				return true
			}
		case <-deadline.C:
			return p.Ready(id)
		case <-ctx.Done():
			return false
		}
	}
}
