package zeros

import (
	"context"
	"slices"
	"sync"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
)

// Observer is notified of bootloader events. Events use the CloudEvents format.
type Observer interface {
	// OnEvent is called once per event. It runs on its own goroutine and should
	// return quickly.
	OnEvent(ctx context.Context, event cloudevents.Event) error

	// ObserverID returns a unique identifier for this observer.
	ObserverID() string
}

// Subject is anything observers can register with.
type Subject interface {
	// RegisterObserver adds an observer. If eventTypes is empty the observer
	// receives every event.
	RegisterObserver(observer Observer, eventTypes ...string) error

	// UnregisterObserver removes an observer. It is idempotent.
	UnregisterObserver(observer Observer) error

	// NotifyObservers delivers event to all interested observers without blocking.
	NotifyObservers(ctx context.Context, event cloudevents.Event) error

	GetObservers() []ObserverInfo
}

// ObserverInfo describes a registered observer.
type ObserverInfo struct {
	ID           string    `json:"id"`
	EventTypes   []string  `json:"eventTypes"`
	RegisteredAt time.Time `json:"registeredAt"`
}

// Event types emitted by the bootloader.
const (
	// Module load lifecycle
	EventTypeModuleLoading = "com.zeros.module.loading"
	EventTypeModuleLoaded  = "com.zeros.module.loaded"
	EventTypeModuleReady   = "com.zeros.module.ready"
	EventTypeModuleFailed  = "com.zeros.module.failed"

	// Boot lifecycle
	EventTypeBootStarted   = "com.zeros.boot.started"
	EventTypeBootCompleted = "com.zeros.boot.completed"
	EventTypeBootFailed    = "com.zeros.boot.failed"

	// Self-check
	EventTypeSelfCheckProgress  = "com.zeros.selfcheck.progress"
	EventTypeSelfCheckCompleted = "com.zeros.selfcheck.completed"
)

// FunctionalObserver provides a simple way to create observers using functions.
type FunctionalObserver struct {
	id      string
	handler func(ctx context.Context, event cloudevents.Event) error
}

// NewFunctionalObserver creates a new observer that uses the provided function
// to handle events.
func NewFunctionalObserver(id string, handler func(ctx context.Context, event cloudevents.Event) error) Observer {
	return &FunctionalObserver{id: id, handler: handler}
}

// OnEvent implements the Observer interface by calling the handler function.
func (f *FunctionalObserver) OnEvent(ctx context.Context, event cloudevents.Event) error {
	return f.handler(ctx, event)
}

// ObserverID implements the Observer interface by returning the observer ID.
func (f *FunctionalObserver) ObserverID() string {
	return f.id
}

type observerRegistration struct {
	observer     Observer
	eventTypes   map[string]bool
	registeredAt time.Time
}

// observerHub is the Subject implementation shared by the bootloader and its loader.
type observerHub struct {
	mu        sync.RWMutex
	observers map[string]*observerRegistration
	logger    Logger
	wg        sync.WaitGroup
}

func newObserverHub(logger Logger) *observerHub {
	return &observerHub{
		observers: make(map[string]*observerRegistration),
		logger:    loggerOrNop(logger),
	}
}

func (h *observerHub) RegisterObserver(observer Observer, eventTypes ...string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	types := make(map[string]bool, len(eventTypes))
	for _, t := range eventTypes {
		types[t] = true
	}
	h.observers[observer.ObserverID()] = &observerRegistration{
		observer:     observer,
		eventTypes:   types,
		registeredAt: time.Now(),
	}
	h.logger.Debug("Observer registered", "observerID", observer.ObserverID(), "eventTypes", eventTypes)
	return nil
}

func (h *observerHub) UnregisterObserver(observer Observer) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.observers, observer.ObserverID())
	return nil
}

func (h *observerHub) NotifyObservers(ctx context.Context, event cloudevents.Event) error {
	if event.Time().IsZero() {
		event.SetTime(time.Now())
	}
	if err := ValidateCloudEvent(event); err != nil {
		h.logger.Error("Invalid CloudEvent", "eventType", event.Type(), "error", err)
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, reg := range h.observers {
		if len(reg.eventTypes) > 0 && !reg.eventTypes[event.Type()] {
			continue
		}
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					h.logger.Error("Observer panicked", "observerID", reg.observer.ObserverID(), "event", event.Type(), "panic", r)
				}
			}()
			if err := reg.observer.OnEvent(ctx, event); err != nil {
				h.logger.Error("Observer error", "observerID", reg.observer.ObserverID(), "event", event.Type(), "error", err)
			}
		}()
	}
	return nil
}

func (h *observerHub) GetObservers() []ObserverInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()

	info := make([]ObserverInfo, 0, len(h.observers))
	for _, reg := range h.observers {
		types := make([]string, 0, len(reg.eventTypes))
		for t := range reg.eventTypes {
			types = append(types, t)
		}
		slices.Sort(types)
		info = append(info, ObserverInfo{
			ID:           reg.observer.ObserverID(),
			EventTypes:   types,
			RegisteredAt: reg.registeredAt,
		})
	}
	slices.SortFunc(info, func(a, b ObserverInfo) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return info
}

// emit builds and delivers an event. A nil hub is a no-op.
func (h *observerHub) emit(ctx context.Context, eventType, source string, data any, metadata map[string]any) {
	if h == nil {
		return
	}
	event := NewCloudEvent(eventType, source, data, metadata)
	if err := h.NotifyObservers(ctx, event); err != nil {
		h.logger.Error("Failed to notify observers", "event", eventType, "error", err)
	}
}

// drain blocks until every in-flight observer call has returned.
func (h *observerHub) drain() {
	h.wg.Wait()
}
