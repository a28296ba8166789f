package zeros

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// ModuleLoadState is the lifecycle position of one module within a boot session.
//
//	Pending -> ScriptLoading -> ScriptLoaded -> SignalWait -> Ready
//	ScriptLoading -> Failed
//	Pending -> Failed (a dependency failed)
type ModuleLoadState int

const (
	StatePending ModuleLoadState = iota
	StateScriptLoading
	StateScriptLoaded
	StateSignalWait
	StateReady
	StateFailed
)

func (s ModuleLoadState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateScriptLoading:
		return "script_loading"
	case StateScriptLoaded:
		return "script_loaded"
	case StateSignalWait:
		return "signal_wait"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("ModuleLoadState(%d)", int(s))
	}
}

// MarshalText renders the state by name.
func (s ModuleLoadState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name produced by MarshalText.
func (s *ModuleLoadState) UnmarshalText(text []byte) error {
	for st := StatePending; st <= StateFailed; st++ {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown module load state %q", text)
}

// Terminal reports whether the state is Ready or Failed.
func (s ModuleLoadState) Terminal() bool {
	return s == StateReady || s == StateFailed
}

// LoaderConfig configures a Loader.
type LoaderConfig struct {
	// Source makes module code active. Required.
	Source ScriptSource

	// Signals is optional. Without it the loader sleeps GraceDelay after each
	// script load instead of waiting for a ready signal.
	Signals Signals

	// Registry is optional and only used for best-effort bookkeeping.
	Registry *Registry

	// Zero Wait fields and a zero GraceDelay take the package defaults.
	Wait       WaitOptions
	GraceDelay time.Duration
	Logger     Logger
}

// Loader loads a dependency graph layer by layer. Layers run strictly in
// sequence; modules within a layer load concurrently. Each module's script is
// loaded at most once per Loader, however many callers ask for it.
//
// A Loader is one boot session: create a new one for every boot attempt.
type Loader struct {
	cfg     LoaderConfig
	logger  Logger
	events  *observerHub
	session string

	memo *memo

	mu        sync.RWMutex
	states    map[string]ModuleLoadState
	graph     *DependencyGraph
	scheduled map[string]bool
}

// NewLoader creates a Loader.
func NewLoader(cfg LoaderConfig) *Loader {
	if cfg.Wait.Timeout == 0 {
		cfg.Wait.Timeout = DefaultSignalTimeout
	}
	if cfg.Wait.Interval == 0 {
		cfg.Wait.Interval = DefaultSignalPollInterval
	}
	if cfg.GraceDelay == 0 {
		cfg.GraceDelay = DefaultGraceDelay
	}
	return &Loader{
		cfg:    cfg,
		logger: loggerOrNop(cfg.Logger),
		memo:   newMemo(),
		states: make(map[string]ModuleLoadState),
	}
}

// LoadAll sorts and partitions g, then loads it. See LoadPlan.
func (l *Loader) LoadAll(ctx context.Context, g *DependencyGraph) error {
	order, err := Sort(g)
	if err != nil {
		return err
	}
	layers, err := Partition(order, g)
	if err != nil {
		return err
	}
	return l.LoadPlan(ctx, g, &Plan{Order: order, Layers: layers})
}

// LoadPlan loads every layer of plan in sequence.
//
// All modules of a layer are started together and the layer is joined before
// the next one starts. If any module fails, the join still waits for its
// siblings, which stay loaded, and LoadPlan returns the first failure without
// starting later layers. A cancelled ctx stops before the next layer, and a
// layer that was cancelled while loading is reported as cancelled rather than
// loaded.
func (l *Loader) LoadPlan(ctx context.Context, g *DependencyGraph, plan *Plan) error {
	if l.cfg.Source == nil {
		return ErrNoScriptSource
	}

	l.mu.Lock()
	l.graph = g
	l.scheduled = make(map[string]bool, len(plan.Order))
	for _, id := range plan.Order {
		l.scheduled[id] = true
		if _, ok := l.states[id]; !ok {
			l.states[id] = StatePending
		}
	}
	l.mu.Unlock()

	for i, layer := range plan.Layers {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("boot cancelled before layer %d: %w", i, err)
		}

		start := time.Now()
		l.logger.Debug("Loading layer", "layer", i, "modules", []string(layer))

		var grp errgroup.Group
		for _, id := range layer {
			grp.Go(func() error {
				return l.loadModule(ctx, id)
			})
		}
		if err := grp.Wait(); err != nil {
			l.logger.Error("Layer failed", "layer", i, "module", FailedModule(err), "error", err)
			return err
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("boot cancelled during layer %d: %w", i, err)
		}
		l.logger.Info("Layer loaded", "layer", i, "modules", len(layer), "duration", time.Since(start))
	}
	return nil
}

// loadModule runs the four per-module steps: dependency re-check, script load,
// registration and ready wait.
func (l *Loader) loadModule(ctx context.Context, id string) error {
	for _, dep := range l.graph.Dependencies(id) {
		if !l.isScheduled(dep) || l.State(dep) == StateReady {
			continue
		}
		if err := l.LoadScript(ctx, dep); err != nil {
			if isCancellation(err) {
				return fmt.Errorf("boot cancelled while %s awaited %s: %w", id, dep, err)
			}
			l.fail(ctx, id, err)
			return &DependencyLoadError{Module: id, Dependency: dep, Cause: err}
		}
	}

	if err := l.LoadScript(ctx, id); err != nil {
		if isCancellation(err) {
			return fmt.Errorf("boot cancelled while loading %s: %w", id, err)
		}
		l.fail(ctx, id, err)
		return err
	}

	l.register(id)
	if err := l.awaitReady(ctx, id); err != nil {
		return fmt.Errorf("boot cancelled while %s awaited ready: %w", id, err)
	}

	l.setState(id, StateReady)
	l.emit(ctx, EventTypeModuleReady, id, nil)
	return nil
}

// LoadScript makes id's code active, at most once per Loader. Concurrent callers
// share the same in-flight load and all observe its outcome. Failures are
// returned as *ScriptLoadError. A caller whose ctx ends before a shared load
// finishes gets the bare ctx error; that is not a failure of id.
func (l *Loader) LoadScript(ctx context.Context, id string) error {
	err := l.memo.Do(ctx, id, func() error {
		l.setState(id, StateScriptLoading)
		l.emit(ctx, EventTypeModuleLoading, id, nil)

		if err := l.cfg.Source.LoadScript(ctx, id); err != nil {
			return &ScriptLoadError{Module: id, Cause: err}
		}

		l.setState(id, StateScriptLoaded)
		l.emit(ctx, EventTypeModuleLoaded, id, nil)
		return nil
	})
	if err == nil {
		return nil
	}
	var scriptErr *ScriptLoadError
	if errors.As(err, &scriptErr) || isCancellation(err) {
		return err
	}
	return &ScriptLoadError{Module: id, Cause: err}
}

// isCancellation reports a ctx error that was not produced by a script load.
func isCancellation(err error) bool {
	var scriptErr *ScriptLoadError
	if errors.As(err, &scriptErr) {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// ScriptLoads returns how many times the script source was actually invoked for id.
func (l *Loader) ScriptLoads(id string) int {
	return l.memo.Runs(id)
}

func (l *Loader) register(id string) {
	if l.cfg.Registry == nil {
		return
	}
	entry := ModuleEntry{ID: id, Linked: true, RegisteredAt: time.Now()}
	if l.cfg.Registry.AddIfAbsent(CategoryModules, id, entry) {
		l.logger.Debug("Registered default module entry", "module", id)
	}
}

// awaitReady returns a non-nil error only when ctx ended; a missing ready
// signal is logged and tolerated.
func (l *Loader) awaitReady(ctx context.Context, id string) error {
	if l.cfg.Signals == nil {
		timer := time.NewTimer(l.cfg.GraceDelay)
		defer timer.Stop()
		select {
		case <-timer.C:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	l.setState(id, StateSignalWait)
	if !l.cfg.Signals.WaitFor(ctx, id, l.cfg.Wait) {
		if err := ctx.Err(); err != nil {
			return err
		}
		l.logger.Warn("Proceeding without ready signal", "module", id, "timeout", l.cfg.Wait.Timeout, "error", ErrSignalWaitTimeout)
	}
	return nil
}

func (l *Loader) fail(ctx context.Context, id string, err error) {
	l.setState(id, StateFailed)
	l.emit(ctx, EventTypeModuleFailed, id, err)
}

func (l *Loader) emit(ctx context.Context, eventType, id string, err error) {
	if l.events == nil {
		return
	}
	data := map[string]any{"module": id}
	if err != nil {
		data["error"] = err.Error()
	}
	var meta map[string]any
	if l.session != "" {
		meta = map[string]any{"session": l.session}
	}
	l.events.emit(ctx, eventType, EventSourceLoader, data, meta)
}

func (l *Loader) isScheduled(id string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.scheduled[id]
}

func (l *Loader) setState(id string, s ModuleLoadState) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.states[id] = s
}

// State returns the current state of id. Unknown ids are Pending.
func (l *Loader) State(id string) ModuleLoadState {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.states[id]
}

// LoadStates returns a snapshot of every module's state.
func (l *Loader) LoadStates() map[string]ModuleLoadState {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return maps.Clone(l.states)
}
