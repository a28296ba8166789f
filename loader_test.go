package zeros

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLoader(src ScriptSource, signals Signals, registry *Registry) *Loader {
	return NewLoader(LoaderConfig{
		Source:     src,
		Signals:    signals,
		Registry:   registry,
		Wait:       WaitOptions{Interval: time.Millisecond, Timeout: 50 * time.Millisecond},
		GraceDelay: time.Millisecond,
		Logger:     &recordingLogger{},
	})
}

func TestLoader_LoadAllDiamond(t *testing.T) {
	bus := NewSignalBus()
	src := newScriptRecorder()
	src.signals = bus
	registry := NewRegistry()
	l := newTestLoader(src, bus, registry)

	g, err := NewDependencyGraph(diamond())
	require.NoError(t, err)
	require.NoError(t, l.LoadAll(context.Background(), g))

	for _, id := range []string{"A", "B", "C", "D"} {
		assert.Equal(t, StateReady, l.State(id), id)
		assert.Equal(t, 1, src.count(id), id)
		entry, err := Lookup[ModuleEntry](registry, CategoryModules, id)
		require.NoError(t, err)
		assert.True(t, entry.Linked)
	}

	pos := map[string]int{}
	for i, id := range src.order {
		pos[id] = i
	}
	assert.Less(t, pos["A"], pos["B"])
	assert.Less(t, pos["A"], pos["C"])
	assert.Less(t, pos["B"], pos["D"])
	assert.Less(t, pos["C"], pos["D"])
}

func TestLoader_ConcurrentLoadScriptIsIdempotent(t *testing.T) {
	src := newScriptRecorder().delay("x", 20*time.Millisecond)
	l := newTestLoader(src, nil, nil)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = l.LoadScript(context.Background(), "x")
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, src.count("x"))
	assert.Equal(t, 1, l.ScriptLoads("x"))
	for _, err := range errs {
		assert.NoError(t, err)
	}
}

func TestLoader_ConcurrentFailureSeenByAll(t *testing.T) {
	src := newScriptRecorder().delay("x", 10*time.Millisecond).failWith("x", errBoom)
	l := newTestLoader(src, nil, nil)

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = l.LoadScript(context.Background(), "x")
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, src.count("x"))
	for _, err := range errs {
		var scriptErr *ScriptLoadError
		require.ErrorAs(t, err, &scriptErr)
		assert.Equal(t, "x", scriptErr.Module)
		assert.ErrorIs(t, err, errBoom)
	}
}

func TestLoader_MissingSignalStillCompletes(t *testing.T) {
	bus := NewSignalBus()
	src := newScriptRecorder()
	src.signals = bus
	src.silent["quiet"] = true
	logger := &recordingLogger{}
	l := NewLoader(LoaderConfig{
		Source:  src,
		Signals: bus,
		Wait:    WaitOptions{Interval: time.Millisecond, Timeout: 30 * time.Millisecond},
		Logger:  logger,
	})

	g, err := NewDependencyGraph(Declaration{{ID: "quiet"}, {ID: "after", Dependencies: []string{"quiet"}}})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- l.LoadAll(context.Background(), g) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("LoadAll hung on a missing ready signal")
	}
	assert.Equal(t, StateReady, l.State("quiet"))
	assert.Equal(t, StateReady, l.State("after"))
	assert.Contains(t, logger.messages("WARN"), "Proceeding without ready signal")
}

func TestLoader_FatalPropagationStopsLaterLayers(t *testing.T) {
	netErr := networkError{reason: "timeout"}
	src := newScriptRecorder().failWith("X", netErr)
	l := newTestLoader(src, nil, nil)

	g, err := NewDependencyGraph(Declaration{
		{ID: "base"},
		{ID: "X", Dependencies: []string{"base"}},
		{ID: "Y", Dependencies: []string{"base"}},
		{ID: "Z", Dependencies: []string{"X"}},
		{ID: "W", Dependencies: []string{"Y"}},
	})
	require.NoError(t, err)

	err = l.LoadAll(context.Background(), g)
	require.Error(t, err)

	var scriptErr *ScriptLoadError
	require.ErrorAs(t, err, &scriptErr)
	assert.Equal(t, "X", scriptErr.Module)
	assert.True(t, errors.Is(err, ErrScriptLoadFailed))
	var cause networkError
	require.ErrorAs(t, err, &cause)
	assert.Equal(t, "timeout", cause.reason)
	assert.Equal(t, "X", FailedModule(err))

	assert.False(t, src.attempted("Z"), "layer after X must not start")
	assert.False(t, src.attempted("W"), "layer after X must not start")
	assert.Equal(t, StateFailed, l.State("X"))
	assert.Equal(t, StatePending, l.State("Z"))
}

func TestLoader_SiblingStaysLoaded(t *testing.T) {
	// Y resolves before X fails; there is no rollback.
	src := newScriptRecorder().failWith("X", networkError{reason: "timeout"}).delay("X", 20*time.Millisecond)
	registry := NewRegistry()
	l := newTestLoader(src, nil, registry)

	g, err := NewDependencyGraph(Declaration{{ID: "X"}, {ID: "Y"}, {ID: "after", Dependencies: []string{"X", "Y"}}})
	require.NoError(t, err)

	err = l.LoadAll(context.Background(), g)
	require.Error(t, err)

	assert.Equal(t, StateReady, l.State("Y"))
	_, ok := registry.Get(CategoryModules, "Y")
	assert.True(t, ok)
	assert.Equal(t, StateFailed, l.State("X"))
	assert.False(t, src.attempted("after"))
}

func TestLoader_DependencyRecheckWrapsFailure(t *testing.T) {
	src := newScriptRecorder().failWith("dep", errBoom)
	l := newTestLoader(src, nil, nil)

	g, err := NewDependencyGraph(Declaration{{ID: "dep"}, {ID: "mod", Dependencies: []string{"dep"}}})
	require.NoError(t, err)

	// Load mod's layer directly, as if dep's layer had been skipped.
	err = l.LoadPlan(context.Background(), g, &Plan{Order: LoadOrder{"dep", "mod"}, Layers: []LoadLayer{{"mod"}}})

	var depErr *DependencyLoadError
	require.ErrorAs(t, err, &depErr)
	assert.Equal(t, "mod", depErr.Module)
	assert.Equal(t, "dep", depErr.Dependency)
	assert.True(t, IsScriptLoadFailed(err))
	assert.Equal(t, "dep", FailedModule(err))
	assert.Equal(t, 1, src.count("dep"))
	assert.Zero(t, src.count("mod"))
}

func TestLoader_ExternalDependencyNotLoaded(t *testing.T) {
	src := newScriptRecorder()
	l := newTestLoader(src, nil, nil)

	g, err := NewDependencyGraph(Declaration{{ID: "M", Dependencies: []string{"N"}}})
	require.NoError(t, err)
	require.NoError(t, l.LoadAll(context.Background(), g))

	assert.Equal(t, 1, src.count("M"))
	assert.Zero(t, src.count("N"))
}

func TestLoader_CycleLoadsNothing(t *testing.T) {
	src := newScriptRecorder()
	l := newTestLoader(src, nil, nil)

	g, err := NewDependencyGraph(Declaration{
		{ID: "A", Dependencies: []string{"B"}},
		{ID: "B", Dependencies: []string{"A"}},
	})
	require.NoError(t, err)

	err = l.LoadAll(context.Background(), g)
	assert.True(t, IsCycleDetected(err))
	assert.Empty(t, src.order)
}

func TestLoader_CancelledBeforeLayer(t *testing.T) {
	src := newScriptRecorder()
	l := newTestLoader(src, nil, nil)
	g, err := NewDependencyGraph(diamond())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = l.LoadAll(ctx, g)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, src.order)
}

func TestLoader_CancelledDuringFinalLayer(t *testing.T) {
	bus := NewSignalBus()
	src := newScriptRecorder()
	src.signals = bus
	src.silent["quiet"] = true
	l := NewLoader(LoaderConfig{
		Source:  src,
		Signals: bus,
		Wait:    WaitOptions{Interval: time.Millisecond, Timeout: 2 * time.Second},
		Logger:  &recordingLogger{},
	})
	g, err := NewDependencyGraph(Declaration{{ID: "quiet"}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	start := time.Now()
	err = l.LoadAll(ctx, g)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
	assert.NotEqual(t, StateReady, l.State("quiet"))
	assert.Empty(t, FailedModule(err))
}

func TestLoader_CancelledGraceDelayIsNotReady(t *testing.T) {
	l := NewLoader(LoaderConfig{
		Source:     newScriptRecorder(),
		GraceDelay: time.Second,
		Logger:     &recordingLogger{},
	})
	g, err := NewDependencyGraph(Declaration{{ID: "x"}})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	err = l.LoadAll(ctx, g)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, StateScriptLoaded, l.State("x"))
}

func TestLoader_WaiterDeadlineIsNotScriptFailure(t *testing.T) {
	src := newScriptRecorder().delay("slow", 150*time.Millisecond)
	l := newTestLoader(src, nil, nil)

	owner := make(chan error, 1)
	go func() { owner <- l.LoadScript(context.Background(), "slow") }()
	require.Eventually(t, func() bool { return src.count("slow") == 1 }, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := l.LoadScript(ctx, "slow")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, IsScriptLoadFailed(err))
	assert.Empty(t, FailedModule(err))

	require.NoError(t, <-owner)
	assert.Equal(t, StateScriptLoaded, l.State("slow"))
	assert.Equal(t, 1, src.count("slow"))
}

func TestLoader_DependencyWaiterCancelledDoesNotFailModule(t *testing.T) {
	src := newScriptRecorder().delay("A", 200*time.Millisecond)
	l := newTestLoader(src, nil, nil)
	g, err := NewDependencyGraph(Declaration{{ID: "A"}, {ID: "B", Dependencies: []string{"A"}}})
	require.NoError(t, err)

	l.mu.Lock()
	l.graph = g
	l.scheduled = map[string]bool{"A": true, "B": true}
	l.mu.Unlock()

	go func() { _ = l.LoadScript(context.Background(), "A") }()
	require.Eventually(t, func() bool { return src.count("A") == 1 }, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = l.loadModule(ctx, "B")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	var depErr *DependencyLoadError
	assert.False(t, errors.As(err, &depErr))
	assert.NotEqual(t, StateFailed, l.State("B"))
}

func TestNewLoader_ZeroWaitTakesDefaults(t *testing.T) {
	l := NewLoader(LoaderConfig{Source: newScriptRecorder()})
	assert.Equal(t, DefaultSignalTimeout, l.cfg.Wait.Timeout)
	assert.Equal(t, DefaultSignalPollInterval, l.cfg.Wait.Interval)
	assert.Equal(t, DefaultGraceDelay, l.cfg.GraceDelay)

	sc := NewSelfCheck(SelfCheckConfig{})
	assert.Equal(t, DefaultPeripheralSignalTimeout, sc.cfg.Wait.Timeout)
}

func TestLoader_NoSource(t *testing.T) {
	l := NewLoader(LoaderConfig{})
	g, err := NewDependencyGraph(diamond())
	require.NoError(t, err)
	assert.ErrorIs(t, l.LoadAll(context.Background(), g), ErrNoScriptSource)
}

func TestLoader_ScriptPanicIsScriptLoadFailure(t *testing.T) {
	src := ScriptFunc(func(context.Context, string) error { panic("syntax error") })
	l := newTestLoader(src, nil, nil)

	err := l.LoadScript(context.Background(), "bad")
	assert.True(t, IsScriptLoadFailed(err))
	assert.ErrorIs(t, err, ErrScriptPanicked)
	assert.Equal(t, "bad", FailedModule(err))
}

func TestModuleLoadState_Text(t *testing.T) {
	b, err := StateSignalWait.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "signal_wait", string(b))
	assert.True(t, StateFailed.Terminal())
	assert.False(t, StateScriptLoaded.Terminal())
	assert.Equal(t, "ModuleLoadState(42)", ModuleLoadState(42).String())
}
