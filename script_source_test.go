package zeros

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog_RunsInitializerWithBoundContext(t *testing.T) {
	registry := NewRegistry()
	bus := NewSignalBus()
	var seen ModuleContext

	catalog := NewCatalog().Define("kernel/clock", func(_ context.Context, mc ModuleContext) error {
		seen = mc
		mc.Registry.Add(CategoryServices, "clock", "rtc")
		mc.Ready()
		return nil
	})
	catalog.BindContext(registry, bus, nil)

	require.True(t, catalog.Has("kernel/clock"))
	require.NoError(t, catalog.LoadScript(context.Background(), "kernel/clock"))

	assert.Equal(t, "kernel/clock", seen.ID)
	assert.NotNil(t, seen.Logger)
	assert.True(t, bus.Published("kernel/clock"))
	_, ok := registry.Get(CategoryServices, "clock")
	assert.True(t, ok)
}

func TestCatalog_UnknownModule(t *testing.T) {
	err := NewCatalog().LoadScript(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrModuleNotFound)
}

func TestModuleContext_ReadyWithoutSignals(t *testing.T) {
	assert.NotPanics(t, func() { ModuleContext{ID: "x"}.Ready() })
}

func TestHTTPSource(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/modules/kernel/core":
			_, _ = w.Write([]byte("console.log('core')"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	registry := NewRegistry()
	bus := NewSignalBus()
	src := &HTTPSource{BaseURL: srv.URL + "/modules/", Client: srv.Client(), Evaluator: &RegistryEvaluator{}}
	src.BindContext(registry, bus, nil)

	require.NoError(t, src.LoadScript(context.Background(), "kernel/core"))
	rec, err := Lookup[ScriptRecord](registry, CategoryScripts, "kernel/core")
	require.NoError(t, err)
	assert.Equal(t, "console.log('core')", string(rec.Source))
	assert.Equal(t, len(rec.Source), rec.Size)
	assert.True(t, bus.Published("kernel/core"))

	err = src.LoadScript(context.Background(), "kernel/missing")
	assert.ErrorIs(t, err, ErrScriptFetchStatus)
	assert.Equal(t, int32(2), hits.Load())
}

func TestHTTPSource_NoEvaluator(t *testing.T) {
	src := &HTTPSource{BaseURL: "http://127.0.0.1:1"}
	assert.ErrorIs(t, src.LoadScript(context.Background(), "x"), ErrEvaluatorNil)
}

func TestHTTPSource_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	src := &HTTPSource{BaseURL: url, Evaluator: RegistryEvaluator{}}
	err := src.LoadScript(context.Background(), "x")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrScriptFetchStatus)
}

func TestDirSource(t *testing.T) {
	var evaluated []string
	src := &DirSource{
		FS: fstest.MapFS{
			"kernel/core.js": {Data: []byte("core")},
		},
		Ext: ".js",
		Evaluator: EvaluatorFunc(func(_ context.Context, id string, script []byte) error {
			evaluated = append(evaluated, id+"="+string(script))
			return nil
		}),
	}

	require.NoError(t, src.LoadScript(context.Background(), "kernel/core"))
	assert.Equal(t, []string{"kernel/core=core"}, evaluated)

	assert.Error(t, src.LoadScript(context.Background(), "kernel/missing"))
	assert.ErrorIs(t, src.LoadScript(context.Background(), "../escape"), ErrModuleNotFound)
}

func TestRegistryEvaluator_BindKeepsExplicitFields(t *testing.T) {
	own := NewRegistry()
	eval := &RegistryEvaluator{Registry: own}
	bus := NewSignalBus()
	eval.BindContext(NewRegistry(), bus, nil)

	assert.Same(t, own, eval.Registry)
	assert.Equal(t, Signals(bus), eval.Signals)
}

func TestScriptFunc(t *testing.T) {
	var got string
	src := ScriptFunc(func(_ context.Context, id string) error { got = id; return nil })
	require.NoError(t, src.LoadScript(context.Background(), "a"))
	assert.Equal(t, "a", got)
}
