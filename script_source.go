package zeros

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"
)

// CategoryScripts holds the raw source of modules fetched by HTTPSource or DirSource.
const CategoryScripts = "scripts"

// maxScriptSize caps how much of a script body is read.
const maxScriptSize = 16 << 20

// ScriptSource makes a module's code active. The loader guarantees it calls
// LoadScript at most once per id within a boot session.
type ScriptSource interface {
	LoadScript(ctx context.Context, id string) error
}

// ScriptFunc adapts a function to ScriptSource.
type ScriptFunc func(ctx context.Context, id string) error

// LoadScript calls f.
func (f ScriptFunc) LoadScript(ctx context.Context, id string) error {
	return f(ctx, id)
}

// ContextBinder is implemented by script sources that hand shared boot state to
// the modules they run. The bootloader binds them before loading starts.
type ContextBinder interface {
	BindContext(registry *Registry, signals Signals, logger Logger)
}

// ModuleContext is what an in-process module initializer sees.
type ModuleContext struct {
	ID       string
	Registry *Registry
	Signals  Signals
	Logger   Logger
}

// Ready publishes the module's ready signal, if a signal bus is bound.
func (m ModuleContext) Ready() {
	if m.Signals != nil {
		m.Signals.Publish(m.ID)
	}
}

// ModuleInit is the top-level code of an in-process module.
type ModuleInit func(ctx context.Context, mc ModuleContext) error

// Catalog is a ScriptSource backed by in-process module initializers.
type Catalog struct {
	mu       sync.RWMutex
	inits    map[string]ModuleInit
	registry *Registry
	signals  Signals
	logger   Logger
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{inits: make(map[string]ModuleInit), logger: nopLogger{}}
}

// Define adds or replaces the initializer for id.
func (c *Catalog) Define(id string, init ModuleInit) *Catalog {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inits[id] = init
	return c
}

// Has reports whether id has an initializer.
func (c *Catalog) Has(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.inits[id]
	return ok
}

// BindContext implements ContextBinder.
func (c *Catalog) BindContext(registry *Registry, signals Signals, logger Logger) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.registry = registry
	c.signals = signals
	c.logger = loggerOrNop(logger)
}

// LoadScript runs the initializer for id.
func (c *Catalog) LoadScript(ctx context.Context, id string) error {
	c.mu.RLock()
	init, ok := c.inits[id]
	mc := ModuleContext{ID: id, Registry: c.registry, Signals: c.signals, Logger: c.logger}
	c.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrModuleNotFound, id)
	}
	return init(ctx, mc)
}

// Evaluator executes fetched module source.
type Evaluator interface {
	Evaluate(ctx context.Context, id string, script []byte) error
}

// EvaluatorFunc adapts a function to Evaluator.
type EvaluatorFunc func(ctx context.Context, id string, script []byte) error

// Evaluate calls f.
func (f EvaluatorFunc) Evaluate(ctx context.Context, id string, script []byte) error {
	return f(ctx, id, script)
}

// ScriptRecord is what RegistryEvaluator stores for each evaluated script.
type ScriptRecord struct {
	ID       string    `json:"id"`
	Size     int       `json:"size"`
	LoadedAt time.Time `json:"loadedAt"`
	Source   []byte    `json:"-"`
}

// RegistryEvaluator records each script in the scripts category and, when
// Signals is set, announces the module ready. It is the evaluator used when a
// module's source is data rather than Go code.
type RegistryEvaluator struct {
	Registry *Registry
	Signals  Signals
}

// Evaluate implements Evaluator.
func (e RegistryEvaluator) Evaluate(_ context.Context, id string, script []byte) error {
	if e.Registry != nil {
		e.Registry.Add(CategoryScripts, id, ScriptRecord{
			ID:       id,
			Size:     len(script),
			LoadedAt: time.Now(),
			Source:   script,
		})
	}
	if e.Signals != nil {
		e.Signals.Publish(id)
	}
	return nil
}

// BindContext fills in whichever of Registry and Signals is unset.
func (e *RegistryEvaluator) BindContext(registry *Registry, signals Signals, _ Logger) {
	if e.Registry == nil {
		e.Registry = registry
	}
	if e.Signals == nil {
		e.Signals = signals
	}
}

func bindEvaluator(eval Evaluator, registry *Registry, signals Signals, logger Logger) {
	if b, ok := eval.(ContextBinder); ok {
		b.BindContext(registry, signals, logger)
	}
}

// HTTPSource fetches <BaseURL>/<id> and hands the body to Evaluator.
type HTTPSource struct {
	BaseURL   string
	Client    *http.Client
	Evaluator Evaluator
}

// BindContext implements ContextBinder by forwarding to the evaluator.
func (s *HTTPSource) BindContext(registry *Registry, signals Signals, logger Logger) {
	bindEvaluator(s.Evaluator, registry, signals, logger)
}

// LoadScript implements ScriptSource.
func (s *HTTPSource) LoadScript(ctx context.Context, id string) error {
	if s.Evaluator == nil {
		return ErrEvaluatorNil
	}
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	url := strings.TrimSuffix(s.BaseURL, "/") + "/" + strings.TrimPrefix(id, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("building request for %s: %w", id, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s returned %d", ErrScriptFetchStatus, url, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxScriptSize))
	if err != nil {
		return fmt.Errorf("reading %s: %w", url, err)
	}
	return s.Evaluator.Evaluate(ctx, id, body)
}

// DirSource reads <id><Ext> from FS and hands the content to Evaluator.
type DirSource struct {
	FS        fs.FS
	Ext       string
	Evaluator Evaluator
}

// NewDirSource reads scripts from dir on the local filesystem.
func NewDirSource(dir, ext string, eval Evaluator) *DirSource {
	return &DirSource{FS: os.DirFS(dir), Ext: ext, Evaluator: eval}
}

// BindContext implements ContextBinder by forwarding to the evaluator.
func (s *DirSource) BindContext(registry *Registry, signals Signals, logger Logger) {
	bindEvaluator(s.Evaluator, registry, signals, logger)
}

// LoadScript implements ScriptSource.
func (s *DirSource) LoadScript(ctx context.Context, id string) error {
	if s.Evaluator == nil {
		return ErrEvaluatorNil
	}
	name := id + s.Ext
	if !fs.ValidPath(name) {
		return fmt.Errorf("%w: invalid script path %q", ErrModuleNotFound, name)
	}
	body, err := fs.ReadFile(s.FS, name)
	if err != nil {
		return fmt.Errorf("reading script %s: %w", name, err)
	}
	return s.Evaluator.Evaluate(ctx, id, body)
}
