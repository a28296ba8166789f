package zeros

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

// logEntry is one recorded log call.
type logEntry struct {
	Level string
	Msg   string
	Args  []any
}

// recordingLogger captures log calls so tests can assert on warnings. It is
// safe for use from observer goroutines that outlive a test.
type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *recordingLogger) log(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{Level: level, Msg: msg, Args: args})
}

func (l *recordingLogger) Info(msg string, args ...any)  { l.log("INFO", msg, args) }
func (l *recordingLogger) Error(msg string, args ...any) { l.log("ERROR", msg, args) }
func (l *recordingLogger) Warn(msg string, args ...any)  { l.log("WARN", msg, args) }
func (l *recordingLogger) Debug(msg string, args ...any) { l.log("DEBUG", msg, args) }

func (l *recordingLogger) messages(level string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, e := range l.entries {
		if e.Level == level {
			out = append(out, e.Msg)
		}
	}
	return out
}

// scriptRecorder is a ScriptSource that counts calls and can be told to fail,
// block or publish per module.
type scriptRecorder struct {
	mu       sync.Mutex
	calls    map[string]int
	order    []string
	failures map[string]error
	delays   map[string]time.Duration
	signals  Signals
	silent   map[string]bool
}

func newScriptRecorder() *scriptRecorder {
	return &scriptRecorder{
		calls:    make(map[string]int),
		failures: make(map[string]error),
		delays:   make(map[string]time.Duration),
		silent:   make(map[string]bool),
	}
}

func (s *scriptRecorder) failWith(id string, err error) *scriptRecorder {
	s.failures[id] = err
	return s
}

func (s *scriptRecorder) delay(id string, d time.Duration) *scriptRecorder {
	s.delays[id] = d
	return s
}

func (s *scriptRecorder) LoadScript(ctx context.Context, id string) error {
	s.mu.Lock()
	s.calls[id]++
	s.order = append(s.order, id)
	err := s.failures[id]
	d := s.delays[id]
	signals := s.signals
	silent := s.silent[id]
	s.mu.Unlock()

	if d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err != nil {
		return err
	}
	if signals != nil && !silent {
		signals.Publish(id)
	}
	return nil
}

func (s *scriptRecorder) count(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[id]
}

func (s *scriptRecorder) attempted(id string) bool {
	return s.count(id) > 0
}

// networkError stands in for a transport failure of a script fetch.
type networkError struct{ reason string }

func (e networkError) Error() string { return fmt.Sprintf("network error: %s", e.reason) }

var errBoom = errors.New("boom")

func mustPlan(t *testing.T, decl Declaration) (*DependencyGraph, *Plan) {
	t.Helper()
	g, plan, err := PlanDeclaration(decl)
	if err != nil {
		t.Fatalf("planning declaration: %v", err)
	}
	return g, plan
}

// diamond is {A: [], B: [A], C: [A], D: [B, C]}.
func diamond() Declaration {
	return Declaration{
		{ID: "A"},
		{ID: "B", Dependencies: []string{"A"}},
		{ID: "C", Dependencies: []string{"A"}},
		{ID: "D", Dependencies: []string{"B", "C"}},
	}
}
