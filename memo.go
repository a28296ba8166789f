package zeros

import (
	"context"
	"fmt"
	"sync"
)

// memoCall is an in-flight or completed call for one key.
type memoCall struct {
	done chan struct{}
	err  error
}

// memo runs a function at most once per key and remembers the result.
// Concurrent callers for the same key block on the same in-flight call; later
// callers get the stored outcome. Unlike singleflight, results are never forgotten
// within a boot session, which is what guarantees at-most-one-fetch-per-id.
type memo struct {
	mu    sync.Mutex
	calls map[string]*memoCall
	runs  map[string]int
}

func newMemo() *memo {
	return &memo{
		calls: make(map[string]*memoCall),
		runs:  make(map[string]int),
	}
}

// Do runs fn for key unless a call for key already exists. The wait on an
// existing call respects ctx; the underlying call is never cancelled by a waiter.
func (m *memo) Do(ctx context.Context, key string, fn func() error) error {
	m.mu.Lock()
	if c, ok := m.calls[key]; ok {
		m.mu.Unlock()
		select {
		case <-c.done:
			return c.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	c := &memoCall{done: make(chan struct{})}
	m.calls[key] = c
	m.runs[key]++
	m.mu.Unlock()

	func() {
		defer func() {
			if r := recover(); r != nil {
				c.err = fmt.Errorf("%w: %v", ErrScriptPanicked, r)
			}
		}()
		c.err = fn()
	}()
	close(c.done)
	return c.err
}

// Completed reports whether the call for key has finished, and its outcome.
func (m *memo) Completed(key string) (bool, error) {
	m.mu.Lock()
	c, exists := m.calls[key]
	m.mu.Unlock()
	if !exists {
		return false, nil
	}
	select {
	case <-c.done:
		return true, c.err
	default:
		return false, nil
	}
}

// Runs returns how many times fn actually executed for key.
func (m *memo) Runs(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runs[key]
}
