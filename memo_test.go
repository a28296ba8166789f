package zeros

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemo_ConcurrentCallersShareOneRun(t *testing.T) {
	m := newMemo()
	var runs atomic.Int32
	release := make(chan struct{})

	const callers = 16
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = m.Do(context.Background(), "x", func() error {
				runs.Add(1)
				<-release
				return errBoom
			})
		}()
	}

	require.Eventually(t, func() bool { return m.Runs("x") == 1 }, time.Second, time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), runs.Load())
	for _, err := range errs {
		assert.ErrorIs(t, err, errBoom)
	}
}

func TestMemo_ResultIsPermanent(t *testing.T) {
	m := newMemo()
	calls := 0
	fn := func() error { calls++; return nil }

	require.NoError(t, m.Do(context.Background(), "x", fn))
	require.NoError(t, m.Do(context.Background(), "x", fn))
	assert.Equal(t, 1, calls)

	done, err := m.Completed("x")
	assert.True(t, done)
	assert.NoError(t, err)

	done, _ = m.Completed("unknown")
	assert.False(t, done)
}

func TestMemo_FailureIsRemembered(t *testing.T) {
	m := newMemo()
	calls := 0
	fn := func() error { calls++; return errBoom }

	assert.ErrorIs(t, m.Do(context.Background(), "x", fn), errBoom)
	assert.ErrorIs(t, m.Do(context.Background(), "x", fn), errBoom)
	assert.Equal(t, 1, calls)
}

func TestMemo_PanicBecomesError(t *testing.T) {
	m := newMemo()

	err := m.Do(context.Background(), "x", func() error { panic("bad script") })
	assert.ErrorIs(t, err, ErrScriptPanicked)
	assert.Contains(t, err.Error(), "bad script")

	// Later callers see the same failure instead of blocking.
	err = m.Do(context.Background(), "x", func() error { return nil })
	assert.ErrorIs(t, err, ErrScriptPanicked)
}

func TestMemo_WaiterRespectsContext(t *testing.T) {
	m := newMemo()
	release := make(chan struct{})
	defer close(release)

	go func() {
		_ = m.Do(context.Background(), "slow", func() error { <-release; return nil })
	}()
	require.Eventually(t, func() bool { return m.Runs("slow") == 1 }, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := m.Do(ctx, "slow", func() error { t.Error("must not run twice"); return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, m.Runs("slow"))
}
