package zeros

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
)

// ParseSchedule parses a standard five-field cron expression or a descriptor
// such as "@every 5m".
func ParseSchedule(spec string) (cron.Schedule, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid self-check schedule %q: %w", spec, err)
	}
	return schedule, nil
}

// cronLogger adapts Logger to cron.Logger.
type cronLogger struct {
	logger Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}

// SelfCheckScheduler re-runs a self-check on a cron schedule. Runs never overlap
// and a panicking run is recovered.
type SelfCheckScheduler struct {
	cron   *cron.Cron
	logger Logger

	mu      sync.Mutex
	started bool
}

// NewSelfCheckScheduler creates a stopped scheduler.
func NewSelfCheckScheduler(logger Logger) *SelfCheckScheduler {
	logger = loggerOrNop(logger)
	cl := cronLogger{logger: logger}
	return &SelfCheckScheduler{
		cron:   cron.New(cron.WithLogger(cl), cron.WithChain(cron.SkipIfStillRunning(cl), cron.Recover(cl))),
		logger: logger,
	}
}

// Add schedules run according to spec.
func (s *SelfCheckScheduler) Add(spec string, run func()) (cron.EntryID, error) {
	if _, err := ParseSchedule(spec); err != nil {
		return 0, err
	}
	id, err := s.cron.AddFunc(spec, run)
	if err != nil {
		return 0, fmt.Errorf("scheduling self-check: %w", err)
	}
	return id, nil
}

// Entries returns the number of scheduled jobs.
func (s *SelfCheckScheduler) Entries() int {
	return len(s.cron.Entries())
}

// Start starts running scheduled jobs. Calling it twice is a no-op.
func (s *SelfCheckScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.logger.Info("Starting self-check scheduler", "entries", len(s.cron.Entries()))
	s.cron.Start()
}

// Stop stops the scheduler and waits for a running job, or for ctx.
func (s *SelfCheckScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	s.mu.Unlock()

	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
