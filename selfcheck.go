package zeros

import (
	"context"
	"fmt"
	"time"
)

// CheckOutcome is the result of one named check.
type CheckOutcome string

const (
	OutcomePassed  CheckOutcome = "passed"
	OutcomeFailed  CheckOutcome = "failed"
	OutcomeWarning CheckOutcome = "warning"
)

// CheckResult records one check, in the order it ran.
type CheckResult struct {
	Stage    string       `json:"stage"`
	Name     string       `json:"name"`
	Outcome  CheckOutcome `json:"outcome"`
	Critical bool         `json:"critical,omitempty"`
	Message  string       `json:"message,omitempty"`
}

// StageSummary aggregates the checks of one stage.
type StageSummary struct {
	Step           int           `json:"step"`
	Name           string        `json:"name"`
	Description    string        `json:"description"`
	Passed         int           `json:"passed"`
	Failed         int           `json:"failed"`
	Warnings       int           `json:"warnings"`
	CriticalErrors int           `json:"criticalErrors"`
	Duration       time.Duration `json:"duration"`
}

// SelfCheckReport is the outcome of a self-check run. It is never modified
// after Run returns.
type SelfCheckReport struct {
	Passed         int `json:"passed"`
	Failed         int `json:"failed"`
	Warnings       int `json:"warnings"`
	CriticalErrors int `json:"criticalErrors"`
	TotalChecks    int `json:"totalChecks"`

	Results []CheckResult  `json:"results"`
	Stages  []StageSummary `json:"stages"`

	StartedAt time.Time     `json:"startedAt"`
	Duration  time.Duration `json:"duration"`
}

// Healthy reports whether no critical check failed.
func (r SelfCheckReport) Healthy() bool {
	return r.CriticalErrors == 0
}

// Clean reports whether every check passed and nothing was warned about.
func (r SelfCheckReport) Clean() bool {
	return r.Failed == 0 && r.Warnings == 0
}

// ProgressFunc receives progress after each self-check stage. Step is 1-based
// and increases strictly. Percent never decreases and reaches 100 after the
// last stage; with more than 100 stages consecutive steps may share a percent.
type ProgressFunc func(step int, message string, percent int)

// Stage is one named group of checks.
type Stage struct {
	Name        string
	Description string
	Run         func(c *Checker)
}

// Checker is handed to each stage. All of its methods record into the running
// report and none of them panic.
type Checker struct {
	ctx      context.Context
	stage    string
	report   *SelfCheckReport
	summary  *StageSummary
	registry *Registry
	signals  Signals
	wait     WaitOptions
	logger   Logger
}

// Context returns the context of the self-check run.
func (c *Checker) Context() context.Context { return c.ctx }

// Registry returns the registry being checked. It may be nil.
func (c *Checker) Registry() *Registry { return c.registry }

func (c *Checker) record(name string, outcome CheckOutcome, critical bool, message string) {
	res := CheckResult{Stage: c.stage, Name: name, Outcome: outcome, Critical: critical, Message: message}
	c.report.Results = append(c.report.Results, res)

	switch outcome {
	case OutcomePassed:
		c.report.Passed++
		c.report.TotalChecks++
		c.summary.Passed++
	case OutcomeFailed:
		c.report.Failed++
		c.report.TotalChecks++
		c.summary.Failed++
		if critical {
			c.report.CriticalErrors++
			c.summary.CriticalErrors++
		}
		c.logger.Warn("Self-check failed", "stage", c.stage, "check", name, "critical", critical, "message", message)
	case OutcomeWarning:
		c.report.Warnings++
		c.summary.Warnings++
		c.logger.Warn("Self-check warning", "stage", c.stage, "check", name, "message", message)
	}
}

// Check records a boolean check. A false condition counts as failed, and as a
// critical error too when critical is set. It returns cond.
func (c *Checker) Check(name string, cond bool, critical bool) bool {
	if cond {
		c.record(name, OutcomePassed, critical, "")
	} else {
		c.record(name, OutcomeFailed, critical, "")
	}
	return cond
}

// Warn records a warning. Warnings never affect pass or fail counts.
func (c *Checker) Warn(name, message string) {
	c.record(name, OutcomeWarning, false, message)
}

// Probe runs fn and records it as a check. An error or a panic from fn is a
// failed check carrying a *ProbeError message.
func (c *Checker) Probe(name string, fn func(ctx context.Context) error, critical bool) bool {
	if err := c.runProbe(name, fn); err != nil {
		c.record(name, OutcomeFailed, critical, err.Error())
		return false
	}
	c.record(name, OutcomePassed, critical, "")
	return true
}

// ProbeOptional runs fn and records a warning instead of a failure when it
// errors or panics.
func (c *Checker) ProbeOptional(name string, fn func(ctx context.Context) error) bool {
	if err := c.runProbe(name, fn); err != nil {
		c.Warn(name, err.Error())
		return false
	}
	c.record(name, OutcomePassed, false, "")
	return true
}

func (c *Checker) runProbe(name string, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &ProbeError{Name: name, Cause: fmt.Errorf("%w: %v", ErrProbePanicked, r)}
		}
	}()
	if fn == nil {
		return &ProbeError{Name: name, Cause: fmt.Errorf("probe function is nil")}
	}
	if err := fn(c.ctx); err != nil {
		return &ProbeError{Name: name, Cause: err}
	}
	return nil
}

// Capability queries the registry for category/key.
func (c *Checker) Capability(category, key string) Capability {
	return c.registry.Capability(c.ctx, category, key)
}

// Require checks that category/key is present and healthy.
func (c *Checker) Require(category, key string, critical bool) Capability {
	capability := c.Capability(category, key)
	name := category + "/" + key
	if capability == CapabilityHealthy {
		c.record(name, OutcomePassed, critical, "")
	} else {
		c.record(name, OutcomeFailed, critical, capability.String())
	}
	return capability
}

// Expect is Require for optional entities: anything short of healthy is a warning.
func (c *Checker) Expect(category, key string) Capability {
	capability := c.Capability(category, key)
	name := category + "/" + key
	if capability == CapabilityHealthy {
		c.record(name, OutcomePassed, false, "")
	} else {
		c.Warn(name, capability.String())
	}
	return capability
}

// WaitReady waits briefly for id's ready signal. It reports false when there is
// no signal source or the signal did not arrive in time.
func (c *Checker) WaitReady(id string) bool {
	if c.signals == nil {
		return false
	}
	return c.signals.WaitFor(c.ctx, id, c.wait)
}

// Repair re-registers category/key using create when the entry is missing. It
// is the only way a self-check mutates state. A repair that fails or still
// leaves the entry missing is a failed check; a successful one is a warning.
func (c *Checker) Repair(category, key string, create func() (any, error), critical bool) bool {
	name := category + "/" + key
	if c.registry == nil {
		c.record(name, OutcomeFailed, critical, "no registry")
		return false
	}
	if _, ok := c.registry.Get(category, key); ok {
		c.record(name, OutcomePassed, critical, "")
		return true
	}

	var value any
	err := c.runProbe(name, func(context.Context) error {
		var err error
		value, err = create()
		return err
	})
	if err != nil {
		c.record(name, OutcomeFailed, critical, "repair failed: "+err.Error())
		return false
	}
	c.registry.AddIfAbsent(category, key, value)
	if _, ok := c.registry.Get(category, key); !ok {
		c.record(name, OutcomeFailed, critical, "repair did not persist")
		return false
	}
	c.Warn(name, "was missing and has been re-registered")
	return true
}

// SelfCheckConfig configures a SelfCheck.
type SelfCheckConfig struct {
	Stages   []Stage
	Registry *Registry
	Signals  Signals
	// Wait bounds WaitReady, normally the peripheral signal timeout. Zero
	// fields take the defaults.
	Wait   WaitOptions
	Logger Logger
}

// SelfCheck runs stages of checks against the booted system.
type SelfCheck struct {
	cfg    SelfCheckConfig
	logger Logger
}

// NewSelfCheck creates a SelfCheck.
func NewSelfCheck(cfg SelfCheckConfig) *SelfCheck {
	if cfg.Wait.Timeout == 0 {
		cfg.Wait.Timeout = DefaultPeripheralSignalTimeout
	}
	if cfg.Wait.Interval == 0 {
		cfg.Wait.Interval = DefaultSignalPollInterval
	}
	return &SelfCheck{cfg: cfg, logger: loggerOrNop(cfg.Logger)}
}

// Run executes every stage in order and returns the aggregate report. It never
// panics and never fails: a stage or progress callback that panics is recorded
// as a failed check and the run continues.
func (s *SelfCheck) Run(ctx context.Context, progress ProgressFunc) SelfCheckReport {
	report := SelfCheckReport{StartedAt: time.Now()}
	total := len(s.cfg.Stages)

	for i, stage := range s.cfg.Stages {
		summary := StageSummary{Step: i + 1, Name: stage.Name, Description: stage.Description}
		checker := &Checker{
			ctx:      ctx,
			stage:    stage.Name,
			report:   &report,
			summary:  &summary,
			registry: s.cfg.Registry,
			signals:  s.cfg.Signals,
			wait:     s.cfg.Wait,
			logger:   s.logger,
		}

		start := time.Now()
		s.runStage(checker, stage)
		summary.Duration = time.Since(start)
		report.Stages = append(report.Stages, summary)

		s.logger.Debug("Self-check stage complete", "stage", stage.Name,
			"passed", summary.Passed, "failed", summary.Failed, "warnings", summary.Warnings)

		if progress != nil {
			percent := (i + 1) * 100 / total
			s.notifyProgress(checker, progress, i+1, stage.Description, percent)
		}
	}

	report.Duration = time.Since(report.StartedAt)
	return report
}

func (s *SelfCheck) runStage(c *Checker, stage Stage) {
	defer func() {
		if r := recover(); r != nil {
			err := &ProbeError{Name: stage.Name, Cause: fmt.Errorf("%w: %v", ErrProbePanicked, r)}
			c.record(stage.Name, OutcomeFailed, false, err.Error())
		}
	}()
	if stage.Run != nil {
		stage.Run(c)
	}
}

func (s *SelfCheck) notifyProgress(c *Checker, progress ProgressFunc, step int, message string, percent int) {
	defer func() {
		if r := recover(); r != nil {
			c.Warn("progress", fmt.Sprintf("progress callback panicked: %v", r))
		}
	}()
	progress(step, message, percent)
}
