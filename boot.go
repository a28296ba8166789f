package zeros

import (
	"context"
	"errors"
	"sync"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
)

// Progress is the externally observed boot progress indicator.
type Progress struct {
	Phase     string    `json:"phase"`
	Step      int       `json:"step"`
	Message   string    `json:"message"`
	Percent   int       `json:"percent"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Boot phases reported in Progress.
const (
	PhaseIdle          = "idle"
	PhasePrerequisites = "prerequisites"
	PhaseLoading       = "loading"
	PhaseFixups        = "fixups"
	PhaseSelfCheck     = "selfcheck"
	PhaseDone          = "done"
	PhaseFailed        = "failed"
)

// Progress bands of the overall indicator.
const (
	percentPrerequisites = 5
	percentLoaded        = 50
	percentFixups        = 55
)

// Bootloader is the composition root: it waits for prerequisites, plans and
// loads the declared modules, applies post-load fixups, runs the self-check
// and reports the outcome.
//
// A Bootloader may boot more than once, one boot at a time; every boot is a
// fresh session with its own Loader.
type Bootloader struct {
	cfg           *BootConfig
	decl          Declaration
	source        ScriptSource
	signals       Signals
	registry      *Registry
	prerequisites []Prerequisite
	fixups        []Fixup
	stages        []Stage
	progressFn    ProgressFunc
	logger        Logger
	events        *observerHub

	mu       sync.RWMutex
	booting  bool
	loader   *Loader
	last     *BootReport
	progress Progress
}

// Boot runs one boot session.
//
// Prerequisite, planning and loading failures are fatal: Boot returns them along
// with a report whose Status is BootStatusFailed. Fixup and self-check problems
// only degrade the status. The report is also delivered to observers as a
// com.zeros.boot.completed or com.zeros.boot.failed event.
func (b *Bootloader) Boot(ctx context.Context) (*BootReport, error) {
	b.mu.Lock()
	if b.booting {
		b.mu.Unlock()
		return nil, ErrBootInProgress
	}
	b.booting = true
	b.progress = Progress{Phase: PhaseIdle, UpdatedAt: time.Now()}
	decl := b.decl
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		b.booting = false
		b.mu.Unlock()
	}()

	start := time.Now()
	report := &BootReport{SessionID: newID(), Timestamp: start}
	meta := map[string]any{"session": report.SessionID}
	b.logger.Info("Boot starting", "session", report.SessionID, "modules", len(decl))
	b.events.emit(ctx, EventTypeBootStarted, EventSourceBootloader, map[string]any{"modules": decl.IDs()}, meta)

	fail := func(err error) (*BootReport, error) {
		report.Status = BootStatusFailed
		report.Error = err.Error()
		report.FailedModule = FailedModule(err)
		report.Duration = time.Since(start)
		b.setProgress(PhaseFailed, report.Summary(), -1)
		b.storeReport(report)
		b.logger.Error("Boot failed", "session", report.SessionID, "module", report.FailedModule, "error", err)
		b.events.emit(ctx, EventTypeBootFailed, EventSourceBootloader, report.clone(), meta)
		return report, err
	}

	// 1. Hard prerequisites.
	b.setProgress(PhasePrerequisites, "Waiting for prerequisites", 0)
	pre := awaitPrerequisites(ctx, b.prerequisites, b.registry, b.cfg.PrerequisiteTimeout, b.cfg.PrerequisitePollInterval)
	report.LoadedPrerequisites = pre.loaded
	report.Missing = pre.missing
	if pre.firstHard != "" {
		return fail(&PrerequisiteMissingError{Name: pre.firstHard})
	}
	b.setProgress(PhasePrerequisites, "Prerequisites present", percentPrerequisites)

	// 2-3. Graph, order, layers, load.
	g, plan, err := PlanDeclaration(decl)
	if err != nil {
		return fail(err)
	}
	report.Order = plan.Order
	report.Layers = make([][]string, len(plan.Layers))
	for i, l := range plan.Layers {
		report.Layers[i] = l
	}

	loader := b.newLoader(report.SessionID)
	b.mu.Lock()
	b.loader = loader
	b.mu.Unlock()

	loadErr := b.load(ctx, loader, g, plan)
	report.Modules = loader.LoadStates()
	if loadErr != nil {
		return fail(loadErr)
	}

	// 4. Post-load fixups.
	b.setProgress(PhaseFixups, "Applying post-load fixups", percentFixups)
	fixups, fixupErrs := applyFixups(ctx, b.registry, b.fixups, b.logger)
	report.Fixups = fixups

	// 5. Self-check.
	report.SelfCheck = b.runSelfCheck(ctx, true)

	// 6. Completion.
	report.Status = deriveStatus(fixupErrs, report.SelfCheck)
	report.Duration = time.Since(start)
	b.setProgress(PhaseDone, report.Summary(), 100)
	b.storeReport(report)

	b.logger.Info("Boot completed", "session", report.SessionID, "status", report.Status,
		"passed", report.SelfCheck.Passed, "warnings", report.SelfCheck.Warnings, "duration", report.Duration)
	b.events.emit(ctx, EventTypeBootCompleted, EventSourceBootloader, report.clone(), meta)
	return report, nil
}

func (b *Bootloader) newLoader(session string) *Loader {
	l := NewLoader(LoaderConfig{
		Source:     b.source,
		Signals:    b.signals,
		Registry:   b.registry,
		Wait:       b.cfg.waitOptions(),
		GraceDelay: b.cfg.GraceDelay,
		Logger:     b.logger,
	})
	l.events = b.events
	l.session = session
	return l
}

// load runs the plan one layer at a time so progress advances per layer.
func (b *Bootloader) load(ctx context.Context, l *Loader, g *DependencyGraph, plan *Plan) error {
	if len(plan.Layers) == 0 {
		return nil
	}
	span := percentLoaded - percentPrerequisites
	for i, layer := range plan.Layers {
		sub := &Plan{Order: plan.Order, Layers: []LoadLayer{layer}}
		if err := l.LoadPlan(ctx, g, sub); err != nil {
			return err
		}
		pct := percentPrerequisites + span*(i+1)/len(plan.Layers)
		b.setProgress(PhaseLoading, "Loaded layer", pct)
	}
	return nil
}

// RunSelfCheck runs the configured self-check stages outside of a boot, for
// example on a schedule. The result becomes part of the last report.
func (b *Bootloader) RunSelfCheck(ctx context.Context) SelfCheckReport {
	return b.runSelfCheck(ctx, false)
}

func (b *Bootloader) runSelfCheck(ctx context.Context, booting bool) SelfCheckReport {
	sc := NewSelfCheck(SelfCheckConfig{
		Stages:   b.stages,
		Registry: b.registry,
		Signals:  b.signals,
		Wait:     b.cfg.peripheralWaitOptions(),
		Logger:   b.logger,
	})

	progress := func(step int, message string, percent int) {
		if booting {
			overall := percentFixups + (100-percentFixups)*percent/100
			if percent >= 100 {
				overall = 99
			}
			b.setProgress(PhaseSelfCheck, message, overall)
		}
		b.events.emit(ctx, EventTypeSelfCheckProgress, EventSourceSelfCheck,
			map[string]any{"step": step, "message": message, "percent": percent}, nil)
	}

	report := sc.Run(ctx, progress)
	b.events.emit(ctx, EventTypeSelfCheckCompleted, EventSourceSelfCheck, report, nil)

	if !booting {
		b.mu.Lock()
		if b.last != nil && b.last.Status != BootStatusFailed {
			b.last.SelfCheck = report
			b.last.Status = deriveSelfCheckStatus(b.last, report)
		}
		b.mu.Unlock()
	}
	return report
}

// deriveSelfCheckStatus keeps a degraded-by-fixups boot degraded.
func deriveSelfCheckStatus(r *BootReport, sc SelfCheckReport) BootStatus {
	var fixupErrs []error
	for _, f := range r.Fixups {
		if f.Outcome == FixupFailed {
			fixupErrs = append(fixupErrs, errors.New(f.Error))
		}
	}
	return deriveStatus(fixupErrs, sc)
}

// ScheduleSelfCheck creates a started scheduler that re-runs the self-check on spec.
func (b *Bootloader) ScheduleSelfCheck(ctx context.Context, spec string) (*SelfCheckScheduler, error) {
	s := NewSelfCheckScheduler(b.logger)
	_, err := s.Add(spec, func() {
		report := b.RunSelfCheck(ctx)
		b.logger.Info("Scheduled self-check complete", "passed", report.Passed, "failed", report.Failed, "warnings", report.Warnings)
	})
	if err != nil {
		return nil, err
	}
	s.Start()
	return s, nil
}

// setProgress records progress and forwards it to the progress callback. A
// negative percent keeps the previous value.
func (b *Bootloader) setProgress(phase, message string, percent int) {
	b.mu.Lock()
	if percent < 0 {
		percent = b.progress.Percent
	}
	b.progress = Progress{
		Phase:     phase,
		Step:      b.progress.Step + 1,
		Message:   message,
		Percent:   percent,
		UpdatedAt: time.Now(),
	}
	p := b.progress
	fn := b.progressFn
	b.mu.Unlock()

	if fn != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					b.logger.Warn("Progress callback panicked", "panic", r)
				}
			}()
			fn(p.Step, p.Message, p.Percent)
		}()
	}
}

func (b *Bootloader) storeReport(r *BootReport) {
	b.mu.Lock()
	b.last = r.clone()
	b.mu.Unlock()
}

// LastReport returns a copy of the most recent boot report, or nil.
func (b *Bootloader) LastReport() *BootReport {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.last.clone()
}

// Progress returns the current progress indicator.
func (b *Bootloader) Progress() Progress {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.progress
}

// LoadStates returns module states of the current or most recent session.
func (b *Bootloader) LoadStates() map[string]ModuleLoadState {
	b.mu.RLock()
	l := b.loader
	b.mu.RUnlock()
	if l == nil {
		return map[string]ModuleLoadState{}
	}
	return l.LoadStates()
}

// Registry returns the registry shared with loaded modules.
func (b *Bootloader) Registry() *Registry { return b.registry }

// Signals returns the signal bus, which may be nil.
func (b *Bootloader) Signals() Signals { return b.signals }

// Config returns the boot configuration.
func (b *Bootloader) Config() *BootConfig { return b.cfg }

// Declaration returns the declaration the next boot will use.
func (b *Bootloader) Declaration() Declaration {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.decl
}

// SetDeclaration replaces the declaration used by subsequent boots.
func (b *Bootloader) SetDeclaration(decl Declaration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.decl = decl
}

// RegisterObserver implements Subject.
func (b *Bootloader) RegisterObserver(observer Observer, eventTypes ...string) error {
	return b.events.RegisterObserver(observer, eventTypes...)
}

// UnregisterObserver implements Subject.
func (b *Bootloader) UnregisterObserver(observer Observer) error {
	return b.events.UnregisterObserver(observer)
}

// NotifyObservers implements Subject.
func (b *Bootloader) NotifyObservers(ctx context.Context, event cloudevents.Event) error {
	return b.events.NotifyObservers(ctx, event)
}

// GetObservers implements Subject.
func (b *Bootloader) GetObservers() []ObserverInfo {
	return b.events.GetObservers()
}

// WaitForObservers blocks until every observer notification already started has
// returned.
func (b *Bootloader) WaitForObservers() {
	b.events.drain()
}
