package zeros

import (
	"context"

	cloudevents "github.com/cloudevents/sdk-go/v2"
)

// Option represents a functional option for configuring a Bootloader
type Option func(*bootloaderBuilder) error

// ObserverFunc is a functional observer that receives every bootloader event
type ObserverFunc func(ctx context.Context, event cloudevents.Event) error

type bootloaderBuilder struct {
	cfg           *BootConfig
	logger        Logger
	decl          Declaration
	source        ScriptSource
	signals       Signals
	registry      *Registry
	noRegistry    bool
	prerequisites []Prerequisite
	fixups        []Fixup
	stages        []Stage
	stagesSet     bool
	progress      ProgressFunc
	observers     []registeredObserver
}

type registeredObserver struct {
	observer   Observer
	eventTypes []string
}

// NewBootloader creates a Bootloader with the provided options.
//
// WithLogger and WithScriptSource are required. Unless overridden, the
// bootloader uses DefaultBootConfig, a fresh Registry, no signal bus (the grace
// delay applies) and StandardStages with an empty inventory.
func NewBootloader(opts ...Option) (*Bootloader, error) {
	b := &bootloaderBuilder{}
	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, err
		}
	}
	return b.build()
}

func (b *bootloaderBuilder) build() (*Bootloader, error) {
	if b.logger == nil {
		return nil, ErrLoggerNotSet
	}
	if b.source == nil {
		return nil, ErrNoScriptSource
	}

	cfg := b.cfg
	if cfg == nil {
		cfg = DefaultBootConfig()
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	registry := b.registry
	if registry == nil && !b.noRegistry {
		registry = NewRegistry()
	}

	stages := b.stages
	if !b.stagesSet {
		stages = StandardStages(SelfCheckInventory{})
	}

	events := newObserverHub(b.logger)
	for _, o := range b.observers {
		if err := events.RegisterObserver(o.observer, o.eventTypes...); err != nil {
			return nil, err
		}
	}

	if binder, ok := b.source.(ContextBinder); ok {
		binder.BindContext(registry, b.signals, b.logger)
	}

	return &Bootloader{
		cfg:           cfg,
		decl:          b.decl,
		source:        b.source,
		signals:       b.signals,
		registry:      registry,
		prerequisites: b.prerequisites,
		fixups:        b.fixups,
		stages:        stages,
		progressFn:    b.progress,
		logger:        b.logger,
		events:        events,
		progress:      Progress{Phase: PhaseIdle},
	}, nil
}

// WithLogger sets the logger.
func WithLogger(logger Logger) Option {
	return func(b *bootloaderBuilder) error {
		b.logger = logger
		return nil
	}
}

// WithConfig sets the boot configuration. Defaults are applied to unset fields.
func WithConfig(cfg *BootConfig) Option {
	return func(b *bootloaderBuilder) error {
		if cfg == nil {
			return ErrConfigNil
		}
		b.cfg = cfg
		return nil
	}
}

// WithDeclaration sets the modules to boot.
func WithDeclaration(decl Declaration) Option {
	return func(b *bootloaderBuilder) error {
		b.decl = decl
		return nil
	}
}

// WithScriptSource sets how module code is made active.
func WithScriptSource(source ScriptSource) Option {
	return func(b *bootloaderBuilder) error {
		b.source = source
		return nil
	}
}

// WithSignals enables ready-signal waits.
func WithSignals(signals Signals) Option {
	return func(b *bootloaderBuilder) error {
		b.signals = signals
		return nil
	}
}

// WithRegistry shares an existing registry with the bootloader.
func WithRegistry(registry *Registry) Option {
	return func(b *bootloaderBuilder) error {
		b.registry = registry
		b.noRegistry = registry == nil
		return nil
	}
}

// WithPrerequisites adds prerequisites awaited before loading.
func WithPrerequisites(prereqs ...Prerequisite) Option {
	return func(b *bootloaderBuilder) error {
		b.prerequisites = append(b.prerequisites, prereqs...)
		return nil
	}
}

// WithFixups adds post-load fixups.
func WithFixups(fixups ...Fixup) Option {
	return func(b *bootloaderBuilder) error {
		b.fixups = append(b.fixups, fixups...)
		return nil
	}
}

// WithStages replaces the self-check stages.
func WithStages(stages ...Stage) Option {
	return func(b *bootloaderBuilder) error {
		b.stages = stages
		b.stagesSet = true
		return nil
	}
}

// WithInventory uses StandardStages for inv.
func WithInventory(inv SelfCheckInventory) Option {
	return WithStages(StandardStages(inv)...)
}

// WithProgress sets the progress indicator callback.
func WithProgress(fn ProgressFunc) Option {
	return func(b *bootloaderBuilder) error {
		b.progress = fn
		return nil
	}
}

// WithObserver registers observer for eventTypes, or for every event when none are given.
func WithObserver(observer Observer, eventTypes ...string) Option {
	return func(b *bootloaderBuilder) error {
		b.observers = append(b.observers, registeredObserver{observer: observer, eventTypes: eventTypes})
		return nil
	}
}

// WithObserverFunc registers fn for every event under id.
func WithObserverFunc(id string, fn ObserverFunc) Option {
	return WithObserver(NewFunctionalObserver(id, fn))
}
