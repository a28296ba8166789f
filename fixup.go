package zeros

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Fixup re-asserts that a singleton entity is registered after all modules have
// loaded. A missing entity is re-created with Create, or with a PlaceholderEntry
// when Create is nil.
type Fixup struct {
	Entity   string              `yaml:"entity" toml:"entity" json:"entity"`
	Category string              `yaml:"category" toml:"category" json:"category"`
	Key      string              `yaml:"key" toml:"key" json:"key"`
	Create   func() (any, error) `yaml:"-" toml:"-" json:"-"`
}

// PlaceholderEntry is registered by a fixup that has no Create function.
type PlaceholderEntry struct {
	Entity    string    `json:"entity"`
	CreatedAt time.Time `json:"createdAt"`
}

// FixupOutcome describes what a fixup did.
type FixupOutcome string

const (
	FixupPresent   FixupOutcome = "present"
	FixupRecreated FixupOutcome = "recreated"
	FixupFailed    FixupOutcome = "failed"
)

// FixupResult is reported for every fixup in the BootReport.
type FixupResult struct {
	Entity  string       `json:"entity"`
	Outcome FixupOutcome `json:"outcome"`
	Error   string       `json:"error,omitempty"`
}

var errNoRegistry = errors.New("no registry available")

// applyFixups runs every fixup. It never stops early; failures are returned as
// *FixupError values alongside the results.
func applyFixups(_ context.Context, registry *Registry, fixups []Fixup, logger Logger) ([]FixupResult, []error) {
	results := make([]FixupResult, 0, len(fixups))
	var errs []error

	for _, f := range fixups {
		entity := f.Entity
		if entity == "" {
			entity = f.Category + "/" + f.Key
		}

		outcome, err := applyFixup(registry, f, entity)
		res := FixupResult{Entity: entity, Outcome: outcome}
		if err != nil {
			fixErr := &FixupError{Entity: entity, Cause: err}
			res.Error = fixErr.Error()
			errs = append(errs, fixErr)
			logger.Warn("Post-load fixup failed", "entity", entity, "error", err)
		} else if outcome == FixupRecreated {
			logger.Info("Re-created missing entity", "entity", entity)
		}
		results = append(results, res)
	}
	return results, errs
}

func applyFixup(registry *Registry, f Fixup, entity string) (outcome FixupOutcome, err error) {
	if registry == nil {
		return FixupFailed, errNoRegistry
	}
	if _, ok := registry.Get(f.Category, f.Key); ok {
		return FixupPresent, nil
	}

	defer func() {
		if r := recover(); r != nil {
			outcome, err = FixupFailed, fmt.Errorf("create panicked: %v", r)
		}
	}()

	var value any = PlaceholderEntry{Entity: entity, CreatedAt: time.Now()}
	if f.Create != nil {
		v, err := f.Create()
		if err != nil {
			return FixupFailed, err
		}
		value = v
	}
	registry.AddIfAbsent(f.Category, f.Key, value)

	if _, ok := registry.Get(f.Category, f.Key); !ok {
		return FixupFailed, fmt.Errorf("%s/%s still missing after re-creation", f.Category, f.Key)
	}
	return FixupRecreated, nil
}
