package zeros

import (
	"errors"
	"fmt"
	"strings"
)

// Bootloader errors
var (
	// Declaration errors
	ErrEmptyModuleID   = errors.New("module id is empty")
	ErrDuplicateModule = errors.New("module declared more than once")
	ErrUnsortedOrder   = errors.New("load order lists a module before its dependency")

	// Dependency resolution errors
	ErrCycleDetected = errors.New("circular dependency detected")

	// Loading errors
	ErrScriptLoadFailed     = errors.New("script load failed")
	ErrDependencyLoadFailed = errors.New("dependency load failed")
	ErrSignalWaitTimeout    = errors.New("timed out waiting for ready signal")
	ErrNoScriptSource       = errors.New("no script source configured")
	ErrModuleNotFound       = errors.New("module not found in catalog")
	ErrScriptFetchStatus    = errors.New("unexpected status fetching script")
	ErrEvaluatorNil         = errors.New("script evaluator is nil")
	ErrScriptPanicked       = errors.New("script panicked while loading")

	// Boot orchestration errors
	ErrPrerequisiteMissing = errors.New("boot prerequisite missing")
	ErrFixupFailed         = errors.New("post-load fixup failed")
	ErrProbeFailed         = errors.New("self-check probe failed")
	ErrProbePanicked       = errors.New("self-check probe panicked")
	ErrBootInProgress      = errors.New("boot already in progress")

	// Registry errors
	ErrCategoryNotFound = errors.New("registry category not found")
	ErrEntryNotFound    = errors.New("registry entry not found")
	ErrEntryWrongType   = errors.New("registry entry has unexpected type")

	// Config errors
	ErrConfigNil                  = errors.New("config is nil")
	ErrConfigNotPointer           = errors.New("config must be a pointer")
	ErrConfigNotStruct            = errors.New("config must be a struct")
	ErrConfigRequiredFieldMissing = errors.New("required field is missing")
	ErrConfigValidationFailed     = errors.New("config validation failed")
	ErrUnsupportedTypeForDefault  = errors.New("unsupported type for default value")
	ErrDefaultValueOverflowsInt   = errors.New("default value overflows int")
	ErrDefaultValueOverflowsUint  = errors.New("default value overflows uint")
	ErrUnsupportedFormatType      = errors.New("unsupported format type")
	ErrConfigFeederError          = errors.New("config feeder error")

	// Builder errors
	ErrLoggerNotSet = errors.New("logger not set")
)

// CycleDetectedError reports the module at which a dependency cycle was closed,
// along with the dependency path that led back to it.
type CycleDetectedError struct {
	Module string
	Path   []string
}

func (e *CycleDetectedError) Error() string {
	if len(e.Path) == 0 {
		return fmt.Sprintf("%s: %s", ErrCycleDetected, e.Module)
	}
	return fmt.Sprintf("%s: %s (cycle: %s)", ErrCycleDetected, e.Module, strings.Join(e.Path, " -> "))
}

func (e *CycleDetectedError) Unwrap() error { return ErrCycleDetected }

// ScriptLoadError is returned when a module's code could not be fetched or executed.
type ScriptLoadError struct {
	Module string
	Cause  error
}

func (e *ScriptLoadError) Error() string {
	return fmt.Sprintf("%s for module %s: %v", ErrScriptLoadFailed, e.Module, e.Cause)
}

func (e *ScriptLoadError) Is(target error) bool { return target == ErrScriptLoadFailed }

func (e *ScriptLoadError) Unwrap() error { return e.Cause }

// DependencyLoadError is returned when a module could not be loaded because one of
// its dependencies failed. Cause is usually a *ScriptLoadError.
type DependencyLoadError struct {
	Module     string
	Dependency string
	Cause      error
}

func (e *DependencyLoadError) Error() string {
	return fmt.Sprintf("%s: module %s requires %s: %v", ErrDependencyLoadFailed, e.Module, e.Dependency, e.Cause)
}

func (e *DependencyLoadError) Is(target error) bool { return target == ErrDependencyLoadFailed }

func (e *DependencyLoadError) Unwrap() error { return e.Cause }

// PrerequisiteMissingError names a hard prerequisite that never became present.
type PrerequisiteMissingError struct {
	Name string
}

func (e *PrerequisiteMissingError) Error() string {
	return fmt.Sprintf("%s: %s", ErrPrerequisiteMissing, e.Name)
}

func (e *PrerequisiteMissingError) Unwrap() error { return ErrPrerequisiteMissing }

// FixupError records a post-load fixup that could not be applied.
type FixupError struct {
	Entity string
	Cause  error
}

func (e *FixupError) Error() string {
	return fmt.Sprintf("%s for %s: %v", ErrFixupFailed, e.Entity, e.Cause)
}

func (e *FixupError) Is(target error) bool { return target == ErrFixupFailed }

func (e *FixupError) Unwrap() error { return e.Cause }

// ProbeError records a self-check probe that errored or panicked.
type ProbeError struct {
	Name  string
	Cause error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrProbeFailed, e.Name, e.Cause)
}

func (e *ProbeError) Is(target error) bool { return target == ErrProbeFailed }

func (e *ProbeError) Unwrap() error { return e.Cause }

// IsCycleDetected reports whether err is or wraps a dependency cycle error.
func IsCycleDetected(err error) bool {
	return errors.Is(err, ErrCycleDetected)
}

// IsScriptLoadFailed reports whether err is or wraps a script load failure.
func IsScriptLoadFailed(err error) bool {
	return errors.Is(err, ErrScriptLoadFailed)
}

// IsPrerequisiteMissing reports whether err is or wraps a missing prerequisite.
func IsPrerequisiteMissing(err error) bool {
	return errors.Is(err, ErrPrerequisiteMissing)
}

// FailedModule extracts the id of the module responsible for a fatal boot error.
// It returns the empty string when err does not name a module.
func FailedModule(err error) string {
	var depErr *DependencyLoadError
	if errors.As(err, &depErr) {
		var scriptErr *ScriptLoadError
		if errors.As(depErr.Cause, &scriptErr) {
			return scriptErr.Module
		}
		return depErr.Dependency
	}
	var scriptErr *ScriptLoadError
	if errors.As(err, &scriptErr) {
		return scriptErr.Module
	}
	var cycleErr *CycleDetectedError
	if errors.As(err, &cycleErr) {
		return cycleErr.Module
	}
	var preErr *PrerequisiteMissingError
	if errors.As(err, &preErr) {
		return preErr.Name
	}
	return ""
}
