package zeros

import (
	"fmt"
	"slices"
	"sync"
	"time"
)

// Well-known registry categories.
const (
	// CategoryModules holds one ModuleEntry per loaded module.
	CategoryModules = "modules"
	// CategoryServices holds long-lived singleton entities such as background daemons.
	CategoryServices = "services"
	// CategoryTypes holds type and enum tables shared between modules.
	CategoryTypes = "types"
	// CategoryDrivers holds peripheral drivers.
	CategoryDrivers = "drivers"
)

// ModuleEntry is the default bookkeeping entry the loader records for a module
// that did not register itself.
type ModuleEntry struct {
	ID           string    `json:"id"`
	Linked       bool      `json:"linked"`
	RegisteredAt time.Time `json:"registeredAt"`
}

// Registry is the central service locator shared by the bootloader and the modules
// it loads. Entries are grouped by category and keyed by name. All operations are
// safe for concurrent use; writes that must not clobber a concurrent writer go
// through AddIfAbsent.
type Registry struct {
	mu         sync.RWMutex
	categories map[string]map[string]any
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{categories: make(map[string]map[string]any)}
}

// Has reports whether category has been initialized.
func (r *Registry) Has(category string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.categories[category]
	return ok
}

// Init creates category if it does not exist yet.
func (r *Registry) Init(category string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.initLocked(category)
}

func (r *Registry) initLocked(category string) map[string]any {
	entries, ok := r.categories[category]
	if !ok {
		entries = make(map[string]any)
		r.categories[category] = entries
	}
	return entries
}

// Get returns the entry stored under category/key.
func (r *Registry) Get(category, key string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entries, ok := r.categories[category]
	if !ok {
		return nil, false
	}
	v, ok := entries[key]
	return v, ok
}

// Add stores value under category/key, creating the category when needed and
// replacing any previous entry.
func (r *Registry) Add(category, key string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.initLocked(category)[key] = value
}

// AddIfAbsent stores value only if category/key is empty. It reports whether the
// value was stored.
func (r *Registry) AddIfAbsent(category, key string, value any) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries := r.initLocked(category)
	if _, exists := entries[key]; exists {
		return false
	}
	entries[key] = value
	return true
}

// Remove deletes category/key and reports whether it existed.
func (r *Registry) Remove(category, key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries, ok := r.categories[category]
	if !ok {
		return false
	}
	if _, ok := entries[key]; !ok {
		return false
	}
	delete(entries, key)
	return true
}

// Keys returns the sorted keys of category.
func (r *Registry) Keys(category string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entries := r.categories[category]
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Categories returns the sorted names of all initialized categories.
func (r *Registry) Categories() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.categories))
	for name := range r.categories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Lookup retrieves category/key as a T.
func Lookup[T any](r *Registry, category, key string) (T, error) {
	var zero T
	if r == nil {
		return zero, fmt.Errorf("%w: %s", ErrCategoryNotFound, category)
	}
	if !r.Has(category) {
		return zero, fmt.Errorf("%w: %s", ErrCategoryNotFound, category)
	}
	v, ok := r.Get(category, key)
	if !ok {
		return zero, fmt.Errorf("%w: %s/%s", ErrEntryNotFound, category, key)
	}
	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s/%s is %T", ErrEntryWrongType, category, key, v)
	}
	return typed, nil
}

// Register stores value under category/key with AddIfAbsent semantics. A nil
// registry stores nothing.
func Register[T any](r *Registry, category, key string, value T) bool {
	if r == nil {
		return false
	}
	return r.AddIfAbsent(category, key, value)
}
