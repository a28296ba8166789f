package zeros

import (
	"context"
	"strings"
	"time"
)

// Prerequisite is something that must be observably present before any module
// is loaded, such as the preloaded storage layer.
//
// When Present is nil the prerequisite is looked up in the registry: the entry
// Category/Key, or just the Category when Key is empty.
type Prerequisite struct {
	Name     string
	Category string
	Key      string
	Present  func() bool

	// Optional prerequisites are reported but never abort boot.
	Optional bool
}

// ParsePrerequisite builds a registry-backed prerequisite from "category" or
// "category:key". A leading "?" marks it optional.
func ParsePrerequisite(s string) Prerequisite {
	p := Prerequisite{}
	if rest, ok := strings.CutPrefix(s, "?"); ok {
		p.Optional = true
		s = rest
	}
	p.Name = s
	p.Category, p.Key, _ = strings.Cut(s, ":")
	return p
}

func (p Prerequisite) present(registry *Registry) bool {
	if p.Present != nil {
		return p.Present()
	}
	if registry == nil {
		return false
	}
	if p.Key == "" {
		return registry.Has(p.Category)
	}
	_, ok := registry.Get(p.Category, p.Key)
	return ok
}

// prerequisiteResult is the outcome of awaitPrerequisites.
type prerequisiteResult struct {
	loaded  map[string]bool
	missing []string
	// firstHard is the first required prerequisite still missing, if any.
	firstHard string
}

// awaitPrerequisites polls until every required prerequisite is present, the
// timeout elapses, or ctx ends. Optional ones are sampled once at the end.
func awaitPrerequisites(ctx context.Context, prereqs []Prerequisite, registry *Registry, timeout, interval time.Duration) prerequisiteResult {
	if interval <= 0 {
		interval = DefaultPrerequisitePollInterval
	}

	allHardPresent := func() bool {
		for _, p := range prereqs {
			if !p.Optional && !p.present(registry) {
				return false
			}
		}
		return true
	}

	if !allHardPresent() && timeout > 0 {
		deadline := time.NewTimer(timeout)
		ticker := time.NewTicker(interval)
	wait:
		for {
			select {
			case <-ticker.C:
				if allHardPresent() {
					break wait
				}
			case <-deadline.C:
				break wait
			case <-ctx.Done():
				break wait
			}
		}
		ticker.Stop()
		deadline.Stop()
	}

	res := prerequisiteResult{loaded: make(map[string]bool, len(prereqs))}
	for _, p := range prereqs {
		ok := p.present(registry)
		res.loaded[p.Name] = ok
		if ok {
			continue
		}
		res.missing = append(res.missing, p.Name)
		if !p.Optional && res.firstHard == "" {
			res.firstHard = p.Name
		}
	}
	return res
}
