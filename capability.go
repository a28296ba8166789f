package zeros

import (
	"context"
	"fmt"
)

// Capability is the answer to "is this entity available?": it distinguishes an
// entity that is missing from one that is registered but reports itself broken.
type Capability int

const (
	CapabilityAbsent Capability = iota
	CapabilityUnhealthy
	CapabilityHealthy
)

func (c Capability) String() string {
	switch c {
	case CapabilityHealthy:
		return "healthy"
	case CapabilityUnhealthy:
		return "unhealthy"
	default:
		return "absent"
	}
}

// Present reports whether the entity exists at all.
func (c Capability) Present() bool {
	return c != CapabilityAbsent
}

// Capability queries category/key.
//
// A missing entry is CapabilityAbsent. A nil entry is CapabilityUnhealthy. An
// entry implementing HealthProvider is CapabilityUnhealthy if its check errors,
// panics, or yields a non-optional unhealthy report; degraded still counts as
// healthy. Any other present entry is CapabilityHealthy.
func (r *Registry) Capability(ctx context.Context, category, key string) Capability {
	if r == nil {
		return CapabilityAbsent
	}
	v, ok := r.Get(category, key)
	if !ok {
		return CapabilityAbsent
	}
	if v == nil {
		return CapabilityUnhealthy
	}
	provider, ok := v.(HealthProvider)
	if !ok {
		return CapabilityHealthy
	}
	status, err := worstHealth(ctx, provider)
	if err != nil || status == HealthStatusUnhealthy {
		return CapabilityUnhealthy
	}
	return CapabilityHealthy
}

func worstHealth(ctx context.Context, p HealthProvider) (status HealthStatus, err error) {
	defer func() {
		if r := recover(); r != nil {
			status, err = HealthStatusUnhealthy, fmt.Errorf("health check panicked: %v", r)
		}
	}()

	reports, err := p.HealthCheck(ctx)
	if err != nil {
		return HealthStatusUnhealthy, err
	}
	status = HealthStatusHealthy
	for _, rep := range reports {
		if rep.Optional {
			continue
		}
		if rep.Status > status {
			status = rep.Status
		}
	}
	return status, nil
}
