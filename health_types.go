package zeros

import (
	"context"
	"time"
)

// HealthStatus represents the health state of a registered entity.
type HealthStatus int

const (
	// HealthStatusUnknown indicates that the health status cannot be determined.
	HealthStatusUnknown HealthStatus = iota

	// HealthStatusHealthy indicates that the entity is operating normally.
	HealthStatusHealthy

	// HealthStatusDegraded indicates that the entity is operational but some
	// non-critical functionality is impaired.
	HealthStatusDegraded

	// HealthStatusUnhealthy indicates that the entity is not functioning.
	HealthStatusUnhealthy
)

// String returns the string representation of the health status.
func (s HealthStatus) String() string {
	switch s {
	case HealthStatusHealthy:
		return "healthy"
	case HealthStatusDegraded:
		return "degraded"
	case HealthStatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// IsHealthy returns true if the status represents a healthy state
func (s HealthStatus) IsHealthy() bool {
	return s == HealthStatusHealthy
}

// HealthReport is one observation produced by a HealthProvider.
type HealthReport struct {
	// Entity names the registry entry the report is about.
	Entity string `json:"entity"`

	// Component optionally narrows the report to part of the entity.
	Component string `json:"component,omitempty"`

	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`

	CheckedAt time.Time `json:"checkedAt"`

	// Optional reports never make the entity unhealthy on their own.
	Optional bool `json:"optional"`
}

// HealthProvider is implemented by registry entries that can describe their own
// health. Entries that do not implement it are considered healthy while present.
type HealthProvider interface {
	HealthCheck(ctx context.Context) ([]HealthReport, error)
}

// HealthCheckFunc adapts a function to HealthProvider for a single entity.
type HealthCheckFunc func(ctx context.Context) (HealthStatus, string, error)

// NewSimpleHealthProvider creates a HealthProvider from a check function.
// An error from the function becomes an unhealthy report rather than an error.
func NewSimpleHealthProvider(entity string, check HealthCheckFunc) HealthProvider {
	return &simpleHealthProvider{entity: entity, check: check}
}

type simpleHealthProvider struct {
	entity string
	check  HealthCheckFunc
}

func (p *simpleHealthProvider) HealthCheck(ctx context.Context) ([]HealthReport, error) {
	status, message, err := p.check(ctx)
	if err != nil {
		status = HealthStatusUnhealthy
		message = err.Error()
	}
	return []HealthReport{{
		Entity:    p.entity,
		Status:    status,
		Message:   message,
		CheckedAt: time.Now(),
	}}, nil
}

// NewStaticHealthProvider creates a HealthProvider that always reports status.
func NewStaticHealthProvider(entity string, status HealthStatus, message string) HealthProvider {
	return NewSimpleHealthProvider(entity, func(context.Context) (HealthStatus, string, error) {
		return status, message, nil
	})
}
