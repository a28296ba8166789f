package zeros

import (
	"fmt"
	"time"
)

// BootStatus is the overall readiness of a boot.
type BootStatus string

const (
	BootStatusReady    BootStatus = "ready"
	BootStatusDegraded BootStatus = "degraded"
	BootStatusFailed   BootStatus = "failed"
)

// BootReport is the structured completion report of a boot attempt. It is
// returned by Boot and carried as the data of boot completion events.
type BootReport struct {
	SessionID string        `json:"sessionId"`
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration"`

	LoadedPrerequisites map[string]bool `json:"loadedPrerequisites"`
	Missing             []string        `json:"missing"`

	Order   []string                   `json:"order,omitempty"`
	Layers  [][]string                 `json:"layers,omitempty"`
	Modules map[string]ModuleLoadState `json:"modules,omitempty"`

	Fixups    []FixupResult   `json:"fixups,omitempty"`
	SelfCheck SelfCheckReport `json:"selfCheck"`

	Status       BootStatus `json:"status"`
	Error        string     `json:"error,omitempty"`
	FailedModule string     `json:"failedModule,omitempty"`
}

// Ready reports whether boot completed, fully or degraded.
func (r *BootReport) Ready() bool {
	return r != nil && r.Status != BootStatusFailed
}

// Summary renders the one-line outcome shown to users.
func (r *BootReport) Summary() string {
	if r == nil {
		return "boot not started"
	}
	if r.Status == BootStatusFailed {
		if r.FailedModule != "" {
			return fmt.Sprintf("boot failed: %s: %s", r.FailedModule, r.Error)
		}
		return "boot failed: " + r.Error
	}
	return fmt.Sprintf("boot completed (%s): %d checks passed, %d warnings",
		r.Status, r.SelfCheck.Passed, r.SelfCheck.Warnings)
}

// clone returns a copy that shares no maps or slices with r.
func (r *BootReport) clone() *BootReport {
	if r == nil {
		return nil
	}
	c := *r
	c.LoadedPrerequisites = make(map[string]bool, len(r.LoadedPrerequisites))
	for k, v := range r.LoadedPrerequisites {
		c.LoadedPrerequisites[k] = v
	}
	c.Missing = append([]string(nil), r.Missing...)
	c.Order = append([]string(nil), r.Order...)
	c.Layers = make([][]string, len(r.Layers))
	for i, l := range r.Layers {
		c.Layers[i] = append([]string(nil), l...)
	}
	if r.Modules != nil {
		c.Modules = make(map[string]ModuleLoadState, len(r.Modules))
		for k, v := range r.Modules {
			c.Modules[k] = v
		}
	}
	c.Fixups = append([]FixupResult(nil), r.Fixups...)
	c.SelfCheck.Results = append([]CheckResult(nil), r.SelfCheck.Results...)
	c.SelfCheck.Stages = append([]StageSummary(nil), r.SelfCheck.Stages...)
	return &c
}

// deriveStatus computes the status of a boot that got past loading.
func deriveStatus(fixupErrs []error, sc SelfCheckReport) BootStatus {
	if len(fixupErrs) > 0 || sc.Failed > 0 {
		return BootStatusDegraded
	}
	return BootStatusReady
}
