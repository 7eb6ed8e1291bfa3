package health

import (
	"encoding/json"
	"fmt"
	"time"
)

// ProbeKind selects which evaluators a probe runs.
type ProbeKind int

const (
	// ProbeResource runs only the resource evaluator.
	ProbeResource ProbeKind = iota + 1
	// ProbeDependency runs only the dependency verifier.
	ProbeDependency
	// ProbeFull runs both.
	ProbeFull
)

// String returns the string representation of the probe kind.
func (k ProbeKind) String() string {
	switch k {
	case ProbeResource:
		return "resource"
	case ProbeDependency:
		return "dependency"
	case ProbeFull:
		return "full"
	default:
		return "unknown"
	}
}

// ParseProbeKind parses the string form of a probe kind.
func ParseProbeKind(s string) (ProbeKind, error) {
	switch s {
	case "resource":
		return ProbeResource, nil
	case "dependency":
		return ProbeDependency, nil
	case "full":
		return ProbeFull, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownProbeKind, s)
	}
}

func (k ProbeKind) wantsResource() bool {
	return k == ProbeResource || k == ProbeFull
}

func (k ProbeKind) wantsDependency() bool {
	return k == ProbeDependency || k == ProbeFull
}

// HealthReport is the merged result of one probe.
//
// A nil Resource or Dependency means that evaluator was not run; absence is
// not a pass.
type HealthReport struct {
	Status     Status
	Kind       ProbeKind
	Resource   *ResourceVerdict
	Dependency *DependencyVerdict
	Timestamp  time.Time
	Duration   time.Duration
}

// merge computes the overall status from the present verdicts.
func (r *HealthReport) merge() {
	r.Status = StatusPass
	if r.Resource != nil && r.Resource.Status.Failing() {
		r.Status = StatusFail
	}
	if r.Dependency != nil && r.Dependency.Outcome.Failing() {
		r.Status = StatusFail
	}
}

// Passed reports whether the report status is PASS.
func (r HealthReport) Passed() bool {
	return r.Status == StatusPass
}

// InternalError reports whether any present verdict is an internal fault
// rather than a threshold or connectivity failure.
func (r HealthReport) InternalError() bool {
	if r.Resource != nil && r.Resource.Status == ResourceError {
		return true
	}
	return r.Dependency != nil && r.Dependency.Outcome == OutcomeInternalError
}

type reportJSON struct {
	Status     Status             `json:"status"`
	Kind       string             `json:"kind"`
	Resource   *ResourceVerdict   `json:"resource,omitempty"`
	Dependency *DependencyVerdict `json:"dependency,omitempty"`
	Timestamp  string             `json:"timestamp"`
	Duration   string             `json:"duration"`
}

// MarshalJSON encodes the report with RFC3339 timestamps.
func (r HealthReport) MarshalJSON() ([]byte, error) {
	return json.Marshal(reportJSON{
		Status:     r.Status,
		Kind:       r.Kind.String(),
		Resource:   r.Resource,
		Dependency: r.Dependency,
		Timestamp:  r.Timestamp.UTC().Format(time.RFC3339Nano),
		Duration:   r.Duration.String(),
	})
}
