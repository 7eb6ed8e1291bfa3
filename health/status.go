package health

import (
	"encoding/json"
	"fmt"
)

// Status is the pass/fail state of a report.
type Status int

const (
	// StatusPass indicates every evaluated check is non-failing.
	StatusPass Status = iota
	// StatusFail indicates at least one evaluated check failed.
	StatusFail
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusPass:
		return "PASS"
	case StatusFail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// MarshalJSON encodes the status as its string form.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes the string form of a status.
func (s *Status) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	switch str {
	case "PASS":
		*s = StatusPass
	case "FAIL":
		*s = StatusFail
	default:
		return fmt.Errorf("health: unknown status %q", str)
	}
	return nil
}

// ResourceStatus is the state of a resource verdict.
//
// ResourceError is distinct from ResourceFail: it means the metrics source
// could not be sampled, not that a threshold was exceeded.
type ResourceStatus int

const (
	// ResourcePass indicates every sampled value is within its threshold.
	ResourcePass ResourceStatus = iota
	// ResourceFail indicates at least one sampled value exceeds its threshold.
	ResourceFail
	// ResourceError indicates the metrics source could not be sampled.
	ResourceError
)

// String returns the string representation of the resource status.
func (s ResourceStatus) String() string {
	switch s {
	case ResourcePass:
		return "PASS"
	case ResourceFail:
		return "FAIL"
	case ResourceError:
		return "INTERNAL_ERROR"
	default:
		return "UNKNOWN"
	}
}

// Failing reports whether the status fails a report.
func (s ResourceStatus) Failing() bool {
	return s != ResourcePass
}

// MarshalJSON encodes the resource status as its string form.
func (s ResourceStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes the string form of a resource status.
func (s *ResourceStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	switch str {
	case "PASS":
		*s = ResourcePass
	case "FAIL":
		*s = ResourceFail
	case "INTERNAL_ERROR":
		*s = ResourceError
	default:
		return fmt.Errorf("health: unknown resource status %q", str)
	}
	return nil
}

// Outcome classifies a dependency verification cycle.
//
// Failure outcomes are ordered by the stage that detected them.
type Outcome int

const (
	// OutcomeHealthy indicates connect, write and read all succeeded.
	OutcomeHealthy Outcome = iota
	// OutcomeUnreachable indicates the store could not be connected to.
	OutcomeUnreachable
	// OutcomeWriteFailed indicates the marker document could not be written.
	OutcomeWriteFailed
	// OutcomeReadFailed indicates the marker document could not be read back.
	OutcomeReadFailed
	// OutcomeInternalError indicates a fault in the verifier itself.
	OutcomeInternalError
)

var outcomeNames = map[Outcome]string{
	OutcomeHealthy:       "HEALTHY",
	OutcomeUnreachable:   "UNREACHABLE",
	OutcomeWriteFailed:   "WRITE_FAILED",
	OutcomeReadFailed:    "READ_FAILED",
	OutcomeInternalError: "INTERNAL_ERROR",
}

// String returns the string representation of the outcome.
func (o Outcome) String() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}
	return "UNKNOWN"
}

// Failing reports whether the outcome fails a report.
func (o Outcome) Failing() bool {
	return o != OutcomeHealthy
}

// MarshalJSON encodes the outcome as its string form.
func (o Outcome) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.String())
}

// UnmarshalJSON decodes the string form of an outcome.
func (o *Outcome) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	for outcome, name := range outcomeNames {
		if name == str {
			*o = outcome
			return nil
		}
	}
	return fmt.Errorf("health: unknown outcome %q", str)
}
