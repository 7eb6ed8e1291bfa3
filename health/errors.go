package health

import "errors"

// Configuration errors. These are returned by Aggregate instead of a report.
var (
	// ErrStoreNotConfigured indicates a dependency probe was requested without a store.
	ErrStoreNotConfigured = errors.New("health: store not configured")

	// ErrUnknownProbeKind indicates an unsupported probe kind.
	ErrUnknownProbeKind = errors.New("health: unknown probe kind")

	// ErrEvaluatorNotConfigured indicates a resource probe was requested without a metrics source.
	ErrEvaluatorNotConfigured = errors.New("health: resource evaluator not configured")
)

// Verdict errors. These are carried inside verdicts and never returned by Aggregate.
var (
	// ErrMetricsUnavailable indicates the metrics source could not be sampled.
	ErrMetricsUnavailable = errors.New("health: metrics unavailable")

	// ErrUnreachable indicates the store could not be connected to.
	ErrUnreachable = errors.New("health: dependency unreachable")

	// ErrWriteFailed indicates the marker document insert failed.
	ErrWriteFailed = errors.New("health: dependency write failed")

	// ErrReadFailed indicates the marker document could not be read back.
	ErrReadFailed = errors.New("health: dependency read failed")

	// ErrInternalFault indicates a condition the verifier did not anticipate.
	ErrInternalFault = errors.New("health: internal fault")

	// ErrCleanupUnsupported indicates the store cannot delete marker documents.
	ErrCleanupUnsupported = errors.New("health: store does not support cleanup")
)

// IsConfigError reports whether err is a configuration error from Aggregate.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrStoreNotConfigured) ||
		errors.Is(err, ErrUnknownProbeKind) ||
		errors.Is(err, ErrEvaluatorNotConfigured)
}

// ErrThresholdExceeded marks a FAIL resource verdict in telemetry. It is a
// verdict, not a fault.
var ErrThresholdExceeded = errors.New("health: threshold exceeded")
