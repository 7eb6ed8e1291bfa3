package health

import (
	"errors"
	"fmt"
	"testing"
)

func TestSentinelErrors(t *testing.T) {
	errs := []error{
		ErrStoreNotConfigured,
		ErrUnknownProbeKind,
		ErrEvaluatorNotConfigured,
		ErrMetricsUnavailable,
		ErrUnreachable,
		ErrWriteFailed,
		ErrReadFailed,
		ErrInternalFault,
		ErrCleanupUnsupported,
		ErrThresholdExceeded,
	}

	for i, a := range errs {
		if a.Error() == "" {
			t.Errorf("error %d has an empty message", i)
		}
		for j, b := range errs {
			if i != j && errors.Is(a, b) {
				t.Errorf("%v should not match %v", a, b)
			}
		}
	}
}

func TestIsConfigError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{ErrStoreNotConfigured, true},
		{fmt.Errorf("%w: 7", ErrUnknownProbeKind), true},
		{ErrEvaluatorNotConfigured, true},
		{ErrUnreachable, false},
		{ErrInternalFault, false},
		{nil, false},
	}

	for _, tt := range tests {
		if got := IsConfigError(tt.err); got != tt.want {
			t.Errorf("IsConfigError(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
