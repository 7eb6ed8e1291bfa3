package health

import (
	"context"
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestDefaultThresholds(t *testing.T) {
	got := DefaultThresholds()
	want := ThresholdSet{CPUMax: 80, RAMMax: 80, DiskMax: 80}
	if got != want {
		t.Errorf("DefaultThresholds() = %+v, want %+v", got, want)
	}
}

func TestNewEvaluator_Defaults(t *testing.T) {
	e := NewEvaluator(&staticSource{})
	if e.CPUWindow() != time.Second {
		t.Errorf("CPUWindow() = %v, want 1s", e.CPUWindow())
	}

	e = NewEvaluator(&staticSource{}, EvaluatorConfig{CPUWindow: time.Minute})
	if e.CPUWindow() != MaxCPUWindow {
		t.Errorf("CPUWindow() = %v, want it capped at %v", e.CPUWindow(), MaxCPUWindow)
	}
}

func TestEvaluator_PassesWindowToSource(t *testing.T) {
	src := &staticSource{}
	e := NewEvaluator(src, EvaluatorConfig{CPUWindow: 200 * time.Millisecond})

	e.Evaluate(context.Background(), DefaultThresholds())

	if src.window != 200*time.Millisecond {
		t.Errorf("source window = %v, want 200ms", src.window)
	}
	if src.calls != 1 {
		t.Errorf("source calls = %d, want 1", src.calls)
	}
}

func TestEvaluator_ScenarioA_Pass(t *testing.T) {
	src := &staticSource{sample: MetricSample{CPUPercent: 50, RAMPercent: 60, DiskPercent: 70}}
	verdict := NewEvaluator(src).Evaluate(context.Background(), DefaultThresholds())

	if verdict.Status != ResourcePass {
		t.Errorf("Status = %v, want PASS", verdict.Status)
	}
	if len(verdict.Exceeded) != 0 {
		t.Errorf("Exceeded = %v, want none", verdict.Exceeded)
	}
	if verdict.Sample != src.sample {
		t.Errorf("Sample = %+v, want %+v", verdict.Sample, src.sample)
	}
	if verdict.Thresholds != DefaultThresholds() {
		t.Errorf("Thresholds = %+v, want defaults", verdict.Thresholds)
	}
}

func TestEvaluator_ScenarioB_CPUFail(t *testing.T) {
	src := &staticSource{sample: MetricSample{CPUPercent: 95, RAMPercent: 60, DiskPercent: 70}}
	verdict := NewEvaluator(src).Evaluate(context.Background(), DefaultThresholds())

	if verdict.Status != ResourceFail {
		t.Errorf("Status = %v, want FAIL", verdict.Status)
	}
	if !reflect.DeepEqual(verdict.Exceeded, []string{"cpu"}) {
		t.Errorf("Exceeded = %v, want [cpu]", verdict.Exceeded)
	}
	if verdict.Err != nil {
		t.Errorf("Err = %v, want nil for a threshold failure", verdict.Err)
	}
}

// FAIL iff any sampled value strictly exceeds its threshold.
func TestEvaluator_FailIffExceeded(t *testing.T) {
	values := []float64{0, 50, 79.9, 80, 80.1, 100}
	limits := []int{-10, 0, 80, 100, 150}

	for _, cpu := range values {
		for _, ram := range values {
			for _, limit := range limits {
				sample := MetricSample{CPUPercent: cpu, RAMPercent: ram, DiskPercent: 10}
				thresholds := ThresholdSet{CPUMax: limit, RAMMax: 80, DiskMax: limit}

				verdict := NewEvaluator(&staticSource{sample: sample}).Evaluate(context.Background(), thresholds)

				wantFail := cpu > float64(limit) || ram > 80 || 10 > float64(limit)
				if (verdict.Status == ResourceFail) != wantFail {
					t.Errorf("sample %+v thresholds %+v: Status = %v, wantFail %v",
						sample, thresholds, verdict.Status, wantFail)
				}
				if verdict.Status == ResourceError {
					t.Errorf("sample %+v thresholds %+v: unexpected ResourceError", sample, thresholds)
				}
			}
		}
	}
}

func TestEvaluator_EqualToThresholdPasses(t *testing.T) {
	src := &staticSource{sample: MetricSample{CPUPercent: 80, RAMPercent: 80, DiskPercent: 80}}
	verdict := NewEvaluator(src).Evaluate(context.Background(), DefaultThresholds())

	if verdict.Status != ResourcePass {
		t.Errorf("Status = %v, want PASS at exactly the threshold", verdict.Status)
	}
}

func TestEvaluator_Idempotent(t *testing.T) {
	src := &staticSource{sample: MetricSample{CPUPercent: 81, RAMPercent: 20, DiskPercent: 99}}
	e := NewEvaluator(src)
	thresholds := ThresholdSet{CPUMax: 90, RAMMax: 90, DiskMax: 90}

	first := e.Evaluate(context.Background(), thresholds)
	second := e.Evaluate(context.Background(), thresholds)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("verdicts differ:\n%+v\n%+v", first, second)
	}
}

func TestEvaluator_SourceError(t *testing.T) {
	sourceErr := errors.New("permission denied")
	verdict := NewEvaluator(&staticSource{err: sourceErr}).Evaluate(context.Background(), DefaultThresholds())

	if verdict.Status != ResourceError {
		t.Fatalf("Status = %v, want INTERNAL_ERROR", verdict.Status)
	}
	if !errors.Is(verdict.Err, ErrMetricsUnavailable) {
		t.Errorf("Err = %v, want ErrMetricsUnavailable", verdict.Err)
	}
	if !errors.Is(verdict.Err, sourceErr) {
		t.Errorf("Err = %v, want it to wrap the source error", verdict.Err)
	}
	if verdict.Sample != (MetricSample{}) {
		t.Errorf("Sample = %+v, want zero on error", verdict.Sample)
	}
}

func TestEvaluator_SourcePanic(t *testing.T) {
	verdict := NewEvaluator(&staticSource{panics: true}).Evaluate(context.Background(), DefaultThresholds())

	if verdict.Status != ResourceError {
		t.Errorf("Status = %v, want INTERNAL_ERROR", verdict.Status)
	}
	if !errors.Is(verdict.Err, ErrMetricsUnavailable) {
		t.Errorf("Err = %v, want ErrMetricsUnavailable", verdict.Err)
	}
}

func TestEvaluator_NilSource(t *testing.T) {
	verdict := NewEvaluator(nil).Evaluate(context.Background(), DefaultThresholds())

	if verdict.Status != ResourceError {
		t.Errorf("Status = %v, want INTERNAL_ERROR", verdict.Status)
	}
}

func TestEvaluator_InvalidReading(t *testing.T) {
	tests := []struct {
		name   string
		sample MetricSample
	}{
		{"nan cpu", MetricSample{CPUPercent: math.NaN()}},
		{"negative ram", MetricSample{RAMPercent: -1}},
		{"infinite disk", MetricSample{DiskPercent: math.Inf(1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdict := NewEvaluator(&staticSource{sample: tt.sample}).Evaluate(context.Background(), DefaultThresholds())
			if verdict.Status != ResourceError {
				t.Errorf("Status = %v, want INTERNAL_ERROR", verdict.Status)
			}
		})
	}
}

func TestMetricSample_ValidateReportsFirstInvalidReading(t *testing.T) {
	sample := MetricSample{CPUPercent: math.NaN(), RAMPercent: -1, DiskPercent: math.Inf(1)}

	for i := 0; i < 50; i++ {
		err := sample.validate()
		if !errors.Is(err, ErrMetricsUnavailable) {
			t.Fatalf("validate() error = %v, want ErrMetricsUnavailable", err)
		}
		if !strings.Contains(err.Error(), "invalid cpu reading") {
			t.Fatalf("validate() error = %v, want the cpu reading named", err)
		}
	}

	err := MetricSample{CPUPercent: 1, RAMPercent: -1, DiskPercent: -2}.validate()
	if err == nil || !strings.Contains(err.Error(), "invalid ram reading") {
		t.Errorf("validate() error = %v, want the ram reading named", err)
	}
}

func TestThresholdSet_Exceeded(t *testing.T) {
	thresholds := ThresholdSet{CPUMax: 10, RAMMax: 20, DiskMax: 30}
	got := thresholds.Exceeded(MetricSample{CPUPercent: 11, RAMPercent: 20, DiskPercent: 31})

	if !reflect.DeepEqual(got, []string{"cpu", "disk"}) {
		t.Errorf("Exceeded() = %v, want [cpu disk]", got)
	}
}
