package health

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/jonwraymond/healthprobe/observe"
)

const (
	// DefaultThreshold is the default maximum utilization percentage.
	DefaultThreshold = 80

	// DefaultCPUWindow is how long a CPU sample blocks to measure utilization.
	DefaultCPUWindow = time.Second

	// MaxCPUWindow bounds the CPU sample window regardless of configuration.
	MaxCPUWindow = 5 * time.Second
)

// MetricSample is a point-in-time reading of host utilization, in percent.
type MetricSample struct {
	CPUPercent  float64 `json:"cpu_usage"`
	RAMPercent  float64 `json:"ram_usage"`
	DiskPercent float64 `json:"disk_usage"`
}

func (s MetricSample) validate() error {
	for _, r := range []struct {
		name  string
		value float64
	}{
		{"cpu", s.CPUPercent},
		{"ram", s.RAMPercent},
		{"disk", s.DiskPercent},
	} {
		if math.IsNaN(r.value) || math.IsInf(r.value, 0) || r.value < 0 {
			return fmt.Errorf("%w: invalid %s reading %v", ErrMetricsUnavailable, r.name, r.value)
		}
	}
	return nil
}

// ThresholdSet holds the maximum allowed utilization per resource.
// Values outside [0,100] are used as given.
type ThresholdSet struct {
	CPUMax  int `json:"cpu_threshold"`
	RAMMax  int `json:"ram_threshold"`
	DiskMax int `json:"disk_threshold"`
}

// DefaultThresholds returns {80, 80, 80}.
func DefaultThresholds() ThresholdSet {
	return ThresholdSet{
		CPUMax:  DefaultThreshold,
		RAMMax:  DefaultThreshold,
		DiskMax: DefaultThreshold,
	}
}

// Exceeded returns the names of the resources in s that strictly exceed
// their threshold, in cpu, ram, disk order.
func (t ThresholdSet) Exceeded(s MetricSample) []string {
	var exceeded []string
	if s.CPUPercent > float64(t.CPUMax) {
		exceeded = append(exceeded, "cpu")
	}
	if s.RAMPercent > float64(t.RAMMax) {
		exceeded = append(exceeded, "ram")
	}
	if s.DiskPercent > float64(t.DiskMax) {
		exceeded = append(exceeded, "disk")
	}
	return exceeded
}

// ResourceVerdict is the outcome of a resource evaluation.
type ResourceVerdict struct {
	Status     ResourceStatus `json:"status"`
	Sample     MetricSample   `json:"metrics"`
	Thresholds ThresholdSet   `json:"thresholds"`
	Exceeded   []string       `json:"exceeded,omitempty"`
	Message    string         `json:"message,omitempty"`

	// Err is set when Status is ResourceError.
	Err error `json:"-"`
}

// MetricsSource samples host utilization.
//
// Contract:
//   - Sample blocks for at most cpuWindow (plus the cost of the OS calls) and
//     must honor ctx cancellation.
//   - A returned error means the sample is unusable; zero values are never a
//     substitute for an error.
type MetricsSource interface {
	Sample(ctx context.Context, cpuWindow time.Duration) (MetricSample, error)
}

// EvaluatorConfig configures the resource evaluator.
type EvaluatorConfig struct {
	// CPUWindow is the blocking CPU sample window.
	// Default: 1 second, capped at MaxCPUWindow.
	CPUWindow time.Duration

	// Logger receives sampling failures. Default: no logging.
	Logger observe.Logger
}

// Evaluator compares sampled host utilization against thresholds.
type Evaluator struct {
	source MetricsSource
	config EvaluatorConfig
}

// NewEvaluator creates a resource evaluator reading from source.
func NewEvaluator(source MetricsSource, config ...EvaluatorConfig) *Evaluator {
	var cfg EvaluatorConfig
	if len(config) > 0 {
		cfg = config[0]
	}
	if cfg.CPUWindow <= 0 {
		cfg.CPUWindow = DefaultCPUWindow
	}
	if cfg.CPUWindow > MaxCPUWindow {
		cfg.CPUWindow = MaxCPUWindow
	}
	if cfg.Logger == nil {
		cfg.Logger = observe.NopLogger()
	}
	return &Evaluator{source: source, config: cfg}
}

// CPUWindow returns the latency budget of a single evaluation.
func (e *Evaluator) CPUWindow() time.Duration {
	return e.config.CPUWindow
}

// Evaluate samples the metrics source once and compares it to thresholds.
// It never panics and never returns a zero sample in place of an error.
func (e *Evaluator) Evaluate(ctx context.Context, thresholds ThresholdSet) ResourceVerdict {
	verdict := ResourceVerdict{Thresholds: thresholds}

	sample, err := e.sample(ctx)
	if err == nil {
		err = sample.validate()
	}
	if err != nil {
		e.config.Logger.Error(ctx, "resource sampling failed",
			observe.Field{Key: "error", Value: err.Error()},
		)
		verdict.Status = ResourceError
		verdict.Message = err.Error()
		verdict.Err = err
		return verdict
	}

	verdict.Sample = sample
	verdict.Exceeded = thresholds.Exceeded(sample)
	if len(verdict.Exceeded) > 0 {
		verdict.Status = ResourceFail
		verdict.Message = fmt.Sprintf("thresholds exceeded: %v", verdict.Exceeded)
	} else {
		verdict.Status = ResourcePass
	}
	return verdict
}

func (e *Evaluator) sample(ctx context.Context) (sample MetricSample, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: metrics source panic: %v", ErrMetricsUnavailable, r)
		}
	}()

	if e.source == nil {
		return MetricSample{}, fmt.Errorf("%w: no metrics source", ErrMetricsUnavailable)
	}

	sample, err = e.source.Sample(ctx, e.config.CPUWindow)
	if err != nil {
		return MetricSample{}, fmt.Errorf("%w: %w", ErrMetricsUnavailable, err)
	}
	return sample, nil
}
