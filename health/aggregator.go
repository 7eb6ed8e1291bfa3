package health

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/healthprobe/observe"
)

// Request selects what a probe evaluates.
type Request struct {
	Kind ProbeKind

	// Thresholds overrides the aggregator defaults for resource probes.
	Thresholds *ThresholdSet

	// Store is owned by this request for the duration of the verification
	// cycle. Required for dependency and full probes.
	Store StoreClient
}

// AggregatorConfig configures the health aggregator.
type AggregatorConfig struct {
	// Thresholds are used when a request carries none.
	// Default: DefaultThresholds()
	Thresholds *ThresholdSet

	// Middleware wraps every probe with tracing, metrics and logging.
	// Default: none
	Middleware *observe.Middleware

	// Now is the report clock. Default: time.Now
	Now func() time.Time
}

// Aggregator runs the evaluators a probe kind selects and merges their
// verdicts into a HealthReport.
type Aggregator struct {
	config    AggregatorConfig
	evaluator *Evaluator
	verifier  *Verifier
}

// NewAggregator creates a new health aggregator. Either evaluator may be nil
// if the corresponding probe kinds are never requested.
func NewAggregator(evaluator *Evaluator, verifier *Verifier, config ...AggregatorConfig) *Aggregator {
	var cfg AggregatorConfig
	if len(config) > 0 {
		cfg = config[0]
	}
	if cfg.Thresholds == nil {
		defaults := DefaultThresholds()
		cfg.Thresholds = &defaults
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Aggregator{
		config:    cfg,
		evaluator: evaluator,
		verifier:  verifier,
	}
}

// DefaultThresholds returns the thresholds used when a request has none.
func (a *Aggregator) DefaultThresholds() ThresholdSet {
	return *a.config.Thresholds
}

// Aggregate runs the probe described by req.
//
// The returned error is non-nil only for configuration errors (see
// IsConfigError); every runtime failure is carried in the report.
func (a *Aggregator) Aggregate(ctx context.Context, req Request) (HealthReport, error) {
	if err := a.validate(req); err != nil {
		return HealthReport{}, err
	}

	meta := observe.ProbeMeta{Kind: req.Kind.String()}
	if req.Kind.wantsDependency() && a.verifier != nil {
		meta.Target = a.verifier.Service()
	}

	var report HealthReport
	run := func(ctx context.Context, _ observe.ProbeMeta) (string, error) {
		report = a.evaluate(ctx, req)
		return report.Status.String(), reportError(report)
	}
	if a.config.Middleware != nil {
		run = a.config.Middleware.Wrap(run)
	}
	_, _ = run(ctx, meta)

	return report, nil
}

func (a *Aggregator) validate(req Request) error {
	switch req.Kind {
	case ProbeResource, ProbeDependency, ProbeFull:
	default:
		return fmt.Errorf("%w: %d", ErrUnknownProbeKind, int(req.Kind))
	}
	if req.Kind.wantsResource() && a.evaluator == nil {
		return ErrEvaluatorNotConfigured
	}
	if req.Kind.wantsDependency() && (req.Store == nil || a.verifier == nil) {
		return ErrStoreNotConfigured
	}
	return nil
}

func (a *Aggregator) evaluate(ctx context.Context, req Request) HealthReport {
	start := a.config.Now()
	report := HealthReport{Kind: req.Kind, Timestamp: start}

	thresholds := *a.config.Thresholds
	if req.Thresholds != nil {
		thresholds = *req.Thresholds
	}

	// Evaluators return verdicts rather than errors, so the group only
	// provides the join.
	var g errgroup.Group
	if req.Kind.wantsResource() {
		g.Go(func() error {
			verdict := a.evaluator.Evaluate(ctx, thresholds)
			report.Resource = &verdict
			return nil
		})
	}
	if req.Kind.wantsDependency() {
		g.Go(func() error {
			verdict := a.verifier.Verify(ctx, req.Store)
			report.Dependency = &verdict
			return nil
		})
	}
	_ = g.Wait()

	report.merge()
	report.Duration = a.config.Now().Sub(start)
	return report
}

// reportError summarizes a failing report for telemetry.
func reportError(r HealthReport) error {
	if r.Passed() {
		return nil
	}
	if r.Resource != nil && r.Resource.Status.Failing() {
		if r.Resource.Err != nil {
			return r.Resource.Err
		}
		return fmt.Errorf("%w: %s", ErrThresholdExceeded, r.Resource.Message)
	}
	if r.Dependency != nil && r.Dependency.Err != nil {
		return r.Dependency.Err
	}
	return fmt.Errorf("health: probe %s failed", r.Kind)
}
