// Package health evaluates host resource utilization and verifies a
// dependency store end to end.
//
// # Core Concepts
//
// An Evaluator samples CPU, RAM and disk utilization from a MetricsSource
// and compares each reading against a ThresholdSet. A reading strictly
// above its threshold fails the verdict; a source that cannot be sampled
// yields ResourceError, never a silent zero.
//
// A Verifier runs one verification cycle against a StoreClient:
//
//	START -> CONNECTED -> WRITTEN -> VERIFIED -> HEALTHY
//
// Each stage is attempted once under its own timeout. A failure stops the
// cycle with UNREACHABLE, WRITE_FAILED or READ_FAILED; a panic or malformed
// store response yields INTERNAL_ERROR. Close runs exactly once for every
// cycle that connected, and the marker document is removed on a best-effort
// basis when the store implements Deleter.
//
// # Basic Usage
//
//	agg := health.NewAggregator(
//	    health.NewEvaluator(hostmetrics.New(hostmetrics.Config{})),
//	    health.NewVerifier(health.VerifierConfig{Service: "mongodb"}),
//	)
//
//	report, err := agg.Aggregate(ctx, health.Request{
//	    Kind:  health.ProbeFull,
//	    Store: mongostore.New(cfg),
//	})
//	if err != nil {
//	    // configuration error; no report was produced
//	}
//
// # HTTP Endpoints
//
//	http.Handle("/healthz", health.LivenessHandler())
//	http.Handle("/readyz", health.ReadinessHandler(agg, factory))
//	http.Handle("/health", health.DetailedHandler(agg, factory))
//	http.Handle("/check_health", health.ResourceHandler(agg))
//	http.Handle("/check_mongo", health.DependencyHandler(agg, factory))
package health
