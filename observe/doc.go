// Package observe provides observability primitives for health probes.
//
// It wires OpenTelemetry tracing and metrics with a zap-backed structured
// logger. Probes are instrumented through Middleware, which opens a span,
// records probe counters and latency, and logs the outcome.
//
//	obs, err := observe.NewObserver(ctx, observe.Config{
//	    ServiceName: "healthprobe",
//	    Metrics:     observe.MetricsConfig{Enabled: true, Exporter: "prometheus"},
//	    Logging:     observe.LoggingConfig{Enabled: true, Level: "info"},
//	})
//	mw, err := observe.MiddlewareFromObserver(obs)
package observe
