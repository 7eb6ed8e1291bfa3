package observe

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TestMiddleware_PassingProbe verifies span, metrics and log for a passing probe.
func TestMiddleware_PassingProbe(t *testing.T) {
	tracer, recorder := newRecordingTracer()
	metrics, reader := newTestMetrics(t)
	var buf bytes.Buffer
	mw := NewMiddleware(tracer, metrics, NewLoggerWithWriter("info", &buf))

	probe := mw.Wrap(func(ctx context.Context, meta ProbeMeta) (string, error) {
		return "PASS", nil
	})
	status, err := probe(context.Background(), ProbeMeta{Kind: "resource"})

	if status != "PASS" || err != nil {
		t.Fatalf("probe = %q, %v; want PASS, nil", status, err)
	}
	if spans := recorder.Ended(); len(spans) != 1 || spans[0].Status().Code != codes.Ok {
		t.Errorf("expected one Ok span, got %d", len(spans))
	}
	if found := findMetric(collect(t, reader), MetricProbeTotal); found == nil || sumValue(t, found) != 1 {
		t.Error("probe.total not recorded")
	}
	if !strings.Contains(buf.String(), `"msg":"probe passed"`) {
		t.Errorf("expected a pass log line, got %s", buf.String())
	}
}

// TestMiddleware_FailingProbe verifies errors are propagated unchanged and logged at warn.
func TestMiddleware_FailingProbe(t *testing.T) {
	var buf bytes.Buffer
	mw := NewMiddleware(nil, nil, NewLoggerWithWriter("info", &buf))
	wantErr := errors.New("write failed")

	probe := mw.Wrap(func(ctx context.Context, meta ProbeMeta) (string, error) {
		return "FAIL", wantErr
	})
	status, err := probe(context.Background(), ProbeMeta{Kind: "dependency", Target: "mongodb"})

	if status != "FAIL" {
		t.Errorf("status = %q, want FAIL", status)
	}
	if !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want %v", err, wantErr)
	}
	out := buf.String()
	for _, want := range []string{`"level":"warn"`, `"probe.target":"mongodb"`, `"error":"write failed"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log %s missing %s", out, want)
		}
	}
}

// TestMiddleware_PropagatesSpanContext verifies the wrapped probe sees the span.
func TestMiddleware_PropagatesSpanContext(t *testing.T) {
	tracer, _ := newRecordingTracer()
	mw := NewMiddleware(tracer, nil, nil)

	var sawSpan bool
	probe := mw.Wrap(func(ctx context.Context, meta ProbeMeta) (string, error) {
		sawSpan = trace.SpanContextFromContext(ctx).IsValid()
		return "PASS", nil
	})
	_, _ = probe(context.Background(), ProbeMeta{Kind: "full"})

	if !sawSpan {
		t.Error("probe context carries no span")
	}
}

// TestMiddlewareFromObserver verifies construction from an Observer.
func TestMiddlewareFromObserver(t *testing.T) {
	if _, err := MiddlewareFromObserver(nil); !errors.Is(err, ErrNilObserver) {
		t.Errorf("MiddlewareFromObserver(nil) = %v, want ErrNilObserver", err)
	}

	obs, err := NewObserver(context.Background(), Config{ServiceName: "test"})
	if err != nil {
		t.Fatalf("NewObserver() error = %v", err)
	}
	defer func() { _ = obs.Shutdown(context.Background()) }()

	mw, err := MiddlewareFromObserver(obs)
	if err != nil || mw == nil {
		t.Fatalf("MiddlewareFromObserver() = %v, %v", mw, err)
	}
}
