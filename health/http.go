package health

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// Query parameters accepted by ResourceHandler.
const (
	ParamCPUThreshold  = "cpu_threshold"
	ParamRAMThreshold  = "ram_threshold"
	ParamDiskThreshold = "disk_threshold"

	// ParamKind selects the probe kind served by DetailedHandler.
	ParamKind = "kind"
)

// ErrorResponse is the JSON body for requests that produce no report.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// LivenessHandler returns an HTTP handler for liveness probes.
// This is a simple check that the service is running.
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
}

// ReadinessHandler returns an HTTP handler for readiness probes. It runs a
// full probe, or a resource probe when factory is nil.
func ReadinessHandler(agg *Aggregator, factory StoreFactory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := agg.Aggregate(r.Context(), fullRequest(factory))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "configuration", err)
			return
		}

		w.Header().Set("Content-Type", "text/plain")
		if report.Passed() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("OK"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("UNHEALTHY"))
	}
}

// DetailedHandler returns an HTTP handler that reports a probe as JSON. The
// kind query parameter selects resource, dependency or full (the default).
func DetailedHandler(agg *Aggregator, factory StoreFactory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := r.URL.Query().Get(ParamKind)
		if raw == "" {
			serve(w, r, agg, fullRequest(factory))
			return
		}
		kind, err := ParseProbeKind(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "request", err)
			return
		}
		req := Request{Kind: kind}
		if kind.wantsDependency() && factory != nil {
			req.Store = factory()
		}
		serve(w, r, agg, req)
	}
}

// ResourceHandler returns an HTTP handler for resource probes. Thresholds
// not present in the query fall back to the aggregator defaults.
func ResourceHandler(agg *Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		thresholds, err := ParseThresholds(r.URL.Query(), agg.DefaultThresholds())
		if err != nil {
			writeError(w, http.StatusBadRequest, "request", err)
			return
		}
		serve(w, r, agg, Request{Kind: ProbeResource, Thresholds: &thresholds})
	}
}

// DependencyHandler returns an HTTP handler that verifies the store built by
// factory. Each request gets its own client.
func DependencyHandler(agg *Aggregator, factory StoreFactory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := Request{Kind: ProbeDependency}
		if factory != nil {
			req.Store = factory()
		}
		serve(w, r, agg, req)
	}
}

// ParseThresholds reads threshold overrides from q. Empty or missing
// parameters keep the value from defaults; anything else must be an integer.
func ParseThresholds(q url.Values, defaults ThresholdSet) (ThresholdSet, error) {
	out := defaults
	for _, p := range []struct {
		name string
		dst  *int
	}{
		{ParamCPUThreshold, &out.CPUMax},
		{ParamRAMThreshold, &out.RAMMax},
		{ParamDiskThreshold, &out.DiskMax},
	} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return ThresholdSet{}, fmt.Errorf("invalid %s %q: must be an integer", p.name, raw)
		}
		*p.dst = v
	}
	return out, nil
}

// StatusCode maps a report to an HTTP status. Internal faults map to 500 so
// they can be told apart from unhealthy resources and dependencies (503).
func StatusCode(report HealthReport) int {
	switch {
	case report.Passed():
		return http.StatusOK
	case report.InternalError():
		return http.StatusInternalServerError
	default:
		return http.StatusServiceUnavailable
	}
}

func fullRequest(factory StoreFactory) Request {
	if factory == nil {
		return Request{Kind: ProbeResource}
	}
	return Request{Kind: ProbeFull, Store: factory()}
}

func serve(w http.ResponseWriter, r *http.Request, agg *Aggregator, req Request) {
	report, err := agg.Aggregate(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "configuration", err)
		return
	}
	writeJSON(w, StatusCode(report), report)
}

func writeError(w http.ResponseWriter, code int, kind string, err error) {
	writeJSON(w, code, ErrorResponse{Error: err.Error(), Kind: kind})
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
