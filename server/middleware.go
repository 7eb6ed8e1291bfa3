package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/jonwraymond/healthprobe/health"
	"github.com/jonwraymond/healthprobe/observe"
	"github.com/jonwraymond/healthprobe/resilience"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

type contextKey struct{}

// RequestIDFromContext returns the id assigned by RequestID, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(contextKey{}).(string)
	return id
}

// RequestID assigns each request an id, reusing an incoming X-Request-ID.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextKey{}, id)))
	})
}

// Logging logs one line per request with its status and latency.
func Logging(logger observe.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rw, r)

			logger.Info(r.Context(), "http request",
				observe.Field{Key: "method", Value: r.Method},
				observe.Field{Key: "path", Value: r.URL.Path},
				observe.Field{Key: "status", Value: rw.status},
				observe.Field{Key: "duration_ms", Value: time.Since(start).Milliseconds()},
				observe.Field{Key: "request_id", Value: RequestIDFromContext(r.Context())},
				observe.Field{Key: "remote_addr", Value: r.RemoteAddr},
			)
		})
	}
}

// Recovery turns a handler panic into a 500 response.
func Recovery(logger observe.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error(r.Context(), "panic recovered",
						observe.Field{Key: "panic", Value: rec},
						observe.Field{Key: "path", Value: r.URL.Path},
						observe.Field{Key: "request_id", Value: RequestIDFromContext(r.Context())},
					)
					writeError(w, http.StatusInternalServerError, "internal", "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimit rejects requests beyond the limiter's rate with 429.
func RateLimit(rl *resilience.RateLimiter, logger observe.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.Allow() {
				logger.Warn(r.Context(), "rate limit exceeded",
					observe.Field{Key: "path", Value: r.URL.Path},
					observe.Field{Key: "request_id", Value: RequestIDFromContext(r.Context())},
				)
				w.Header().Set("Retry-After", "1")
				writeError(w, http.StatusTooManyRequests, "rate_limited", resilience.ErrRateLimitExceeded.Error())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Bulkhead caps concurrent requests through next. A request that finds no
// free slot gets 429 and never reaches the handler.
func Bulkhead(b *resilience.Bulkhead, logger observe.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := b.Acquire(r.Context()); err != nil {
				logger.Warn(r.Context(), "probe rejected",
					observe.Field{Key: "path", Value: r.URL.Path},
					observe.Field{Key: "error", Value: err.Error()},
				)
				w.Header().Set("Retry-After", "1")
				writeError(w, http.StatusTooManyRequests, "overloaded", err.Error())
				return
			}
			defer b.Release()
			next.ServeHTTP(w, r)
		})
	}
}

// Chain applies middlewares so the first one is outermost.
func Chain(middlewares ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func writeError(w http.ResponseWriter, code int, kind, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(health.ErrorResponse{Error: msg, Kind: kind})
}
