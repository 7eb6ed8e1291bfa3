// Package resilience bounds the work a probe may do.
//
//   - Timeout caps a single store call and abandons it on expiry.
//   - Bulkhead caps concurrent dependency probes so a slow store cannot
//     exhaust connections.
//   - RateLimiter caps the request rate accepted by the probe server.
//
// None of them retry: a probe reports what it observed on its one attempt.
package resilience
