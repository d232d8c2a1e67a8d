// Package keylock provides striped per-key mutual exclusion shared by the
// rate limiter, approval guard, and circuit breakers.
//
// # Architecture boundaries
//
// Callers lock one key at a time. Nested acquisition of two keys is not
// supported and may deadlock when both keys share a stripe.
//
// # What this package must NOT do
//
//   - Hold a global lock across all keys.
//   - Import goGuard or any sibling internal package.
package keylock
