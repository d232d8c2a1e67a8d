// Package goGuard is a security control plane that gates sensitive
// operations behind a rate limiter, a multi-party approval workflow and a
// failure-triggered circuit breaker and emergency level system.
//
// Callers invoke [Engine.Authorize] (or [Engine.AuthorizeContext]) before
// acting and treat a deny as "do not proceed". Engine methods are safe to
// call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Evaluation order
//
// Authorize checks, in order: the pause flag, the global bypass, emergency
// and circuit breaker blocks, the approval requirement, then the rate
// limit. Denials are [Decision] values, not errors.
//
// # Architecture boundaries
//
// goGuard is the public surface. It exposes [Engine], [Builder], [Config]
// and value types. The guards themselves live under internal/ and are
// reached only through Engine methods, which check the actor's role and
// emit audit events.
//
// # Time
//
// The engine reads its clock once per call. There are no background jobs:
// window resets, breaker cooldowns, proposal expiry and emergency
// auto-resolve are evaluated lazily. The audit dispatcher goroutine is the
// only worker, and [Engine.Close] stops it.
package goGuard
