// Package internal holds the goGuard components behind the root Engine.
//
// # Sub-packages
//
//   - approval: proposals, multisig approval and the execution delay
//   - audit: async event dispatch with a never-dropped emergency channel
//   - keylock: striped per-key mutexes
//   - metrics: lock-free counters and the authorize latency histogram
//   - ratelimit: fixed, sliding and token bucket limits over memory or Redis
//   - resilience: circuit breakers, emergency levels and guardian consensus
//   - router: per-operation requirements and the authorize evaluation order
//   - security: the read-only posture report
//
// Nothing here appears in the public API except through root aliases.
package internal
