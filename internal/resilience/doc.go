// Package resilience tracks per-operation circuit breakers and graded
// emergency levels.
//
// Breakers count failures inside a window and open at Threshold. An open
// breaker closes lazily: once Cooldown has elapsed, readers see it closed
// and the next failure starts a fresh window. A tripped breaker with a
// TriggerSeverity raises the global level for one cooldown.
//
// Emergency levels exist globally and per scope. Medium and above block
// operations. High and Critical need a guardian quorum whose votes are
// bound to a [VoteID] computed from the exact activation parameters, and
// votes are consumed by the activation they enable.
//
// The package never reads the wall clock and never checks roles.
package resilience
