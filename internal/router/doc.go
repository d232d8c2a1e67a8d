// Package router holds the per-operation requirement table and the ordered
// evaluation that turns guard answers into one allow or deny decision.
//
// Order is fixed: paused, bypass, blocked, approval_required, then the rate
// limit. Pause wins over bypass. Operations without an entry still pass the
// emergency and breaker check.
package router
