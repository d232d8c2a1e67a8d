// Package approval implements multi-party approval of sensitive actions:
// proposals collect signer approvals, wait out a minimum delay, and run at
// most once through an [Executor].
//
// # Lifecycle
//
//	Pending -> Executed | Cancelled | Expired
//
// Expired is derived (now-CreatedAt > Lifetime) and never written. Executed
// and cancelled proposals are immutable.
//
// # Emergency path
//
// While emergency mode is on, [Guard.EmergencyExecute] runs the executor
// without a proposal and records the action as an executed proposal with
// Emergency set.
//
// # What this package must NOT do
//
//   - Check caller roles; the engine authorizes signers before calling in.
//   - Read the wall clock; every call receives now.
package approval
