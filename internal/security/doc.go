// Package security derives the posture report returned by
// Engine.SecurityReport from raw engine state.
//
// # What this package must NOT do
//
//   - Read engine state itself; the engine gathers [ReportInput].
package security
