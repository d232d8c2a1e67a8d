// Package httpapi serves the goGuard admin and status API over net/http.
//
// Every route requires an operator bearer token. Mutating routes also
// require a token without the read-only scope; the engine then checks the
// operator's roles as for any Go caller. Errors use RFC 7807 problem
// documents.
//
// POST /v1/authorize consumes the caller's rate-limit budget, so it counts
// as a mutating route. It never marks the call as an approved proposal
// execution. Approved calls only happen inside the engine's executor.
package httpapi
