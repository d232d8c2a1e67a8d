// Package middleware exposes HTTP middleware that resolves the operator
// behind a bearer token before a goGuard admin handler runs.
//
// # Guards
//
//   - [RequireOperator] accepts any valid operator token.
//   - [RequireWriteScope] additionally rejects read-only tokens.
//
// Each guard reads the Authorization header, parses the token, and injects
// the claims into the request context.
//
// # Architecture boundaries
//
// This package only establishes who is calling. Whether that operator may
// perform an action is decided by the engine from its membership table.
package middleware
