// Package jwt issues and verifies operator bearer tokens for the goGuard
// HTTP surface.
//
// A token only names the operator (the "sub" claim). It grants nothing by
// itself: roles are looked up in the engine's membership table on every
// call.
package jwt
