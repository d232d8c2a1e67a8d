// Package permission provides the role registry, a 64-bit role mask, and the
// member table the engine consults before every administrative mutation.
//
// # Roles and masks
//
// Role names are assigned bit positions by [Registry.Register] in order and
// are stable for the lifetime of the process. A member's roles are one
// [Mask64]; checking a requirement of "any of these roles" is a single AND.
//
// # What this package must NOT do
//
//   - Access Redis, databases, or the network.
//   - Import goGuard or any internal package.
//   - Decide which role an operation requires; the engine owns that mapping.
package permission
