// Package permission implements the static role-to-permission model used by
// estateAuth authorization checks.
//
// Six roles ([RoleSuperAdmin] through [RoleTenant]) each map to a permission
// set. An [Evaluator] compiles a [Table] into a frozen [Registry] and one
// [Mask64] per role, so every query is a map lookup and a bit test.
//
// # Architecture boundaries
//
// This package is a pure in-memory data structure with no I/O.
//
// # What this package must NOT do
//
//   - Access Redis, databases, or the network.
//   - Import estateAuth, jwt, or session.
//   - Grant anything to a role that is not in the table.
package permission
