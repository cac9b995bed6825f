// Package authz is the authorization gate run before a request executes.
//
// An Authorizer returns a Decision with one of three effects. Allow lets the
// request through, Deny refuses it, and Error means the policy itself could
// not decide. The boolean helpers collapse Deny and Error into false; the
// tagged helpers keep them apart so callers can tell "not allowed" from
// "could not check".
//
// PermissionPolicy is the built-in policy: a request lists the permissions
// it requires and the actor must hold a matching grant for each of them.
// Grants support wildcards:
//
//	"*"            matches every permission
//	"User.*"       matches every permission on User
//	"*.read"       matches read on every resource
//	"User.read"    matches exactly
package authz
