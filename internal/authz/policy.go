package authz

import (
	"context"
	"strings"

	"github.com/roach88/resgate/internal/ir"
	"github.com/roach88/resgate/internal/request"
)

// PermissionPolicy allows a request when the actor holds a grant matching
// every permission the request requires.
//
// A request that requires nothing is allowed, even without an actor.
// When both the request and the actor carry a tenant, they must match.
type PermissionPolicy struct{}

// Authorize implements Authorizer.
func (PermissionPolicy) Authorize(_ context.Context, req request.Request, actor *ir.Actor) Decision {
	meta := req.Meta()

	if actor != nil && meta.Tenant != "" && actor.TenantID != "" && actor.TenantID != meta.Tenant {
		return Denied("actor %s belongs to tenant %q, not %q", actor.ID, actor.TenantID, meta.Tenant)
	}

	if len(meta.Requires) == 0 {
		return Allowed()
	}
	if actor == nil {
		return Denied("%s.%s requires an actor", meta.Resource, meta.Target)
	}

	for _, perm := range meta.Requires {
		if !MatchAny(actor.Permissions, perm) {
			return Denied("actor %s lacks permission %q", actor.ID, perm)
		}
	}
	return Allowed()
}

// Match checks if a grant pattern matches a required permission.
//
//	Match("*", "User.read")          // true
//	Match("User.*", "User.read")     // true
//	Match("*.read", "Post.read")     // true
//	Match("User.read", "User.read")  // true
//	Match("User.*", "Post.read")     // false
func Match(pattern, permission string) bool {
	if pattern == permission || pattern == "*" {
		return true
	}

	patternParts := strings.Split(pattern, ".")
	permParts := strings.Split(permission, ".")
	if len(patternParts) != len(permParts) {
		return false
	}

	for i, pp := range patternParts {
		if pp == "*" {
			continue
		}
		if pp != permParts[i] {
			return false
		}
	}
	return true
}

// MatchAny checks if any of the patterns match the required permission.
func MatchAny(patterns []string, permission string) bool {
	for _, pattern := range patterns {
		if Match(pattern, permission) {
			return true
		}
	}
	return false
}
