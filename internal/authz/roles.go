package authz

import "strings"

const (
	RoleBurner = "burner"
	RoleLeader = "leader"
	RoleAdmin  = "admin"
)

func IsKnown(role string) bool {
	switch normalize(role) {
	case RoleBurner, RoleLeader, RoleAdmin:
		return true
	}
	return false
}

// CanSelfServiceReset reports whether an account with role may reset its own
// password by email code. Leaders go through an administrator.
func CanSelfServiceReset(role string) bool {
	return normalize(role) != RoleLeader
}

func normalize(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}
