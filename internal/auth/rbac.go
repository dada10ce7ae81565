package auth

import "strings"

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

// NormalizeRole maps unknown roles to the least privileged one.
func NormalizeRole(role string) Role {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case string(RoleAdmin):
		return RoleAdmin
	case string(RoleEditor):
		return RoleEditor
	default:
		return RoleViewer
	}
}

func HasRole(role Role, allowed ...Role) bool {
	current := NormalizeRole(string(role))
	for _, candidate := range allowed {
		if current == candidate {
			return true
		}
	}
	return false
}
