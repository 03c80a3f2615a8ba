package types

import (
	"fmt"
	"strings"
)

// Role represents the permission level of an operator account.
type Role string

const (
	// RoleAdmin can enroll people, manage the gallery, and read reports.
	RoleAdmin Role = "ADMIN"
	// RoleViewer can read attendance reports only.
	RoleViewer Role = "VIEWER"
)

// AllRoles returns all valid roles
func AllRoles() []Role {
	return []Role{
		RoleAdmin,
		RoleViewer,
	}
}

// IsValid checks if the role is valid
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleViewer:
		return true
	default:
		return false
	}
}

// String returns the string representation of the role
func (r Role) String() string {
	return string(r)
}

// ParseRole parses a string into a Role. Matching is case-insensitive so
// policy files may write "admin" or "ADMIN".
func ParseRole(s string) (Role, error) {
	role := Role(strings.ToUpper(s))
	if !role.IsValid() {
		return "", fmt.Errorf("invalid role: %s", s)
	}
	return role, nil
}
