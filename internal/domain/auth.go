package domain

import "strings"

// Role is the closed set of roles a caller can hold.
type Role string

const (
	RoleAdmin   Role = "admin"
	RolePartner Role = "partner"
)

// ParseRole normalises a stored or claimed role. Legacy records use "parceiro" for partners.
func ParseRole(raw string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "admin":
		return RoleAdmin, true
	case "partner", "parceiro":
		return RolePartner, true
	default:
		return "", false
	}
}

// IsAdmin reports whether the role bypasses ownership and setup checks.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}

// Valid checks the role is one of the known values.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RolePartner
}
