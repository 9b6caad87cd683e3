package fleet

import (
	"errors"
	"strings"
)

// Role is a user role as returned by the auth endpoints (Spring authority form).
type Role string

const (
	RoleAdmin  Role = "ROLE_ADMIN"
	RoleDriver Role = "ROLE_DRIVER"
)

const rolePrefix = "ROLE_"

var ErrInvalidRole = errors.New("invalid role")

// ParseRole normalizes (uppercases+trims+prefixes) and validates a role string.
// "driver", "DRIVER" and "ROLE_DRIVER" all parse to RoleDriver.
func ParseRole(s string) (Role, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s != "" && !strings.HasPrefix(s, rolePrefix) {
		s = rolePrefix + s
	}
	role := Role(s)
	if role.Valid() {
		return role, nil
	}
	return "", ErrInvalidRole
}

// Valid reports whether role is one of the allowed role constants.
func (role Role) Valid() bool {
	switch role {
	case RoleAdmin, RoleDriver:
		return true
	default:
		return false
	}
}

// String returns the string representation of the Role.
func (role Role) String() string {
	return string(role)
}

// Convenience helpers.
func (role Role) IsAdmin() bool  { return role == RoleAdmin }
func (role Role) IsDriver() bool { return role == RoleDriver }
