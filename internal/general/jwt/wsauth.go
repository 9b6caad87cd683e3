package jwt

import (
	"errors"
	"strings"

	"smart-fleet/internal/domain/fleet"
)

var ErrBadConnectAuth = errors.New("invalid CONNECT authorization")

type Result struct {
	Claims *Claims
	Raw    string
}

// ValidateConnectAuth checks the Authorization header of a STOMP CONNECT frame.
// An empty header is anonymous and yields a nil result without error.
func ValidateConnectAuth(header string, mgr *Manager, allowedRoles ...fleet.Role) (*Result, error) {
	if strings.TrimSpace(header) == "" {
		return nil, nil
	}

	raw, err := BearerToken(header)
	if err != nil {
		return nil, ErrBadConnectAuth
	}

	// parse and validate token
	_, claims, err := mgr.ParseAndValidate(raw)
	if err != nil {
		return nil, err
	}

	// enforce role-based access control (RBAC)
	if err := RoleAllowed(claims, allowedRoles...); err != nil {
		return nil, err
	}

	return &Result{Claims: claims, Raw: raw}, nil
}
