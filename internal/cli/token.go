package cli

import (
	"fmt"
	"time"

	"smart-fleet/internal/domain/fleet"
	"smart-fleet/internal/general/jwt"
)

// GenerateUserToken mints a devserver JWT for a user.
//
// Typical use (dev-only):
//
//	token, _, err := cli.GenerateUserToken(secret, 2*time.Hour, "1", "admin", "ADMIN")
//
// Keep this package dev/internal only. Do not call it from production code paths.
func GenerateUserToken(secret string, ttl time.Duration, userID, username, roleStr string) (string, jwt.Claims, error) {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}

	// parse and validate the role
	role, err := fleet.ParseRole(roleStr)
	if err != nil {
		return "", jwt.Claims{}, fmt.Errorf("invalid role %q: %w", roleStr, err)
	}

	mgr := jwt.NewManager(secret, ttl)

	token, claims, err := mgr.IssueUserToken(userID, username, role)
	if err != nil {
		return "", jwt.Claims{}, fmt.Errorf("issue token: %w", err)
	}

	return token, *claims, nil
}
