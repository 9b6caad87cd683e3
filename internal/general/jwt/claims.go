package jwt

import (
	"time"

	"smart-fleet/internal/domain/fleet"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// Claims defines our canonical JWT claims payload.
type Claims struct {
	Role     fleet.Role `json:"role"`               // user role for RBAC (ROLE_ADMIN/ROLE_DRIVER)
	Username string     `json:"username,omitempty"` // login name, also shown by the auth status command
	jwtlib.RegisteredClaims
}

// ensure Claims implements jwtlib.Claims interface
var _ jwtlib.Claims = (*Claims)(nil)

// NewUserClaims constructs end-user claims (admin/driver).
func NewUserClaims(userID, username string, role fleet.Role, ttl time.Duration) *Claims {
	now := time.Now().UTC()
	return &Claims{
		Role:     role,
		Username: username,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwtlib.NewNumericDate(now),
		},
	}
}
