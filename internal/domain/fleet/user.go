package fleet

import (
	"errors"
	"strings"
)

// User is the descriptor persisted next to the token.
type User struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
}

// Credentials is the login request body.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Registration is the register request body (drivers only).
type Registration struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	License  string `json:"license"`
}

// AuthResponse is returned by login and register.
type AuthResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
}

var (
	ErrUsernameRequired = errors.New("username is required")
	ErrPasswordRequired = errors.New("password is required")
)

// Validate checks that both fields are present.
func (creds Credentials) Validate() error {
	if strings.TrimSpace(creds.Username) == "" {
		return ErrUsernameRequired
	}
	if creds.Password == "" {
		return ErrPasswordRequired
	}
	return nil
}

// Validate checks the minimal fields of a registration.
func (reg Registration) Validate() error {
	return Credentials{Username: reg.Username, Password: reg.Password}.Validate()
}

// User extracts the user descriptor from an auth response.
func (resp AuthResponse) User() User {
	return User{Username: resp.Username, Email: resp.Email, Role: resp.Role}
}
