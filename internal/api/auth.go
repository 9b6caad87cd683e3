package api

import (
	"context"
	"net/http"

	"smart-fleet/internal/domain/fleet"
	"smart-fleet/internal/general/contracts"
)

// Login exchanges credentials for a token and user descriptor.
func (c *Client) Login(ctx context.Context, creds fleet.Credentials) (*fleet.AuthResponse, error) {
	var out fleet.AuthResponse
	if err := c.do(ctx, http.MethodPost, contracts.PathAuthLogin, nil, creds, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Register creates a driver account and returns its token.
func (c *Client) Register(ctx context.Context, reg fleet.Registration) (*fleet.AuthResponse, error) {
	var out fleet.AuthResponse
	if err := c.do(ctx, http.MethodPost, contracts.PathAuthRegister, nil, reg, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health returns the backend's liveness text.
func (c *Client) Health(ctx context.Context) (string, error) {
	var out string
	if err := c.do(ctx, http.MethodGet, contracts.PathAuthHealth, nil, nil, &out); err != nil {
		return "", err
	}
	return out, nil
}
