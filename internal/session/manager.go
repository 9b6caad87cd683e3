package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"smart-fleet/internal/api"
	"smart-fleet/internal/domain/fleet"
	"smart-fleet/internal/general/contracts"
	"smart-fleet/internal/general/jwt"
	"smart-fleet/internal/general/logger"
)

// Authenticator performs the remote credential exchange.
type Authenticator interface {
	Login(ctx context.Context, creds fleet.Credentials) (*fleet.AuthResponse, error)
	Register(ctx context.Context, reg fleet.Registration) (*fleet.AuthResponse, error)
}

var ErrEmptyToken = errors.New("backend returned an empty token")

// Manager owns the bearer token and user descriptor. It is the accessor's
// token source, so a login is visible to every following call.
type Manager struct {
	store Store
	auth  Authenticator
	log   *logger.Logger

	mu    sync.RWMutex
	token string
	user  *fleet.User
}

// NewManager restores any persisted session from store.
func NewManager(ctx context.Context, store Store, auth Authenticator, log *logger.Logger) (*Manager, error) {
	if log == nil {
		log = logger.Discard()
	}
	m := &Manager{store: store, auth: auth, log: log}

	tok, err := store.Get(ctx, contracts.SessionKeyToken)
	switch {
	case errors.Is(err, ErrNotFound):
		return m, nil
	case err != nil:
		return nil, fmt.Errorf("restore session: %w", err)
	}
	m.token = tok

	raw, err := store.Get(ctx, contracts.SessionKeyUser)
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("restore session: %w", err)
	default:
		var u fleet.User
		if err := json.Unmarshal([]byte(raw), &u); err != nil {
			m.log.Error(ctx, "session_user_corrupt", "ignoring unreadable user entry", err, nil)
		} else {
			m.user = &u
		}
	}
	return m, nil
}

// Login exchanges credentials for a token. On failure nothing changes.
func (m *Manager) Login(ctx context.Context, creds fleet.Credentials) (*fleet.User, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	resp, err := m.auth.Login(ctx, creds)
	if err != nil {
		m.log.Error(ctx, "login_failed", "login rejected", err, map[string]any{"username": creds.Username})
		return nil, err
	}
	return m.establish(ctx, resp)
}

// Register creates a driver account and logs it in. On failure nothing changes.
func (m *Manager) Register(ctx context.Context, reg fleet.Registration) (*fleet.User, error) {
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	resp, err := m.auth.Register(ctx, reg)
	if err != nil {
		m.log.Error(ctx, "register_failed", "registration rejected", err, map[string]any{"username": reg.Username})
		return nil, err
	}
	return m.establish(ctx, resp)
}

func (m *Manager) establish(ctx context.Context, resp *fleet.AuthResponse) (*fleet.User, error) {
	if api.SanitizeToken(resp.Token) == "" {
		return nil, ErrEmptyToken
	}
	u := resp.User()
	b, err := json.Marshal(u)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// persist first so a failed write leaves the previous session intact
	if err := m.store.Set(ctx, contracts.SessionKeyToken, resp.Token); err != nil {
		return nil, fmt.Errorf("persist token: %w", err)
	}
	if err := m.store.Set(ctx, contracts.SessionKeyUser, string(b)); err != nil {
		m.restoreToken(ctx)
		return nil, fmt.Errorf("persist user: %w", err)
	}
	m.token = resp.Token
	m.user = &u

	m.log.Info(ctx, "login_succeeded", "session established", map[string]any{
		"username": u.Username, "role": u.Role,
	})
	return &u, nil
}

// restoreToken puts the previous token back after a half-written login so
// the store never pairs a new token with the old user. Caller holds m.mu.
func (m *Manager) restoreToken(ctx context.Context) {
	var err error
	if m.token == "" {
		err = m.store.Delete(ctx, contracts.SessionKeyToken)
	} else {
		err = m.store.Set(ctx, contracts.SessionKeyToken, m.token)
	}
	if err != nil {
		m.log.Error(ctx, "session_rollback_failed", "could not restore the previous token", err, nil)
	}
}

// Logout clears the persisted keys and in-memory state unconditionally.
// A store error is returned after the in-memory state is gone.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	m.token = ""
	m.user = nil
	m.mu.Unlock()

	if err := m.store.Delete(ctx, contracts.SessionKeyToken, contracts.SessionKeyUser); err != nil {
		m.log.Error(ctx, "logout_store_failed", "could not clear persisted session", err, nil)
		return err
	}
	m.log.Info(ctx, "logout", "session cleared", nil)
	return nil
}

// Token implements api.TokenSource.
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

func (m *Manager) IsAuthenticated() bool {
	return m.Token() != ""
}

// User returns a copy of the user descriptor, or nil.
func (m *Manager) User() *fleet.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return nil
	}
	u := *m.user
	return &u
}

// Role returns the normalized role, or "" when unknown.
func (m *Manager) Role() fleet.Role {
	u := m.User()
	if u == nil {
		return ""
	}
	role, err := fleet.ParseRole(string(u.Role))
	if err != nil {
		return ""
	}
	return role
}

func (m *Manager) Username() string {
	if u := m.User(); u != nil {
		return u.Username
	}
	return ""
}

// ExpiresAt reports the exp claim when the token is a JWT. Display only; the
// session is never ended because of it.
func (m *Manager) ExpiresAt() (time.Time, bool) {
	tok := api.SanitizeToken(m.Token())
	if tok == "" {
		return time.Time{}, false
	}
	claims, err := jwt.ParseUnverified(tok)
	if err != nil || claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

var _ api.TokenSource = (*Manager)(nil)
