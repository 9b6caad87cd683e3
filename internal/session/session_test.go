package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"smart-fleet/internal/domain/fleet"
	"smart-fleet/internal/general/contracts"
	"smart-fleet/internal/general/jwt"

	"github.com/redis/go-redis/v9"
)

type fakeAuth struct {
	resp *fleet.AuthResponse
	err  error
}

func (f *fakeAuth) Login(context.Context, fleet.Credentials) (*fleet.AuthResponse, error) {
	return f.resp, f.err
}

func (f *fakeAuth) Register(context.Context, fleet.Registration) (*fleet.AuthResponse, error) {
	return f.resp, f.err
}

func TestLoginPersistsAndExposesToken(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	auth := &fakeAuth{resp: &fleet.AuthResponse{Token: "tok-1", Username: "admin", Email: "a@x", Role: fleet.RoleAdmin}}

	m, err := NewManager(ctx, store, auth, nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if m.IsAuthenticated() {
		t.Fatalf("fresh manager must not be authenticated")
	}

	u, err := m.Login(ctx, fleet.Credentials{Username: "admin", Password: "admin"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if u.Username != "admin" || m.Token() != "tok-1" || m.Role() != fleet.RoleAdmin {
		t.Fatalf("state not updated: %+v token=%q role=%q", u, m.Token(), m.Role())
	}
	if v, _ := store.Get(ctx, contracts.SessionKeyToken); v != "tok-1" {
		t.Fatalf("token not persisted: %q", v)
	}
	if v, _ := store.Get(ctx, contracts.SessionKeyUser); v != `{"username":"admin","email":"a@x","role":"ROLE_ADMIN"}` {
		t.Fatalf("user not persisted: %q", v)
	}

	restored, err := NewManager(ctx, store, auth, nil)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if restored.Username() != "admin" || !restored.IsAuthenticated() {
		t.Fatalf("session not restored")
	}
}

func TestLoginFailureChangesNothing(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	_ = store.Set(ctx, contracts.SessionKeyToken, "old")
	_ = store.Set(ctx, contracts.SessionKeyUser, `{"username":"driver1","role":"ROLE_DRIVER"}`)

	boom := errors.New("401")
	m, _ := NewManager(ctx, store, &fakeAuth{err: boom}, nil)
	if _, err := m.Login(ctx, fleet.Credentials{Username: "x", Password: "y"}); !errors.Is(err, boom) {
		t.Fatalf("want login error, got %v", err)
	}
	if m.Token() != "old" || m.Username() != "driver1" {
		t.Fatalf("state changed on failure")
	}
	if v, _ := store.Get(ctx, contracts.SessionKeyToken); v != "old" {
		t.Fatalf("persisted token changed on failure")
	}

	if _, err := m.Login(ctx, fleet.Credentials{Username: "x"}); !errors.Is(err, fleet.ErrPasswordRequired) {
		t.Fatalf("want validation error, got %v", err)
	}
}

// failingStore rejects writes to one key.
type failingStore struct {
	*MemoryStore
	key string
}

func (s *failingStore) Set(ctx context.Context, key, value string) error {
	if key == s.key {
		return errors.New("disk full")
	}
	return s.MemoryStore.Set(ctx, key, value)
}

func TestHalfWrittenLoginRestoresPreviousSession(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	_ = mem.Set(ctx, contracts.SessionKeyToken, "OLD")
	_ = mem.Set(ctx, contracts.SessionKeyUser, `{"username":"driver1","role":"ROLE_DRIVER"}`)
	store := &failingStore{MemoryStore: mem, key: contracts.SessionKeyUser}

	auth := &fakeAuth{resp: &fleet.AuthResponse{Token: "NEW", Username: "admin", Role: fleet.RoleAdmin}}
	m, err := NewManager(ctx, store, auth, nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if _, err := m.Login(ctx, fleet.Credentials{Username: "admin", Password: "admin"}); err == nil {
		t.Fatalf("login should fail when the user entry cannot be written")
	}
	if m.Token() != "OLD" || m.Username() != "driver1" {
		t.Fatalf("in-memory session changed: token=%q user=%q", m.Token(), m.Username())
	}

	restored, err := NewManager(ctx, mem, auth, nil)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if restored.Token() != "OLD" || restored.Role() != fleet.RoleDriver {
		t.Fatalf("store left mixed session: token=%q role=%q", restored.Token(), restored.Role())
	}
}

func TestHalfWrittenFirstLoginLeavesNoToken(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	store := &failingStore{MemoryStore: mem, key: contracts.SessionKeyUser}
	auth := &fakeAuth{resp: &fleet.AuthResponse{Token: "NEW", Username: "admin", Role: fleet.RoleAdmin}}

	m, _ := NewManager(ctx, store, auth, nil)
	if _, err := m.Login(ctx, fleet.Credentials{Username: "admin", Password: "admin"}); err == nil {
		t.Fatalf("login should fail")
	}
	if _, err := mem.Get(ctx, contracts.SessionKeyToken); !errors.Is(err, ErrNotFound) {
		t.Fatalf("token persisted without a user: %v", err)
	}
	if m.IsAuthenticated() {
		t.Fatalf("manager authenticated after failed login")
	}
}

func TestLogoutClearsEverything(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	m, _ := NewManager(ctx, store, &fakeAuth{resp: &fleet.AuthResponse{Token: "t", Username: "d", Role: fleet.RoleDriver}}, nil)
	if _, err := m.Register(ctx, fleet.Registration{Username: "d", Password: "p"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := m.Logout(ctx); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if m.IsAuthenticated() || m.User() != nil || m.Role() != "" {
		t.Fatalf("in-memory state survived logout")
	}
	if _, err := store.Get(ctx, contracts.SessionKeyToken); !errors.Is(err, ErrNotFound) {
		t.Fatalf("token key survived logout")
	}
}

func TestCorruptUserEntryTreatedAsAbsent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	_ = store.Set(ctx, contracts.SessionKeyToken, "t")
	_ = store.Set(ctx, contracts.SessionKeyUser, "{not json")

	m, err := NewManager(ctx, store, &fakeAuth{}, nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if !m.IsAuthenticated() || m.User() != nil {
		t.Fatalf("want token kept and user dropped")
	}
}

func TestRoleNormalized(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	_ = store.Set(ctx, contracts.SessionKeyToken, "t")
	_ = store.Set(ctx, contracts.SessionKeyUser, `{"username":"d","role":"driver"}`)
	m, _ := NewManager(ctx, store, &fakeAuth{}, nil)
	if m.Role() != fleet.RoleDriver {
		t.Fatalf("Role = %q", m.Role())
	}
}

func TestExpiresAt(t *testing.T) {
	ctx := context.Background()
	mgr := jwt.NewManager("secret", time.Hour)
	tok, claims, err := mgr.IssueUserToken("1", "admin", fleet.RoleAdmin)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	store := NewMemoryStore()
	_ = store.Set(ctx, contracts.SessionKeyToken, `["`+tok+`"]`)
	m, _ := NewManager(ctx, store, &fakeAuth{}, nil)
	exp, ok := m.ExpiresAt()
	if !ok || !exp.Equal(claims.ExpiresAt.Time) {
		t.Fatalf("ExpiresAt = %v %v, want %v", exp, ok, claims.ExpiresAt.Time)
	}

	_ = store.Set(ctx, contracts.SessionKeyToken, "opaque")
	m, _ = NewManager(ctx, store, &fakeAuth{}, nil)
	if _, ok := m.ExpiresAt(); ok {
		t.Fatalf("opaque token must not report expiry")
	}
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	s := NewFileStore(path)

	if _, err := s.Get(ctx, "token"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("empty store: %v", err)
	}
	if err := s.Set(ctx, "token", "abc"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("file mode = %v", info.Mode().Perm())
	}
	if v, err := NewFileStore(path).Get(ctx, "token"); err != nil || v != "abc" {
		t.Fatalf("reopen Get = %q %v", v, err)
	}
	if err := s.Delete(ctx, "token", "user"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("empty session file should be removed")
	}
}

func TestFileStoreCorruptFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.json")
	if err := os.WriteFile(path, []byte("garbage"), 0o600); err != nil {
		t.Fatal(err)
	}
	s := NewFileStore(path)
	if _, err := s.Get(ctx, "token"); err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("corrupt file should surface a decode error, got %v", err)
	}
	if err := s.Set(ctx, "token", "fresh"); err != nil {
		t.Fatalf("Set over corrupt file: %v", err)
	}
	if v, _ := s.Get(ctx, "token"); v != "fresh" {
		t.Fatalf("Get = %q", v)
	}
}

func TestRedisStoreUnreachable(t *testing.T) {
	ctx := context.Background()
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 200 * time.Millisecond, MaxRetries: -1})
	s := NewRedisStoreFromClient(rdb, "smartfleet:session:")
	defer s.Close()

	if s.key("token") != "smartfleet:session:token" {
		t.Fatalf("key = %q", s.key("token"))
	}
	if _, err := s.Get(ctx, "token"); err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("unreachable redis must be a hard error, got %v", err)
	}
	if _, err := NewRedisStore(ctx, "127.0.0.1:1", "", 0, "p:"); err == nil {
		t.Fatalf("NewRedisStore should fail the ping")
	}
}
