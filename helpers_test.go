package authcore

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

// plainHasher keeps tests fast; the argon2id hasher has its own tests.
type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) {
	return "plain$" + password, nil
}

func (plainHasher) Verify(password, hash string) (bool, error) {
	return hash == "plain$"+password, nil
}

type memoryRepo struct {
	mu      sync.Mutex
	byID    map[string]*User
	failAll bool
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{byID: make(map[string]*User)}
}

func (r *memoryRepo) add(u User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[u.ID] = &u
}

func (r *memoryRepo) setActive(id string, active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.byID[id]; ok {
		u.IsActive = active
	}
}

func (r *memoryRepo) FindByEmail(_ context.Context, email string) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAll {
		return nil, fmt.Errorf("repo offline")
	}
	for _, u := range r.byID {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, ErrUserNotFound
}

func (r *memoryRepo) FindByID(_ context.Context, id string) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAll {
		return nil, fmt.Errorf("repo offline")
	}
	u, ok := r.byID[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

func (r *memoryRepo) UpdateLastLogin(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAll {
		return fmt.Errorf("repo offline")
	}
	if _, ok := r.byID[id]; !ok {
		return ErrUserNotFound
	}
	return nil
}

func seedUser(repo *memoryRepo, role string) User {
	u := User{
		ID:           uuid.NewString(),
		Username:     "alice",
		Email:        "alice@example.com",
		PasswordHash: "plain$correct-horse",
		Role:         role,
		IsActive:     true,
	}
	repo.add(u)
	return u
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Token.AccessTTL = time.Minute
	cfg.Token.RefreshTTL = time.Hour
	cfg.Token.RememberMeAccessTTL = 2 * time.Hour
	cfg.Token.Leeway = 0
	cfg.Session.SweepInterval = 0
	cfg.Security.MaxLoginAttempts = 3
	cfg.Security.LoginCooldown = time.Minute
	cfg.Audit.Enabled = false
	cfg.Metrics.EnableLatencyHistograms = true
	return cfg
}

func newTestEngine(t *testing.T, mutate func(*Config)) (*Engine, *memoryRepo) {
	t.Helper()

	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	repo := newMemoryRepo()
	engine, err := New().
		WithConfig(cfg).
		WithUserRepository(repo).
		WithPasswordHasher(plainHasher{}).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)

	return engine, repo
}

func mustLogin(t *testing.T, engine *Engine, email string) *AuthResponse {
	t.Helper()
	resp, err := engine.Login(context.Background(), email, "correct-horse", false)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	return resp
}
