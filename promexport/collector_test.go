package promexport

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/veyralabs/authcore"
)

type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) { return "plain$" + password, nil }
func (plainHasher) Verify(password, hash string) (bool, error) {
	return hash == "plain$"+password, nil
}

type singleUserRepo struct {
	mu   sync.Mutex
	user authcore.User
}

func (r *singleUserRepo) FindByEmail(_ context.Context, email string) (*authcore.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if email != r.user.Email {
		return nil, authcore.ErrUserNotFound
	}
	u := r.user
	return &u, nil
}

func (r *singleUserRepo) FindByID(_ context.Context, id string) (*authcore.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id != r.user.ID {
		return nil, authcore.ErrUserNotFound
	}
	u := r.user
	return &u, nil
}

func (r *singleUserRepo) UpdateLastLogin(context.Context, string) error { return nil }

func newEngine(t *testing.T) *authcore.Engine {
	t.Helper()

	repo := &singleUserRepo{user: authcore.User{
		ID:           "0b2f8e9c-6f1a-4f6e-9a3d-2c7b1d5e8f01",
		Username:     "alice",
		Email:        "alice@example.com",
		PasswordHash: "plain$secret",
		Role:         "user",
		IsActive:     true,
	}}

	cfg := authcore.DefaultConfig()
	cfg.Audit.Enabled = false
	cfg.Session.SweepInterval = 0
	cfg.Metrics.EnableLatencyHistograms = true

	engine, err := authcore.New().
		WithConfig(cfg).
		WithUserRepository(repo).
		WithPasswordHasher(plainHasher{}).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}

func TestCollectorExposesEngineState(t *testing.T) {
	engine := newEngine(t)
	collector := NewCollector(engine)

	resp, err := engine.Login(context.Background(), "alice@example.com", "secret", false)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if _, err := engine.Verify(context.Background(), resp.AccessToken); err != nil {
		t.Fatalf("Verify: %v", err)
	}

	expected := `
# HELP authcore_events_total Authentication events processed, by event type.
# TYPE authcore_events_total counter
authcore_events_total{event="login_success"} 1
authcore_events_total{event="login_failure"} 0
authcore_events_total{event="login_rate_limited"} 0
authcore_events_total{event="session_created"} 1
authcore_events_total{event="refresh_success"} 0
authcore_events_total{event="refresh_failure"} 0
authcore_events_total{event="replay_detected"} 0
authcore_events_total{event="verify_success"} 1
authcore_events_total{event="verify_failure"} 0
authcore_events_total{event="logout"} 0
authcore_events_total{event="session_revoked"} 0
# HELP authcore_sessions Resident session records, including expired ones not yet swept.
# TYPE authcore_sessions gauge
authcore_sessions 1
# HELP authcore_audit_events_dropped_total Audit events shed because the dispatcher buffer was full.
# TYPE authcore_audit_events_dropped_total counter
authcore_audit_events_dropped_total 0
`
	err = testutil.CollectAndCompare(collector, strings.NewReader(expected),
		"authcore_events_total", "authcore_sessions", "authcore_audit_events_dropped_total")
	if err != nil {
		t.Fatalf("CollectAndCompare: %v", err)
	}
}

func TestCollectorEmitsLatencyHistogram(t *testing.T) {
	engine := newEngine(t)
	collector := NewCollector(engine)

	resp, err := engine.Login(context.Background(), "alice@example.com", "secret", false)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if _, err := engine.Verify(context.Background(), resp.AccessToken); err != nil {
		t.Fatalf("Verify: %v", err)
	}

	// 11 event counters, the latency histogram, the dropped counter,
	// and the sessions gauge.
	if got := testutil.CollectAndCount(collector); got != 14 {
		t.Fatalf("collected %d metrics, want 14", got)
	}
}
