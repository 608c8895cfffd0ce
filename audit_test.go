package authcore

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"
)

func newAuditedEngine(t *testing.T, sink AuditSink) (*Engine, *memoryRepo) {
	t.Helper()

	cfg := testConfig()
	cfg.Audit = AuditConfig{Enabled: true, BufferSize: 64, DropIfFull: true}

	repo := newMemoryRepo()
	engine, err := New().
		WithConfig(cfg).
		WithUserRepository(repo).
		WithPasswordHasher(plainHasher{}).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)

	return engine, repo
}

func waitForEvent(t *testing.T, events <-chan AuditEvent, eventType string) AuditEvent {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-events:
			if ev.EventType == eventType {
				return ev
			}
		case <-deadline:
			t.Fatalf("no %q event within deadline", eventType)
		}
	}
}

func TestAuditLoginEvents(t *testing.T) {
	sink := NewChannelSink(64)
	engine, repo := newAuditedEngine(t, sink)
	user := seedUser(repo, "user")

	engine.Login(context.Background(), user.Email, "wrong", false)
	failure := waitForEvent(t, sink.Events(), auditEventLoginFailure)
	if failure.Success {
		t.Fatal("failure event marked successful")
	}
	if failure.Error != "invalid_credentials" {
		t.Fatalf("Error = %q, want invalid_credentials", failure.Error)
	}

	resp := mustLogin(t, engine, user.Email)
	success := waitForEvent(t, sink.Events(), auditEventLoginSuccess)
	if !success.Success || success.UserID != user.ID || success.SessionID != resp.SessionID {
		t.Fatalf("unexpected success event: %+v", success)
	}
}

func TestAuditCarriesClientIP(t *testing.T) {
	sink := NewChannelSink(64)
	engine, repo := newAuditedEngine(t, sink)
	user := seedUser(repo, "user")

	ctx := WithClientIP(context.Background(), "203.0.113.7")
	if _, err := engine.Login(ctx, user.Email, "correct-horse", false); err != nil {
		t.Fatalf("Login: %v", err)
	}

	ev := waitForEvent(t, sink.Events(), auditEventLoginSuccess)
	if ev.IP != "203.0.113.7" {
		t.Fatalf("IP = %q, want 203.0.113.7", ev.IP)
	}
}

func TestAuditReplayEvent(t *testing.T) {
	sink := NewChannelSink(64)
	engine, repo := newAuditedEngine(t, sink)
	user := seedUser(repo, "user")
	login := mustLogin(t, engine, user.Email)

	if _, err := engine.Refresh(context.Background(), login.RefreshToken); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	engine.Refresh(context.Background(), login.RefreshToken)

	ev := waitForEvent(t, sink.Events(), auditEventRefreshReplayDetected)
	if ev.SessionID != login.SessionID {
		t.Fatalf("SessionID = %q, want %q", ev.SessionID, login.SessionID)
	}
	if ev.Metadata["presented_version"] != "1" {
		t.Fatalf("presented_version = %q, want 1", ev.Metadata["presented_version"])
	}
}

func TestAuditDispatcherDrainsOnClose(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []AuditEvent
	)
	sink := sinkFunc(func(_ context.Context, ev AuditEvent) {
		mu.Lock()
		seen = append(seen, ev)
		mu.Unlock()
	})

	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 32, DropIfFull: true}, sink)
	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), AuditEvent{EventType: auditEventLogoutSession})
	}
	d.Close()

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 10 {
		t.Fatalf("delivered %d events, want 10", len(seen))
	}
}

func TestAuditDispatcherShedsWhenFull(t *testing.T) {
	block := make(chan struct{})
	sink := sinkFunc(func(context.Context, AuditEvent) {
		<-block
	})

	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)
	for i := 0; i < 50; i++ {
		d.Emit(context.Background(), AuditEvent{EventType: "x"})
	}

	if d.Dropped() == 0 {
		t.Fatal("expected drops with a full buffer and a stuck sink")
	}
	close(block)
	d.Close()
}

func TestJSONWriterSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: auditEventLoginSuccess,
		UserID:    "u1",
		Success:   true,
	})

	line := strings.TrimSpace(buf.String())
	var decoded AuditEvent
	if err := json.Unmarshal([]byte(line), &decoded); err != nil {
		t.Fatalf("unmarshal sink output: %v", err)
	}
	if decoded.EventType != auditEventLoginSuccess || decoded.UserID != "u1" {
		t.Fatalf("decoded = %+v", decoded)
	}
}

type sinkFunc func(context.Context, AuditEvent)

func (f sinkFunc) Emit(ctx context.Context, ev AuditEvent) { f(ctx, ev) }
