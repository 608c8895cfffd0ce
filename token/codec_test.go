package token

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/veyralabs/authcore/internal"
	"github.com/veyralabs/authcore/keys"
)

func newTestCodec(t *testing.T, cfg Config) *Codec {
	t.Helper()
	pair, err := keys.LoadOrGenerate(keys.Config{})
	if err != nil {
		t.Fatalf("generate keypair: %v", err)
	}
	codec, err := NewCodec(cfg, pair)
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	return codec
}

func testFacts(t *testing.T) Facts {
	t.Helper()
	sid, err := internal.NewSessionID()
	if err != nil {
		t.Fatalf("session id: %v", err)
	}
	return Facts{
		UserID:         uuid.NewString(),
		Username:       "alice",
		Role:           "editor",
		Type:           TypeAccess,
		SessionID:      sid.String(),
		SessionVersion: 1,
		IssuedAt:       time.Now(),
		ExpiresAt:      time.Now().Add(15 * time.Minute),
	}
}

func TestRoundTrip(t *testing.T) {
	codec := newTestCodec(t, Config{Issuer: "authcore-test"})
	want := testFacts(t)

	tokenStr, err := codec.Build(want)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	got, err := codec.ParseAndVerify(tokenStr)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.UserID != want.UserID ||
		got.Username != want.Username ||
		got.Role != want.Role ||
		got.Type != want.Type ||
		got.SessionID != want.SessionID ||
		got.SessionVersion != want.SessionVersion {
		t.Fatalf("facts mismatch: got %+v want %+v", got, want)
	}
	if !got.ExpiresAt.Equal(want.ExpiresAt.Truncate(time.Second)) {
		t.Fatalf("expiry mismatch: got %v want %v", got.ExpiresAt, want.ExpiresAt)
	}
	if err := codec.CheckExpiry(got, time.Now()); err != nil {
		t.Fatalf("fresh token reported expired: %v", err)
	}
}

func TestTamperedSignatureNeverLeaksFacts(t *testing.T) {
	codec := newTestCodec(t, Config{})
	tokenStr, err := codec.Build(testFacts(t))
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	parts := strings.Split(tokenStr, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token shape: %q", tokenStr)
	}

	sig := []byte(parts[2])
	for i := range sig {
		// 'A' and 'Q' are both canonical in the final base64url
		// position, so the tampered segment always stays decodable.
		flipped := byte('A')
		if sig[i] == 'A' {
			flipped = 'Q'
		}
		tampered := parts[0] + "." + parts[1] + "." + string(sig[:i]) + string(flipped) + string(sig[i+1:])

		facts, err := codec.ParseAndVerify(tampered)
		if facts != nil {
			t.Fatalf("tampered token at byte %d leaked facts", i)
		}
		if !errors.Is(err, ErrSignatureInvalid) {
			t.Fatalf("tampered token at byte %d: got %v, want ErrSignatureInvalid", i, err)
		}
	}
}

func TestVerifyWithWrongKey(t *testing.T) {
	minting := newTestCodec(t, Config{})
	verifying := newTestCodec(t, Config{})

	tokenStr, err := minting.Build(testFacts(t))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if _, err := verifying.ParseAndVerify(tokenStr); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected ErrSignatureInvalid, got %v", err)
	}
}

func TestMalformedEnvelope(t *testing.T) {
	codec := newTestCodec(t, Config{})

	for _, input := range []string{"", "garbage", "a.b", "not/base64!.x.y"} {
		if _, err := codec.ParseAndVerify(input); !errors.Is(err, ErrMalformed) {
			t.Fatalf("input %q: expected ErrMalformed, got %v", input, err)
		}
	}
}

func TestInvalidClaimsRejectedAfterSignature(t *testing.T) {
	codec := newTestCodec(t, Config{})

	cases := map[string]func(*Facts){
		"non-uuid user id": func(f *Facts) { f.UserID = "user-42" },
		"empty username":   func(f *Facts) { f.Username = "" },
		"empty role":       func(f *Facts) { f.Role = "" },
		"bad session id":   func(f *Facts) { f.SessionID = "short" },
		"zero version":     func(f *Facts) { f.SessionVersion = 0 },
	}

	for name, mutate := range cases {
		facts := testFacts(t)
		mutate(&facts)

		tokenStr, err := codec.Build(facts)
		if err != nil {
			t.Fatalf("%s: build: %v", name, err)
		}
		if _, err := codec.ParseAndVerify(tokenStr); !errors.Is(err, ErrInvalidClaims) {
			t.Fatalf("%s: expected ErrInvalidClaims, got %v", name, err)
		}
	}
}

func TestIssuerMismatch(t *testing.T) {
	pair, err := keys.LoadOrGenerate(keys.Config{})
	if err != nil {
		t.Fatalf("generate keypair: %v", err)
	}
	minting, err := NewCodec(Config{Issuer: "other-service"}, pair)
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	verifying, err := NewCodec(Config{Issuer: "authcore"}, pair)
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}

	tokenStr, err := minting.Build(testFacts(t))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if _, err := verifying.ParseAndVerify(tokenStr); !errors.Is(err, ErrInvalidClaims) {
		t.Fatalf("expected ErrInvalidClaims, got %v", err)
	}
}

func TestCheckExpiry(t *testing.T) {
	codec := newTestCodec(t, Config{Leeway: 30 * time.Second})

	facts := testFacts(t)
	facts.ExpiresAt = time.Now().Add(-time.Hour)

	// The signature remains valid; only the expiry predicate fails.
	tokenStr, err := codec.Build(facts)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	parsed, err := codec.ParseAndVerify(tokenStr)
	if err != nil {
		t.Fatalf("parse expired token: %v", err)
	}
	if err := codec.CheckExpiry(parsed, time.Now()); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}

	// Within leeway the token is still accepted.
	parsed.ExpiresAt = time.Now().Add(-10 * time.Second)
	if err := codec.CheckExpiry(parsed, time.Now()); err != nil {
		t.Fatalf("expiry within leeway rejected: %v", err)
	}
}
