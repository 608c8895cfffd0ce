// Package token mints and verifies signed capability tokens.
//
// A capability token is a compact EdDSA-signed JWT carrying a minimal
// fact set: user identity, token type, expiry, and session binding.
// ParseAndVerify never returns facts from a token whose signature did
// not verify. The signature check strictly precedes any fact being
// trusted, so a forged or corrupted token cannot leak a partial fact.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/veyralabs/authcore/internal"
	"github.com/veyralabs/authcore/keys"
)

// Type discriminates the two capability token kinds. Access tokens
// authenticate requests; refresh tokens are exchanged for new pairs.
type Type string

const (
	// TypeAccess marks short-lived request-authentication tokens.
	TypeAccess Type = "access"
	// TypeRefresh marks rotation tokens bound to a session version.
	TypeRefresh Type = "refresh"
)

var (
	// ErrMalformed is returned when the envelope cannot be decoded.
	ErrMalformed = errors.New("malformed token")
	// ErrSignatureInvalid is returned when the signature does not verify.
	ErrSignatureInvalid = errors.New("invalid token signature")
	// ErrInvalidClaims is returned when a signed token carries a
	// missing or malformed fact.
	ErrInvalidClaims = errors.New("invalid token claims")
	// ErrExpired is returned by CheckExpiry.
	ErrExpired = errors.New("token expired")
)

// Facts is the decoded, verified fact set of a capability token.
type Facts struct {
	UserID   string
	Username string
	Role     string

	Type Type

	SessionID      string
	SessionVersion uint32

	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Config tunes token issuance and verification.
type Config struct {
	Issuer string
	// Leeway tolerates clock skew in CheckExpiry.
	Leeway time.Duration
}

// Codec signs and verifies capability tokens with a fixed keypair.
// It is immutable after construction and safe for concurrent use.
type Codec struct {
	config Config
	pair   *keys.Pair
	parser *jwt.Parser
}

type capabilityClaims struct {
	UID   string `json:"uid"`
	Uname string `json:"uname"`
	Role  string `json:"role"`
	Typ   string `json:"typ"`
	SID   string `json:"sid"`
	SV    uint32 `json:"sv"`
	jwt.RegisteredClaims
}

// NewCodec creates a Codec bound to the given signing keypair.
func NewCodec(cfg Config, pair *keys.Pair) (*Codec, error) {
	if pair == nil || len(pair.Private) == 0 || len(pair.Public) == 0 {
		return nil, errors.New("token codec requires a complete keypair")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}

	// Expiry is evaluated by CheckExpiry as an explicit separate step,
	// so registered-claim validation is disabled here. The signature is
	// still verified on every parse.
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		jwt.WithoutClaimsValidation(),
	)

	return &Codec{config: cfg, pair: pair, parser: parser}, nil
}

// Build encodes and signs the fact set. Failures are internal (signing
// primitive or invalid input facts), never caller-correctable.
func (c *Codec) Build(f Facts) (string, error) {
	if f.Type != TypeAccess && f.Type != TypeRefresh {
		return "", fmt.Errorf("unknown token type %q", f.Type)
	}
	if f.ExpiresAt.IsZero() {
		return "", errors.New("token facts missing expiry")
	}

	claims := capabilityClaims{
		UID:   f.UserID,
		Uname: f.Username,
		Role:  f.Role,
		Typ:   string(f.Type),
		SID:   f.SessionID,
		SV:    f.SessionVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(f.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(f.IssuedAt),
			Issuer:    c.config.Issuer,
		},
	}
	if claims.IssuedAt.IsZero() {
		claims.IssuedAt = jwt.NewNumericDate(time.Now())
	}

	return jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(c.pair.Private)
}

// ParseAndVerify decodes a token in strict order: envelope, signature,
// then fact consistency. On any failure it returns nil facts.
func (c *Codec) ParseAndVerify(tokenStr string) (*Facts, error) {
	parsed, err := c.parser.ParseWithClaims(tokenStr, &capabilityClaims{}, func(t *jwt.Token) (interface{}, error) {
		return c.pair.Public, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, ErrMalformed
		case errors.Is(err, jwt.ErrTokenSignatureInvalid),
			errors.Is(err, jwt.ErrTokenUnverifiable):
			return nil, ErrSignatureInvalid
		default:
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	}

	claims, ok := parsed.Claims.(*capabilityClaims)
	if !ok || !parsed.Valid {
		return nil, ErrSignatureInvalid
	}

	return factsFromClaims(claims, c.config.Issuer)
}

// CheckExpiry evaluates the exp fact against now, honoring the
// configured leeway.
func (c *Codec) CheckExpiry(f *Facts, now time.Time) error {
	if f == nil || f.ExpiresAt.IsZero() {
		return ErrExpired
	}
	if now.After(f.ExpiresAt.Add(c.config.Leeway)) {
		return ErrExpired
	}
	return nil
}

func factsFromClaims(claims *capabilityClaims, wantIssuer string) (*Facts, error) {
	if _, err := uuid.Parse(claims.UID); err != nil {
		return nil, fmt.Errorf("%w: user id", ErrInvalidClaims)
	}
	if claims.Uname == "" {
		return nil, fmt.Errorf("%w: username", ErrInvalidClaims)
	}
	if claims.Role == "" {
		return nil, fmt.Errorf("%w: role", ErrInvalidClaims)
	}

	typ := Type(claims.Typ)
	if typ != TypeAccess && typ != TypeRefresh {
		return nil, fmt.Errorf("%w: token type", ErrInvalidClaims)
	}

	if _, err := internal.ParseSessionID(claims.SID); err != nil {
		return nil, fmt.Errorf("%w: session id", ErrInvalidClaims)
	}
	if claims.SV == 0 {
		return nil, fmt.Errorf("%w: session version", ErrInvalidClaims)
	}
	if claims.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: expiry", ErrInvalidClaims)
	}
	if wantIssuer != "" && claims.Issuer != wantIssuer {
		return nil, fmt.Errorf("%w: issuer", ErrInvalidClaims)
	}

	f := &Facts{
		UserID:         claims.UID,
		Username:       claims.Uname,
		Role:           claims.Role,
		Type:           typ,
		SessionID:      claims.SID,
		SessionVersion: claims.SV,
		ExpiresAt:      claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		f.IssuedAt = claims.IssuedAt.Time
	}
	return f, nil
}
