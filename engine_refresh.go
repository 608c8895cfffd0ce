package authcore

import (
	"context"
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/veyralabs/authcore/session"
	"github.com/veyralabs/authcore/token"
)

// Refresh exchanges a refresh token for a new access/refresh pair and
// advances the session's refresh version by exactly one.
//
// The presented token must carry the session's current version; under
// concurrent refreshes of the same session exactly one caller wins and
// every other caller gets [ErrSessionVersionMismatch]. A version
// mismatch is treated as replay evidence: it is audited, counted, and,
// when SecurityConfig.RevokeSessionOnReplay is set, terminates the
// whole session.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	now := time.Now()

	facts, err := e.verifyTokenFacts(refreshToken, token.TypeRefresh, now)
	if err != nil {
		e.metrics.Inc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, "", "", err, nil)
		return nil, err
	}

	newVersion, err := e.store.ValidateAndBumpRefresh(facts.SessionID, facts.SessionVersion, now)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrVersionMismatch):
			return nil, e.handleReplay(ctx, facts)
		case errors.Is(err, session.ErrExpired):
			err = ErrSessionExpired
		default:
			err = ErrSessionNotFound
		}
		e.metrics.Inc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, facts.UserID, facts.SessionID, err, nil)
		return nil, err
	}

	// Token facts are hints only; the account record is re-read so that
	// deactivation or deletion takes effect on the next rotation.
	user, err := e.lookupActiveUser(ctx, facts.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) || errors.Is(err, ErrUserInactive) {
			e.store.Remove(facts.SessionID)
			e.metrics.Inc(MetricSessionRevoked)
		}
		e.metrics.Inc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, facts.UserID, facts.SessionID, err, nil)
		return nil, err
	}

	rec, ok := e.store.Get(facts.SessionID)
	if !ok {
		e.metrics.Inc(MetricRefreshFailure)
		return nil, ErrSessionNotFound
	}

	access, refresh, err := e.mintPair(user, facts.SessionID, newVersion, false, rec.ExpiresAt, now)
	if err != nil {
		return nil, err
	}

	e.metrics.Inc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, user.ID, facts.SessionID, nil, nil)

	return &AuthResponse{
		User:         user.info(),
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    e.accessTTL(false),
		SessionID:    facts.SessionID,
	}, nil
}

func (e *Engine) handleReplay(ctx context.Context, facts *token.Facts) error {
	e.metrics.Inc(MetricReplayDetected)
	e.metrics.Inc(MetricRefreshFailure)
	log.Printf("authcore: refresh replay detected for session %s (presented version %d)",
		facts.SessionID, facts.SessionVersion)

	revoked := false
	if e.config.Security.RevokeSessionOnReplay {
		if e.store.Remove(facts.SessionID) {
			e.metrics.Inc(MetricSessionRevoked)
			revoked = true
		}
	}

	e.emitAudit(ctx, auditEventRefreshReplayDetected, false, facts.UserID, facts.SessionID,
		ErrSessionVersionMismatch, func() map[string]string {
			m := map[string]string{"presented_version": strconv.FormatUint(uint64(facts.SessionVersion), 10)}
			if revoked {
				m["session_revoked"] = "true"
			}
			return m
		})

	return ErrSessionVersionMismatch
}

// verifyTokenFacts runs the ordered verification pipeline shared by
// Refresh and Verify: envelope and signature, typed facts, expected
// token type, then expiry. Errors are mapped to engine sentinels.
func (e *Engine) verifyTokenFacts(tokenStr string, want token.Type, now time.Time) (*token.Facts, error) {
	facts, err := e.codec.ParseAndVerify(tokenStr)
	if err != nil {
		return nil, mapTokenError(err)
	}
	if facts.Type != want {
		return nil, ErrTokenTypeMismatch
	}
	if err := e.codec.CheckExpiry(facts, now); err != nil {
		return nil, ErrTokenExpired
	}
	return facts, nil
}

func mapTokenError(err error) error {
	switch {
	case errors.Is(err, token.ErrMalformed):
		return ErrTokenMalformed
	case errors.Is(err, token.ErrSignatureInvalid):
		return ErrTokenSignature
	case errors.Is(err, token.ErrExpired):
		return ErrTokenExpired
	default:
		return ErrTokenInvalidClaims
	}
}
