package authcore

import (
	"context"
	"errors"
	"time"

	"github.com/veyralabs/authcore/session"
	"github.com/veyralabs/authcore/token"
)

// Verify authenticates a request-bearing access token and returns the
// trusted principal. Verification is ordered: envelope and signature
// first, then typed facts, then expiry, then session liveness, and
// finally a fresh account lookup. No fact from the token is acted on
// before the signature has verified.
//
// A successful verification touches the session's LastAccessed time.
// Access tokens minted before a refresh rotation stay valid until
// their own expiry; rotation gates refresh tokens only.
func (e *Engine) Verify(ctx context.Context, accessToken string) (*AuthContext, error) {
	authCtx, _, err := e.verify(ctx, accessToken)
	return authCtx, err
}

// VerifyWithUser is Verify plus the freshly loaded account record, for
// callers that need fields beyond the principal (email, for example)
// without a second repository round trip.
func (e *Engine) VerifyWithUser(ctx context.Context, accessToken string) (*AuthContext, *User, error) {
	return e.verify(ctx, accessToken)
}

func (e *Engine) verify(ctx context.Context, accessToken string) (*AuthContext, *User, error) {
	start := time.Now()

	facts, err := e.verifyTokenFacts(accessToken, token.TypeAccess, start)
	if err != nil {
		e.metrics.Inc(MetricVerifyFailure)
		e.emitAudit(ctx, auditEventVerifyFailure, false, "", "", err, nil)
		return nil, nil, err
	}

	rec, err := e.store.ValidateAccess(facts.SessionID, start)
	if err != nil {
		if errors.Is(err, session.ErrExpired) {
			err = ErrSessionExpired
		} else {
			err = ErrSessionNotFound
		}
		e.metrics.Inc(MetricVerifyFailure)
		e.emitAudit(ctx, auditEventVerifyFailure, false, facts.UserID, facts.SessionID, err, nil)
		return nil, nil, err
	}

	user, err := e.lookupActiveUser(ctx, facts.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) || errors.Is(err, ErrUserInactive) {
			if e.store.Remove(facts.SessionID) {
				e.metrics.Inc(MetricSessionRevoked)
			}
		}
		e.metrics.Inc(MetricVerifyFailure)
		e.emitAudit(ctx, auditEventVerifyFailure, false, facts.UserID, facts.SessionID, err, nil)
		return nil, nil, err
	}

	// Session-scoped grants (API key issuance) override the role table.
	perms := rec.Permissions
	if perms == nil {
		perms = e.resolvePermissions(user.Role)
	}

	e.metrics.Inc(MetricVerifySuccess)
	e.metrics.Observe(time.Since(start))

	return &AuthContext{
		UserID:      user.ID,
		Username:    user.Username,
		Role:        user.Role,
		SessionID:   facts.SessionID,
		Permissions: perms,
	}, user, nil
}
