package authcore

import (
	"context"
	"time"

	"github.com/veyralabs/authcore/token"
)

// Logout terminates a session by ID. Every outstanding token bound to
// the session, access and refresh alike, stops verifying immediately.
// Returns [ErrSessionNotFound] when no live session has that ID.
func (e *Engine) Logout(ctx context.Context, sessionID string) error {
	if !e.store.Remove(sessionID) {
		return ErrSessionNotFound
	}

	e.metrics.Inc(MetricLogout)
	e.emitAudit(ctx, auditEventLogoutSession, true, "", sessionID, nil, nil)
	return nil
}

// LogoutByAccessToken terminates the session a verified access token
// is bound to. The token must carry a valid signature; its expiry is
// not checked, so a just-expired token can still end its own session.
func (e *Engine) LogoutByAccessToken(ctx context.Context, accessToken string) error {
	facts, err := e.codec.ParseAndVerify(accessToken)
	if err != nil {
		return mapTokenError(err)
	}
	if facts.Type != token.TypeAccess {
		return ErrTokenTypeMismatch
	}

	if !e.store.Remove(facts.SessionID) {
		return ErrSessionNotFound
	}

	e.metrics.Inc(MetricLogout)
	e.emitAudit(ctx, auditEventLogoutSession, true, facts.UserID, facts.SessionID, nil, nil)
	return nil
}

// SessionCount returns the number of resident session records,
// including expired records not yet swept.
func (e *Engine) SessionCount() int {
	return e.store.Count()
}

// SessionInfo returns a read-only snapshot of a live session, or
// [ErrSessionNotFound]. It does not touch LastAccessed.
func (e *Engine) SessionInfo(sessionID string) (*SessionInfo, error) {
	rec, ok := e.store.Get(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}

	return &SessionInfo{
		SessionID:      sessionID,
		UserID:         rec.UserID,
		Username:       rec.Username,
		Role:           rec.Role,
		CreatedAt:      rec.CreatedAt,
		ExpiresAt:      rec.ExpiresAt,
		LastAccessed:   rec.LastAccessed,
		RefreshVersion: rec.RefreshVersion,
	}, nil
}

// CleanupExpiredSessions removes expired records immediately and
// returns how many were dropped. The background sweeper does this
// periodically; this is for callers that want a deterministic sweep.
func (e *Engine) CleanupExpiredSessions() int {
	return e.store.CleanupExpired(time.Now())
}
