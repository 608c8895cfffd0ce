package authcore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/veyralabs/authcore/internal"
	"github.com/veyralabs/authcore/session"
	"github.com/veyralabs/authcore/token"
)

// Login authenticates a user by email and password and, on success,
// creates a session and issues an access/refresh token pair.
//
// Absent users and wrong passwords both surface as
// [ErrInvalidCredentials] so callers cannot distinguish them. When
// rememberMe is set the access token uses the extended TTL; the
// session lifetime is unaffected.
func (e *Engine) Login(ctx context.Context, email, pass string, rememberMe bool) (*AuthResponse, error) {
	ip := clientIPFromContext(ctx)
	now := time.Now()

	if err := e.limiter.CheckLogin(email, ip, now); err != nil {
		e.metrics.Inc(MetricLoginRateLimited)
		e.emitAudit(ctx, auditEventLoginRateLimited, false, "", "", ErrLoginRateLimited, func() map[string]string {
			return map[string]string{"email": email}
		})
		return nil, ErrLoginRateLimited
	}

	user, err := e.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.limiter.RecordFailure(email, ip, now)
			e.metrics.Inc(MetricLoginFailure)
			e.emitAudit(ctx, auditEventLoginFailure, false, "", "", ErrInvalidCredentials, func() map[string]string {
				return map[string]string{"email": email, "reason": "unknown_user"}
			})
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("%w: find user by email: %v", ErrDatabase, err)
	}

	if !user.IsActive {
		e.metrics.Inc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.ID, "", ErrUserInactive, nil)
		return nil, ErrUserInactive
	}

	ok, err := e.hasher.Verify(pass, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPasswordHash, err)
	}
	if !ok {
		e.limiter.RecordFailure(email, ip, now)
		e.metrics.Inc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.ID, "", ErrInvalidCredentials, nil)
		return nil, ErrInvalidCredentials
	}

	if err := e.repo.UpdateLastLogin(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("%w: update last login: %v", ErrDatabase, err)
	}
	e.limiter.Reset(email, ip)

	resp, err := e.createAuthResponse(user, rememberMe, nil, now)
	if err != nil {
		return nil, err
	}

	e.metrics.Inc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, user.ID, resp.SessionID, nil, func() map[string]string {
		return map[string]string{"remember_me": fmt.Sprintf("%t", rememberMe)}
	})
	return resp, nil
}

// CreateSession issues a token pair for an already-authenticated user,
// bypassing password verification. Intended for flows where identity
// was established elsewhere (OAuth callback, admin impersonation).
func (e *Engine) CreateSession(ctx context.Context, userID string, rememberMe bool) (*AuthResponse, error) {
	user, err := e.lookupActiveUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	resp, err := e.createAuthResponse(user, rememberMe, nil, time.Now())
	if err != nil {
		return nil, err
	}

	e.emitAudit(ctx, auditEventSessionCreated, true, user.ID, resp.SessionID, nil, nil)
	return resp, nil
}

// IssueFromAPIKey creates a session whose permissions are the explicit
// grant rather than the holder's role. The grant is snapshotted into
// the session; later role changes do not widen it.
func (e *Engine) IssueFromAPIKey(ctx context.Context, userID string, permissions []string) (*AuthResponse, error) {
	user, err := e.lookupActiveUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	grant := append([]string(nil), permissions...)
	if grant == nil {
		grant = []string{}
	}

	resp, err := e.createAuthResponse(user, false, grant, time.Now())
	if err != nil {
		return nil, err
	}

	e.emitAudit(ctx, auditEventAPIKeyGrant, true, user.ID, resp.SessionID, nil, func() map[string]string {
		return map[string]string{"grant_size": fmt.Sprintf("%d", len(grant))}
	})
	return resp, nil
}

func (e *Engine) lookupActiveUser(ctx context.Context, userID string) (*User, error) {
	user, err := e.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: find user by id: %v", ErrDatabase, err)
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}
	return user, nil
}

// createAuthResponse registers a fresh session at version 1 and mints
// its first token pair. A non-nil grant overrides role-derived
// permissions for the session's whole lifetime.
func (e *Engine) createAuthResponse(user *User, rememberMe bool, grant []string, now time.Time) (*AuthResponse, error) {
	sid, err := internal.NewSessionID()
	if err != nil {
		return nil, fmt.Errorf("%w: generate session id: %v", ErrKeyManagement, err)
	}
	sessionID := sid.String()
	expiresAt := now.Add(e.config.Token.RefreshTTL)

	e.store.Insert(sessionID, sessionRecord(user, grant, now, expiresAt))
	e.metrics.Inc(MetricSessionCreated)

	access, refresh, err := e.mintPair(user, sessionID, 1, rememberMe, expiresAt, now)
	if err != nil {
		e.store.Remove(sessionID)
		return nil, err
	}

	return &AuthResponse{
		User:         user.info(),
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    e.accessTTL(rememberMe),
		SessionID:    sessionID,
	}, nil
}

func sessionRecord(user *User, grant []string, now, expiresAt time.Time) session.Record {
	return session.Record{
		UserID:         user.ID,
		Username:       user.Username,
		Role:           user.Role,
		Permissions:    grant,
		CreatedAt:      now,
		ExpiresAt:      expiresAt,
		LastAccessed:   now,
		RefreshVersion: 1,
	}
}

// mintPair signs an access/refresh pair at the given session version.
// The refresh token expires with the session itself, never later.
func (e *Engine) mintPair(user *User, sessionID string, version uint32, rememberMe bool, sessionExpiry, now time.Time) (access, refresh string, err error) {
	base := token.Facts{
		UserID:         user.ID,
		Username:       user.Username,
		Role:           user.Role,
		SessionID:      sessionID,
		SessionVersion: version,
		IssuedAt:       now,
	}

	accessFacts := base
	accessFacts.Type = token.TypeAccess
	accessFacts.ExpiresAt = now.Add(time.Duration(e.accessTTL(rememberMe)) * time.Second)

	refreshFacts := base
	refreshFacts.Type = token.TypeRefresh
	refreshFacts.ExpiresAt = sessionExpiry

	access, err = e.codec.Build(accessFacts)
	if err != nil {
		return "", "", fmt.Errorf("%w: sign access token: %v", ErrKeyManagement, err)
	}
	refresh, err = e.codec.Build(refreshFacts)
	if err != nil {
		return "", "", fmt.Errorf("%w: sign refresh token: %v", ErrKeyManagement, err)
	}
	return access, refresh, nil
}
