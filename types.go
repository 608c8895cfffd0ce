package authcore

import (
	"context"
	"time"
)

// User is the account record returned by [UserRepository]. The engine
// never persists it; the repository remains the source of truth and is
// re-consulted on every refresh and verification.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Role         string
	IsActive     bool
}

// UserInfo is the caller-safe subset of [User] embedded in an
// [AuthResponse]. It never carries the password hash.
type UserInfo struct {
	ID       string
	Username string
	Email    string
	Role     string
}

func (u *User) info() UserInfo {
	return UserInfo{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		Role:     u.Role,
	}
}

// UserRepository is the interface callers implement to connect the
// engine to their user database. Implementations return
// [ErrUserNotFound] for absent users; any other error is treated as a
// database failure. The engine performs no retries.
type UserRepository interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id string) (*User, error)
	UpdateLastLogin(ctx context.Context, id string) error
}

// PasswordHasher is the credential-hashing collaborator. The bundled
// argon2id hasher is wired when none is supplied to the [Builder].
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) (bool, error)
}

// AuthResponse is returned by the token-issuing entry points.
// ExpiresIn is the access token lifetime in seconds.
type AuthResponse struct {
	User         UserInfo
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
	SessionID    string
}

// AuthContext is the trusted principal derived from a successfully
// verified access token. It is ephemeral and never persisted.
type AuthContext struct {
	UserID      string
	Username    string
	Role        string
	SessionID   string
	Permissions []string
}

// HasPermission reports whether the principal holds perm.
func (a *AuthContext) HasPermission(perm string) bool {
	if a == nil {
		return false
	}
	for _, p := range a.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// Require returns [ErrPermissionDenied] unless the principal holds perm.
func (a *AuthContext) Require(perm string) error {
	if !a.HasPermission(perm) {
		return ErrPermissionDenied
	}
	return nil
}

// SessionInfo is a read-only introspection snapshot of a live session.
type SessionInfo struct {
	SessionID      string
	UserID         string
	Username       string
	Role           string
	CreatedAt      time.Time
	ExpiresAt      time.Time
	LastAccessed   time.Time
	RefreshVersion uint32
}
