package authcore

import "errors"

// Credential errors. Surfaced to callers generically ("authentication
// failed"); the distinction exists for server-side logging and tests.
var (
	// ErrInvalidCredentials covers unknown identifiers and password
	// mismatches so the two are indistinguishable to a caller.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserNotFound is returned by password-less entry points that
	// reference a user id directly.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserInactive is returned when the account is deactivated.
	ErrUserInactive = errors.New("user inactive")
	// ErrLoginRateLimited is returned when the login attempt budget is
	// exhausted.
	ErrLoginRateLimited = errors.New("login rate limited")
)

// Token errors. All map to unauthorized at a transport boundary.
var (
	// ErrTokenMalformed is returned when the envelope cannot be decoded.
	ErrTokenMalformed = errors.New("malformed token")
	// ErrTokenSignature is returned when the signature does not verify.
	ErrTokenSignature = errors.New("invalid token signature")
	// ErrTokenInvalidClaims is returned when a signed token carries a
	// missing or malformed fact.
	ErrTokenInvalidClaims = errors.New("invalid token claims")
	// ErrTokenExpired is returned when the token's exp fact is in the past.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenTypeMismatch is returned when an access token is presented
	// to a refresh operation or vice versa.
	ErrTokenTypeMismatch = errors.New("token type mismatch")
)

// Session errors. Version mismatch maps to a conflict, not unauthorized:
// it signals replay of an already-rotated refresh token and is logged as
// a security event.
var (
	// ErrSessionNotFound is returned when the token's session binding
	// resolves to nothing.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExpired is returned when the session record is past its
	// expiry.
	ErrSessionExpired = errors.New("session expired")
	// ErrSessionVersionMismatch is returned when a refresh token's
	// version no longer matches the session's current one.
	ErrSessionVersionMismatch = errors.New("session version mismatch")
)

// Authorization errors.
var (
	// ErrPermissionDenied is returned by AuthContext-level permission
	// checks.
	ErrPermissionDenied = errors.New("permission denied")
)

// System errors. Surfaced to callers as generic internal failures; the
// wrapped detail is for server-side logs only.
var (
	// ErrPasswordHash wraps hashing collaborator failures.
	ErrPasswordHash = errors.New("password hashing failed")
	// ErrKeyManagement wraps unrecoverable signing-key decode or persist
	// failures at startup.
	ErrKeyManagement = errors.New("key management failed")
	// ErrDatabase wraps user repository failures.
	ErrDatabase = errors.New("database error")
	// ErrEngineNotReady is returned when the engine was not built
	// through Builder.Build.
	ErrEngineNotReady = errors.New("engine not initialized")
)
