package authcore

import (
	"errors"
	"time"
)

// Config is the full engine configuration. Zero values are filled from
// defaultConfig by the [Builder]; Build validates the result.
type Config struct {
	Token    TokenConfig
	Keys     KeysConfig
	Session  SessionConfig
	Password PasswordConfig
	Security SecurityConfig
	Roles    RolesConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig tunes capability token issuance.
type TokenConfig struct {
	// AccessTTL is the default access token lifetime.
	AccessTTL time.Duration
	// RefreshTTL is the refresh token lifetime and, transitively, the
	// session lifetime: a session lives exactly as long as its refresh
	// chain can be extended.
	RefreshTTL time.Duration
	// RememberMeAccessTTL replaces AccessTTL when a login sets
	// remember-me. It never affects the refresh TTL.
	RememberMeAccessTTL time.Duration
	// Leeway tolerates clock skew during expiry checks.
	Leeway time.Duration
	// Issuer, when set, is embedded and enforced on verification.
	Issuer string
}

/*
====================================
KEYS CONFIG
====================================
*/

// KeysConfig selects the signing key source, in precedence order:
// explicit material, key file, ephemeral.
type KeysConfig struct {
	// PrivateKey is raw Ed25519 material: 64-byte key, 32-byte seed, or
	// PEM-encoded PKCS#8.
	PrivateKey []byte
	// File is the path of a PEM key file, generated on first start when
	// absent.
	File string
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig tunes the in-memory session store.
type SessionConfig struct {
	// SweepInterval is the period of the background expiry sweep.
	// Zero disables the sweeper; expired records are still removed
	// opportunistically when touched.
	SweepInterval time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds argon2id parameters for the bundled hasher.
// Ignored when a custom [PasswordHasher] is supplied. Memory is in KiB.
type PasswordConfig struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig tunes abuse handling.
type SecurityConfig struct {
	// MaxLoginAttempts caps failed logins per identifier (and per IP
	// when EnableIPThrottle is set) inside LoginCooldown. Zero disables
	// login rate limiting.
	MaxLoginAttempts int
	LoginCooldown    time.Duration
	EnableIPThrottle bool

	// RevokeSessionOnReplay terminates the whole session when a
	// refresh version mismatch is detected, instead of only rejecting
	// the presented token. Off by default so concurrent refresh losers
	// observe the mismatch error rather than a vanished session.
	RevokeSessionOnReplay bool
}

/*
====================================
ROLES CONFIG
====================================
*/

// RolesConfig maps roles to permission lists. Lookup is total: an
// unknown role resolves to DefaultPermissions and logs a warning.
type RolesConfig struct {
	Permissions        map[string][]string
	DefaultPermissions []string
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull sheds events instead of blocking request goroutines
	// when the buffer is full. Dropped counts are observable via
	// [Engine.AuditDropped].
	DropIfFull bool
}

// MetricsConfig controls the in-process metrics counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

func defaultConfig() Config {
	return Config{
		Token: TokenConfig{
			AccessTTL:           15 * time.Minute,
			RefreshTTL:          7 * 24 * time.Hour,
			RememberMeAccessTTL: 24 * time.Hour,
			Leeway:              30 * time.Second,
		},
		Session: SessionConfig{
			SweepInterval: 5 * time.Minute,
		},
		Password: PasswordConfig{
			Memory:      64 * 1024,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
		Security: SecurityConfig{
			MaxLoginAttempts: 10,
			LoginCooldown:    15 * time.Minute,
			EnableIPThrottle: true,
		},
		Roles: RolesConfig{
			Permissions: map[string][]string{
				"admin":  {"read", "write", "delete", "manage_users"},
				"editor": {"read", "write", "delete"},
				"author": {"read", "write"},
				"user":   {"read"},
			},
			DefaultPermissions: []string{"read"},
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func validateConfig(cfg Config) error {
	if cfg.Token.AccessTTL <= 0 {
		return errors.New("token access TTL must be positive")
	}
	if cfg.Token.RefreshTTL <= 0 {
		return errors.New("token refresh TTL must be positive")
	}
	if cfg.Token.RefreshTTL < cfg.Token.AccessTTL {
		return errors.New("refresh TTL must not be shorter than access TTL")
	}
	if cfg.Token.RememberMeAccessTTL < 0 {
		return errors.New("remember-me access TTL must not be negative")
	}
	if cfg.Token.Leeway < 0 || cfg.Token.Leeway > 2*time.Minute {
		return errors.New("token leeway out of range")
	}
	if cfg.Security.MaxLoginAttempts > 0 && cfg.Security.LoginCooldown <= 0 {
		return errors.New("login cooldown must be positive when rate limiting is enabled")
	}
	if len(cfg.Roles.DefaultPermissions) == 0 {
		return errors.New("default permissions must not be empty")
	}
	return nil
}

func cloneConfig(cfg Config) Config {
	out := cfg

	if cfg.Keys.PrivateKey != nil {
		out.Keys.PrivateKey = append([]byte(nil), cfg.Keys.PrivateKey...)
	}
	if cfg.Roles.Permissions != nil {
		out.Roles.Permissions = make(map[string][]string, len(cfg.Roles.Permissions))
		for role, perms := range cfg.Roles.Permissions {
			out.Roles.Permissions[role] = append([]string(nil), perms...)
		}
	}
	if cfg.Roles.DefaultPermissions != nil {
		out.Roles.DefaultPermissions = append([]string(nil), cfg.Roles.DefaultPermissions...)
	}

	return out
}
