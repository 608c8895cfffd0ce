package authcore

import (
	"fmt"
	"time"

	"github.com/veyralabs/authcore/internal/rate"
	"github.com/veyralabs/authcore/keys"
	"github.com/veyralabs/authcore/password"
	"github.com/veyralabs/authcore/session"
	"github.com/veyralabs/authcore/token"
)

// Builder assembles an [Engine]. Only a [UserRepository] is mandatory;
// everything else falls back to defaults.
//
//	engine, err := authcore.New().
//		WithUserRepository(repo).
//		Build()
type Builder struct {
	cfg       Config
	repo      UserRepository
	hasher    PasswordHasher
	auditSink AuditSink
}

// New starts a builder with the default configuration.
func New() *Builder {
	return &Builder{cfg: defaultConfig()}
}

// WithConfig replaces the whole configuration. Zero-valued required
// fields are rejected by Build, not silently defaulted; start from
// [DefaultConfig] when overriding selectively.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.cfg = cloneConfig(cfg)
	return b
}

// WithUserRepository sets the mandatory user lookup backend.
func (b *Builder) WithUserRepository(repo UserRepository) *Builder {
	b.repo = repo
	return b
}

// WithPasswordHasher replaces the bundled argon2id hasher.
func (b *Builder) WithPasswordHasher(h PasswordHasher) *Builder {
	b.hasher = h
	return b
}

// WithSigningKey sets raw Ed25519 key material (64-byte key, 32-byte
// seed, or PKCS#8 PEM).
func (b *Builder) WithSigningKey(material []byte) *Builder {
	b.cfg.Keys.PrivateKey = append([]byte(nil), material...)
	return b
}

// WithKeyFile points the engine at a PEM key file, generated on first
// start when absent.
func (b *Builder) WithKeyFile(path string) *Builder {
	b.cfg.Keys.File = path
	return b
}

// WithIssuer embeds and enforces an issuer claim on every token.
func (b *Builder) WithIssuer(issuer string) *Builder {
	b.cfg.Token.Issuer = issuer
	return b
}

// WithTokenTTLs overrides the access and refresh token lifetimes.
func (b *Builder) WithTokenTTLs(access, refresh time.Duration) *Builder {
	b.cfg.Token.AccessTTL = access
	b.cfg.Token.RefreshTTL = refresh
	return b
}

// WithAuditSink enables audit dispatch to the given sink.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithRolePermissions replaces the role-to-permissions table.
func (b *Builder) WithRolePermissions(perms map[string][]string) *Builder {
	b.cfg.Roles.Permissions = make(map[string][]string, len(perms))
	for role, p := range perms {
		b.cfg.Roles.Permissions[role] = append([]string(nil), p...)
	}
	return b
}

// DefaultConfig returns a copy of the configuration New starts from.
func DefaultConfig() Config {
	return cloneConfig(defaultConfig())
}

// Build validates the configuration, loads the signing key, and wires
// the engine together.
func (b *Builder) Build() (*Engine, error) {
	if b.repo == nil {
		return nil, fmt.Errorf("%w: user repository is required", ErrEngineNotReady)
	}
	if err := validateConfig(b.cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEngineNotReady, err)
	}

	pair, err := keys.LoadOrGenerate(keys.Config{
		PrivateKey: b.cfg.Keys.PrivateKey,
		File:       b.cfg.Keys.File,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyManagement, err)
	}

	codec, err := token.NewCodec(token.Config{
		Issuer: b.cfg.Token.Issuer,
		Leeway: b.cfg.Token.Leeway,
	}, pair)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyManagement, err)
	}

	hasher := b.hasher
	if hasher == nil {
		argon, err := password.NewArgon2(password.Config{
			Memory:      b.cfg.Password.Memory,
			Time:        b.cfg.Password.Time,
			Parallelism: b.cfg.Password.Parallelism,
			SaltLength:  b.cfg.Password.SaltLength,
			KeyLength:   b.cfg.Password.KeyLength,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEngineNotReady, err)
		}
		hasher = argon
	}

	store := session.NewStore()
	if b.cfg.Session.SweepInterval > 0 {
		store.StartSweeper(b.cfg.Session.SweepInterval)
	}

	limiter := rate.New(rate.Config{
		MaxAttempts:      b.cfg.Security.MaxLoginAttempts,
		Window:           b.cfg.Security.LoginCooldown,
		EnableIPThrottle: b.cfg.Security.EnableIPThrottle,
	})

	return &Engine{
		config:  b.cfg,
		codec:   codec,
		store:   store,
		repo:    b.repo,
		hasher:  hasher,
		limiter: limiter,
		audit:   newAuditDispatcher(b.cfg.Audit, b.auditSink),
		metrics: NewMetrics(b.cfg.Metrics),
	}, nil
}
