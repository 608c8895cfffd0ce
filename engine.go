package authcore

import (
	"log"

	"github.com/veyralabs/authcore/internal/rate"
	"github.com/veyralabs/authcore/session"
	"github.com/veyralabs/authcore/token"
)

// Engine is the authentication core. It issues capability tokens,
// verifies them without any I/O beyond the user lookup, and tracks the
// refresh chain of every live session. Construct it with [New]; a zero
// Engine is not usable.
//
// All methods are safe for concurrent use.
type Engine struct {
	config  Config
	codec   *token.Codec
	store   *session.Store
	repo    UserRepository
	hasher  PasswordHasher
	limiter *rate.Limiter
	audit   *auditDispatcher
	metrics *Metrics
}

// Close stops the background session sweeper and flushes the audit
// dispatcher. The engine must not be used after Close.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.store.Close()
	e.audit.Close()
}

// Metrics returns the engine's metrics instance for export. Never nil.
func (e *Engine) Metrics() *Metrics {
	return e.metrics
}

// AuditDropped returns the number of audit events shed because the
// dispatcher buffer was full.
func (e *Engine) AuditDropped() uint64 {
	return e.audit.Dropped()
}

func (e *Engine) accessTTL(rememberMe bool) int64 {
	if rememberMe && e.config.Token.RememberMeAccessTTL > 0 {
		return int64(e.config.Token.RememberMeAccessTTL.Seconds())
	}
	return int64(e.config.Token.AccessTTL.Seconds())
}

// resolvePermissions is total: unknown roles degrade to the default
// permission set rather than failing verification.
func (e *Engine) resolvePermissions(role string) []string {
	if perms, ok := e.config.Roles.Permissions[role]; ok {
		return perms
	}
	log.Printf("authcore: unknown role %q, using default permissions", role)
	return e.config.Roles.DefaultPermissions
}
