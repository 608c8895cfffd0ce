// Package rate enforces per-identifier and per-IP login attempt budgets
// with in-memory fixed windows. Counters live in process memory, which
// matches the single-process session core; a horizontally scaled
// deployment needs an external limiter in front.
package rate

import (
	"errors"
	"sync"
	"time"
)

// ErrRateLimited is returned when an attempt budget is exhausted.
var ErrRateLimited = errors.New("rate limited")

// Config tunes the limiter. A zero MaxAttempts disables it.
type Config struct {
	MaxAttempts      int
	Window           time.Duration
	EnableIPThrottle bool
}

type window struct {
	count   int
	resetAt time.Time
}

// Limiter counts failed login attempts per identifier and, optionally,
// per client IP. Safe for concurrent use.
type Limiter struct {
	config Config

	mu       sync.Mutex
	counters map[string]*window
}

// New creates a limiter. Returns nil when cfg disables limiting, which
// callers treat as "no limiter".
func New(cfg Config) *Limiter {
	if cfg.MaxAttempts <= 0 {
		return nil
	}
	if cfg.Window <= 0 {
		cfg.Window = 15 * time.Minute
	}
	return &Limiter{
		config:   cfg,
		counters: make(map[string]*window),
	}
}

// CheckLogin reports whether the identifier+IP pair is still within the
// attempt budget.
func (l *Limiter) CheckLogin(identifier, ip string, now time.Time) error {
	if l == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.exceeded("id:"+identifier, now) {
		return ErrRateLimited
	}
	if l.config.EnableIPThrottle && ip != "" && l.exceeded("ip:"+ip, now) {
		return ErrRateLimited
	}
	return nil
}

// RecordFailure charges one failed attempt against the pair.
func (l *Limiter) RecordFailure(identifier, ip string, now time.Time) {
	if l == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.increment("id:"+identifier, now)
	if l.config.EnableIPThrottle && ip != "" {
		l.increment("ip:"+ip, now)
	}
	l.pruneLocked(now)
}

// Reset clears the budget for the pair after a successful login.
func (l *Limiter) Reset(identifier, ip string) {
	if l == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.counters, "id:"+identifier)
	if ip != "" {
		delete(l.counters, "ip:"+ip)
	}
}

func (l *Limiter) exceeded(key string, now time.Time) bool {
	w, ok := l.counters[key]
	if !ok {
		return false
	}
	if now.After(w.resetAt) {
		delete(l.counters, key)
		return false
	}
	return w.count >= l.config.MaxAttempts
}

func (l *Limiter) increment(key string, now time.Time) {
	w, ok := l.counters[key]
	if !ok || now.After(w.resetAt) {
		l.counters[key] = &window{count: 1, resetAt: now.Add(l.config.Window)}
		return
	}
	w.count++
}

// pruneLocked drops stale windows so the map cannot grow unbounded
// under a spray of distinct identifiers. O(n), but only runs on the
// failure path once the map is large.
func (l *Limiter) pruneLocked(now time.Time) {
	if len(l.counters) < 4096 {
		return
	}
	for key, w := range l.counters {
		if now.After(w.resetAt) {
			delete(l.counters, key)
		}
	}
}
