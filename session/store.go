// Package session holds authoritative, concurrency-safe session state.
//
// The store is in-memory and single-process: sessions are lost on
// restart and are not shared across instances. This is documented
// behavior, not a defect. All mutation is scoped to a single session id,
// so the store shards its map and serializes only per shard; there is
// no global lock on the authenticated-request hot path.
package session

import (
	"errors"
	"hash/fnv"
	"sync"
	"time"
)

var (
	// ErrNotFound is returned when the session id resolves to nothing.
	ErrNotFound = errors.New("session not found")
	// ErrExpired is returned when the record exists but is past its expiry.
	ErrExpired = errors.New("session expired")
	// ErrVersionMismatch is returned when a refresh presents a version
	// other than the session's current one. A strong replay signal.
	ErrVersionMismatch = errors.New("session version mismatch")
)

const shardCount = 32

type shard struct {
	mu      sync.Mutex
	records map[string]*Record
}

// Store maps opaque session ids to Records. All methods are safe for
// concurrent use and never block on I/O.
type Store struct {
	shards [shardCount]shard

	sweepOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}
}

// NewStore creates an empty store. Call StartSweeper to enable the
// periodic expiry sweep and Close to stop it.
func NewStore() *Store {
	s := &Store{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	for i := range s.shards {
		s.shards[i].records = make(map[string]*Record)
	}
	return s
}

func (s *Store) shardFor(sessionID string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(sessionID))
	return &s.shards[h.Sum32()%shardCount]
}

// Insert creates or overwrites the record for sessionID. Ids carry
// enough entropy that overwrite-on-collision is not a practical concern.
func (s *Store) Insert(sessionID string, rec Record) {
	sh := s.shardFor(sessionID)
	stored := rec.clone()

	sh.mu.Lock()
	sh.records[sessionID] = &stored
	sh.mu.Unlock()
}

// ValidateAccess is the read-mostly liveness check on the request hot
// path. It touches LastAccessed and returns a snapshot of the record.
// Access validation deliberately ignores RefreshVersion: an access
// token stays valid for its own TTL across refresh rotations.
func (s *Store) ValidateAccess(sessionID string, now time.Time) (Record, error) {
	sh := s.shardFor(sessionID)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	rec, ok := sh.records[sessionID]
	if !ok {
		return Record{}, ErrNotFound
	}
	if rec.expired(now) {
		delete(sh.records, sessionID)
		return Record{}, ErrExpired
	}

	rec.LastAccessed = now
	return rec.clone(), nil
}

// ValidateAndBumpRefresh atomically compares the presented version with
// the stored one and, on exact match, increments it. Load, compare, and
// increment happen under one shard lock, so of N concurrent calls
// presenting the same valid version exactly one succeeds and the stored
// version advances by exactly one.
func (s *Store) ValidateAndBumpRefresh(sessionID string, presented uint32, now time.Time) (uint32, error) {
	sh := s.shardFor(sessionID)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	rec, ok := sh.records[sessionID]
	if !ok {
		return 0, ErrNotFound
	}
	if rec.expired(now) {
		delete(sh.records, sessionID)
		return 0, ErrExpired
	}
	if rec.RefreshVersion != presented {
		return 0, ErrVersionMismatch
	}

	rec.RefreshVersion++
	rec.LastAccessed = now
	return rec.RefreshVersion, nil
}

// Remove deletes the session. Idempotent; reports whether it existed.
func (s *Store) Remove(sessionID string) bool {
	sh := s.shardFor(sessionID)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	if _, ok := sh.records[sessionID]; !ok {
		return false
	}
	delete(sh.records, sessionID)
	return true
}

// Get returns a read-only snapshot without touching LastAccessed.
func (s *Store) Get(sessionID string) (Record, bool) {
	sh := s.shardFor(sessionID)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	rec, ok := sh.records[sessionID]
	if !ok {
		return Record{}, false
	}
	return rec.clone(), true
}

// CleanupExpired removes every record past its expiry and reports how
// many were removed. Not on the request hot path.
func (s *Store) CleanupExpired(now time.Time) int {
	removed := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		for id, rec := range sh.records {
			if rec.expired(now) {
				delete(sh.records, id)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed
}

// Count returns the number of stored sessions, expired or not.
func (s *Store) Count() int {
	total := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		total += len(sh.records)
		sh.mu.Unlock()
	}
	return total
}

// StartSweeper launches the periodic expiry sweep. Subsequent calls are
// no-ops; Close stops the sweeper.
func (s *Store) StartSweeper(interval time.Duration) {
	if interval <= 0 {
		return
	}
	s.sweepOnce.Do(func() {
		go func() {
			defer close(s.done)
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					s.CleanupExpired(time.Now())
				case <-s.stop:
					return
				}
			}
		}()
	})
}

// Close stops the sweeper, if one was started. Idempotent.
func (s *Store) Close() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
}
