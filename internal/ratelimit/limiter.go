// Package ratelimit provides a fixed-window request counter. The window is
// fixed, not sliding: a burst straddling a window boundary can admit up to
// twice the nominal rate. That trade-off is part of the contract and callers
// must not depend on stricter pacing.
package ratelimit

import (
	"sync"
	"time"
)

// Decision is the outcome of an admission check.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Admitter decides whether a keyed action may proceed right now. Keys encode
// the actor and the action, e.g. "login:10.0.0.1" or "createPoll:<user-id>".
// Implementations must be safe for concurrent callers on the same key.
type Admitter interface {
	Admit(key string, limit int, window time.Duration) Decision
}

type windowEntry struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter keeps counters in process memory. State lives for the
// process lifetime; a multi-instance deployment needs a shared-store
// implementation of Admitter behind the same interface.
type MemoryLimiter struct {
	mu      sync.Mutex
	entries map[string]*windowEntry
	clock   func() time.Time
}

// NewMemoryLimiter constructs a limiter. A nil clock defaults to time.Now.
func NewMemoryLimiter(clock func() time.Time) *MemoryLimiter {
	if clock == nil {
		clock = time.Now
	}
	return &MemoryLimiter{
		entries: make(map[string]*windowEntry),
		clock:   clock,
	}
}

// Admit applies the fixed-window rule for key. The first request in a window
// (or any request after the stored window lapsed) starts a fresh window with
// count one. Requests beyond limit are denied without touching ResetAt.
func (l *MemoryLimiter) Admit(key string, limit int, window time.Duration) Decision {
	now := l.clock()

	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[key]
	if !ok || !now.Before(entry.resetAt) {
		entry = &windowEntry{count: 1, resetAt: now.Add(window)}
		l.entries[key] = entry
		return Decision{Allowed: true, Remaining: limit - 1, ResetAt: entry.resetAt}
	}

	if entry.count < limit {
		entry.count++
		return Decision{Allowed: true, Remaining: limit - entry.count, ResetAt: entry.resetAt}
	}

	return Decision{Allowed: false, Remaining: 0, ResetAt: entry.resetAt}
}

// PurgeExpired drops entries whose window has lapsed so long-lived processes
// do not accumulate counters for keys that never return. Expired entries are
// also replaced lazily on access, so calling this is optional.
func (l *MemoryLimiter) PurgeExpired() int {
	now := l.clock()

	l.mu.Lock()
	defer l.mu.Unlock()

	purged := 0
	for key, entry := range l.entries {
		if !now.Before(entry.resetAt) {
			delete(l.entries, key)
			purged++
		}
	}
	return purged
}
