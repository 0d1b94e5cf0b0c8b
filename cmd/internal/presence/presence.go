// Package presence tracks last-seen timestamps for active sessions.
//
// Heartbeats feed it; the admin dashboard reads it. Redis is the production
// backend (keys expire on their own, so "online" is just "key still there");
// a mutex-guarded in-memory tracker covers dev mode.
package presence

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// DefaultTTL is how long a user counts as online after their last heartbeat.
// A bit more than two heartbeat intervals, so one dropped tick doesn't flap
// the indicator.
const DefaultTTL = 2 * time.Minute

// Tracker is the presence surface used by the heartbeat handler and the
// admin dashboard.
type Tracker interface {
	Touch(ctx context.Context, userID string, at time.Time) error
	LastSeen(ctx context.Context, userID string) (time.Time, bool, error)
	Online(ctx context.Context) ([]string, error)
}

// MemoryTracker is the in-memory Tracker for dev mode and tests.
type MemoryTracker struct {
	ttl time.Duration

	mu   sync.RWMutex
	seen map[string]time.Time
}

// NewMemoryTracker constructs a MemoryTracker. ttl <= 0 uses DefaultTTL.
func NewMemoryTracker(ttl time.Duration) *MemoryTracker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryTracker{ttl: ttl, seen: make(map[string]time.Time)}
}

func (t *MemoryTracker) Touch(_ context.Context, userID string, at time.Time) error {
	t.mu.Lock()
	t.seen[userID] = at
	t.mu.Unlock()
	return nil
}

func (t *MemoryTracker) LastSeen(_ context.Context, userID string) (time.Time, bool, error) {
	t.mu.RLock()
	at, ok := t.seen[userID]
	t.mu.RUnlock()
	if !ok || time.Since(at) > t.ttl {
		return time.Time{}, false, nil
	}
	return at, true, nil
}

func (t *MemoryTracker) Online(_ context.Context) ([]string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var users []string
	for id, at := range t.seen {
		if time.Since(at) <= t.ttl {
			users = append(users, id)
		}
	}
	return users, nil
}

func formatUnixMilli(at time.Time) string {
	return strconv.FormatInt(at.UnixMilli(), 10)
}

func parseUnixMilli(s string) (time.Time, bool) {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(ms).UTC(), true
}
