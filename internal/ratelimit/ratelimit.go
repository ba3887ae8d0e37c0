// Package ratelimit provides sliding-window call quotas keyed by an arbitrary
// name, such as a provider or a client IP.
package ratelimit

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Limit is a sliding-window quota: at most Calls within any Window.
type Limit struct {
	Calls  int
	Window time.Duration
}

// Validate checks that both fields are positive.
func (l Limit) Validate() error {
	if l.Calls <= 0 {
		return fmt.Errorf("Calls must be > 0 (got %d)", l.Calls)
	}
	if l.Window <= 0 {
		return fmt.Errorf("Window must be > 0 (got %s)", l.Window)
	}
	return nil
}

// Store records calls and decides whether another one fits the quota.
type Store interface {
	// Allow records a call for key when it fits within limit.
	// It returns whether the call is allowed, how many calls remain in the
	// current window, and how long to wait before retrying when denied.
	Allow(ctx context.Context, key string, limit Limit) (allowed bool, remaining int, retryAfter time.Duration)
}

// MemoryStore keeps call timestamps per key in process memory.
// Safe for concurrent use.
type MemoryStore struct {
	mu    sync.Mutex
	calls map[string][]time.Time
	now   func() time.Time
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		calls: make(map[string][]time.Time),
		now:   time.Now,
	}
}

// Allow implements Store.
func (s *MemoryStore) Allow(_ context.Context, key string, limit Limit) (bool, int, time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	recent := prune(s.calls[key], now.Add(-limit.Window))

	if len(recent) >= limit.Calls {
		s.calls[key] = recent
		retry := recent[0].Add(limit.Window).Sub(now)
		if retry <= 0 {
			retry = time.Millisecond
		}
		return false, 0, retry
	}

	recent = append(recent, now)
	s.calls[key] = recent
	return true, limit.Calls - len(recent), 0
}

// Usage returns the number of calls recorded for key within window.
func (s *MemoryStore) Usage(key string, window time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(prune(s.calls[key], s.now().Add(-window)))
}

// Cleanup drops keys with no calls newer than maxWindow.
func (s *MemoryStore) Cleanup(maxWindow time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-maxWindow)
	for key, ts := range s.calls {
		if len(prune(ts, cutoff)) == 0 {
			delete(s.calls, key)
		}
	}
}

// prune drops timestamps at or before cutoff. ts is sorted ascending.
func prune(ts []time.Time, cutoff time.Time) []time.Time {
	i := sort.Search(len(ts), func(i int) bool { return ts[i].After(cutoff) })
	if i == 0 {
		return ts
	}
	return append(ts[:0:0], ts[i:]...)
}
