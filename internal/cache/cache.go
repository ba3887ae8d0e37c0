// Package cache stores recommendation results so repeated requests for the
// same area and activity skip the provider fan-out.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/onnwee/whatnow/internal/event"
	"github.com/onnwee/whatnow/internal/geo"
	"github.com/onnwee/whatnow/internal/profile"
	"github.com/onnwee/whatnow/internal/ranking"
)

// DefaultTTL is how long a cached result stays fresh.
const DefaultTTL = 15 * time.Minute

// Entry is one cached recommendation result.
type Entry struct {
	Events          []event.CanonicalEvent `json:"events"`
	Diagnostics     ranking.Diagnostics    `json:"diagnostics"`
	RawCount        int                    `json:"raw_count"`
	DedupedCount    int                    `json:"deduped_count"`
	ProvidersFailed int                    `json:"providers_failed"`
	Profile         *profile.Profile       `json:"profile,omitempty"`
	StoredAt        time.Time              `json:"stored_at"`
}

// clone copies the events slice and the profile.
func (e Entry) clone() Entry {
	out := e
	out.Events = append([]event.CanonicalEvent(nil), e.Events...)
	if e.Profile != nil {
		p := e.Profile.Clone()
		out.Profile = &p
	}
	return out
}

// Cache stores entries by key. Implementations treat failures as misses.
type Cache interface {
	Get(ctx context.Context, key string) (*Entry, bool)
	Set(ctx context.Context, key string, entry *Entry)
}

// Key identifies a result by geohash cell, normalized activity text and a
// variant such as the profile's preferred categories.
func Key(loc event.Location, activity, variant string) string {
	cell := geo.Cell(loc.Latitude, loc.Longitude)
	sum := sha256.Sum256([]byte(strings.Join(profile.Words(activity), " ") + "\x00" + variant))
	return cell + ":" + hex.EncodeToString(sum[:12])
}

// MemoryCache is an in-process Cache with per-entry expiry.
type MemoryCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	entry     Entry
	expiresAt time.Time
}

// NewMemoryCache creates a MemoryCache. A non-positive ttl uses DefaultTTL.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryCache{
		ttl:     ttl,
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// Get implements Cache. The returned entry is a copy.
func (c *MemoryCache) Get(_ context.Context, key string) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	me, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !c.now().Before(me.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	out := me.entry.clone()
	return &out, true
}

// Set implements Cache.
func (c *MemoryCache) Set(_ context.Context, key string, entry *Entry) {
	if entry == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = memoryEntry{entry: entry.clone(), expiresAt: c.now().Add(c.ttl)}
}

// Cleanup drops expired entries and returns how many were removed.
func (c *MemoryCache) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for k, me := range c.entries {
		if !now.Before(me.expiresAt) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}
