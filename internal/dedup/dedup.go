// Package dedup provides an idempotency guard for inbound webhook events.
//
// Channel providers redeliver webhooks, sometimes concurrently. Claiming an
// event id before acting on it is the system's sole defense against
// duplicate side effects (duplicate replies, duplicate call records).
package dedup

import (
	"sync"
	"time"
)

// DefaultTTL is how long a claimed id stays claimed. Provider retries
// arrive within minutes; anything later is treated as a new event.
const DefaultTTL = 5 * time.Minute

// Claimer records event ids and reports whether an id is being seen for
// the first time. Claim must be atomic with respect to concurrent calls.
type Claimer interface {
	// Claim returns true exactly once per id within the TTL window.
	Claim(eventID string) bool
}

// MemoryClaimer is an in-process Claimer with TTL-based expiry.
type MemoryClaimer struct {
	mu      sync.Mutex
	ttl     time.Duration
	claimed map[string]time.Time
	now     func() time.Time
}

// NewMemoryClaimer creates a claimer with the given TTL. A zero ttl uses
// DefaultTTL.
func NewMemoryClaimer(ttl time.Duration) *MemoryClaimer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryClaimer{
		ttl:     ttl,
		claimed: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Claim performs an atomic check-and-set on the event id.
func (c *MemoryClaimer) Claim(eventID string) bool {
	if eventID == "" {
		// Events without an id cannot be deduplicated; let them through.
		return true
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if exp, ok := c.claimed[eventID]; ok && now.Before(exp) {
		return false
	}

	// Prune opportunistically so the map does not grow without bound.
	if len(c.claimed) > 4096 {
		for id, exp := range c.claimed {
			if !now.Before(exp) {
				delete(c.claimed, id)
			}
		}
	}

	c.claimed[eventID] = now.Add(c.ttl)
	return true
}
