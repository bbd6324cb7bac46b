package app

import (
	"sync"
	"time"

	"github.com/mklounge/squadqueue/internal/domain/model"
)

// Cooldowns rate-limits actions per identity. Entries expire after the
// configured TTL; a zero TTL disables the limit entirely.
type Cooldowns struct {
	ttl time.Duration

	mu   sync.Mutex
	last map[model.PlayerID]time.Time
}

// NewCooldowns creates a store with the given TTL.
func NewCooldowns(ttl time.Duration) *Cooldowns {
	return &Cooldowns{ttl: ttl, last: make(map[model.PlayerID]time.Time)}
}

// Ready reports whether the identity is off cooldown and, when it is,
// starts a new one.
func (c *Cooldowns) Ready(id model.PlayerID, now time.Time) bool {
	if c.ttl <= 0 {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if until, ok := c.last[id]; ok && now.Before(until) {
		return false
	}
	c.last[id] = now.Add(c.ttl)
	return true
}

// Prune drops expired entries so the map does not grow with every voter
// ever seen.
func (c *Cooldowns) Prune(now time.Time) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, until := range c.last {
		if !now.Before(until) {
			delete(c.last, id)
		}
	}
}
