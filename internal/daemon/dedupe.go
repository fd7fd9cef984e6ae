package daemon

import (
	"sync"
	"time"
)

const defaultDedupeTTL = 5 * time.Minute

// messageDedupeCache remembers recently seen update keys so redelivered
// Telegram updates are handled once.
type messageDedupeCache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]time.Time

	startOnce sync.Once
	stopOnce  sync.Once
	stopCh    chan struct{}
	done      chan struct{}
}

func newMessageDedupeCache(ttl time.Duration) *messageDedupeCache {
	if ttl <= 0 {
		ttl = defaultDedupeTTL
	}
	return &messageDedupeCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]time.Time),
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Seen marks key and reports whether it was already marked within the TTL
func (c *messageDedupeCache) Seen(key string) bool {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if ts, exists := c.entries[key]; exists && now.Sub(ts) <= c.ttl {
		return true
	}
	c.entries[key] = now
	return false
}

func (c *messageDedupeCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *messageDedupeCache) Start() {
	if c == nil {
		return
	}

	c.startOnce.Do(func() {
		interval := c.ttl / 2
		if interval > 30*time.Second {
			interval = 30 * time.Second
		}

		ticker := time.NewTicker(interval)
		go func() {
			defer close(c.done)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					c.cleanupExpired()
				case <-c.stopCh:
					return
				}
			}
		}()
	})
}

func (c *messageDedupeCache) Stop() {
	if c == nil {
		return
	}
	c.stopOnce.Do(func() {
		close(c.stopCh)
		started := true
		c.startOnce.Do(func() { started = false })
		if started {
			<-c.done
		}
	})
}

func (c *messageDedupeCache) cleanupExpired() {
	now := c.now()

	c.mu.Lock()
	for key, ts := range c.entries {
		if now.Sub(ts) > c.ttl {
			delete(c.entries, key)
		}
	}
	c.mu.Unlock()
}
