package reconcile

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCacheTTL is used when a Cache is created with a non-positive TTL.
const DefaultCacheTTL = 5 * time.Minute

type cached struct {
	delta   decimal.Decimal
	expires time.Time
}

// Cache holds the last known delta per entry id. Entries expire after the
// TTL and are dropped as soon as the entry is saved.
type Cache struct {
	mu    sync.RWMutex
	ttl   time.Duration
	items map[string]cached
	now   func() time.Time
}

// NewCache creates an empty Cache.
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{
		ttl:   ttl,
		items: make(map[string]cached),
		now:   time.Now,
	}
}

// Get returns the delta for entryID, or false on a miss or expiry.
func (c *Cache) Get(entryID string) (decimal.Decimal, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	it, ok := c.items[entryID]
	if !ok || !c.now().Before(it.expires) {
		return decimal.Decimal{}, false
	}
	return it.delta, true
}

// Put stores a delta for entryID.
func (c *Cache) Put(entryID string, delta decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[entryID] = cached{delta: delta, expires: c.now().Add(c.ttl)}
}

// Invalidate drops entryID.
func (c *Cache) Invalidate(entryID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, entryID)
}

// Len counts stored items, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
