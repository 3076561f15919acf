// Package quote keeps the latest observed price per symbol. The streaming
// core dispatches updates and retains nothing; this cache is the consumer's
// retention layer, shared by the push and pull paths.
package quote

import (
	"sort"
	"sync"

	"github.com/rickgao/pricestream/internal/model"
)

// Cache holds the most recent update per symbol.
type Cache struct {
	mu     sync.RWMutex
	latest map[string]model.PriceUpdate
}

// NewCache creates an empty Cache.
func NewCache() *Cache {
	return &Cache{latest: make(map[string]model.PriceUpdate)}
}

// Apply stores an update unless a newer observation for the symbol is already
// held. Push and pull can interleave; observation time decides.
func (c *Cache) Apply(u model.PriceUpdate) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if prev, ok := c.latest[u.Symbol]; ok && prev.ObservedAt.After(u.ObservedAt) {
		return false
	}
	c.latest[u.Symbol] = u
	return true
}

// Get returns the latest update for a symbol.
func (c *Cache) Get(symbol string) (model.PriceUpdate, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	u, ok := c.latest[symbol]
	return u, ok
}

// All returns the cached updates sorted by symbol.
func (c *Cache) All() []model.PriceUpdate {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]model.PriceUpdate, 0, len(c.latest))
	for _, u := range c.latest {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Drop removes a symbol from the cache.
func (c *Cache) Drop(symbol string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.latest, symbol)
}

// Len returns the number of cached symbols.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.latest)
}
