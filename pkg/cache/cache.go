// Package cache provides a thread-safe LRU cache for compiled query plans.
//
// The cache is used by the facade and the command-line runner when caching
// is enabled. It avoids re-parsing and re-compiling the same query text on
// every call, which is valuable when one query is applied to many documents.
//
// # Example
//
//	c := cache.New(1024, 0)
//	plan, err := c.GetOrCompile("sum data.*.value", func() (*planner.Plan, error) {
//	    return compiler.Compile("sum data.*.value")
//	})
package cache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/sandrolain/gorhyme/pkg/planner"
)

// DefaultCapacity is used when New is given a capacity <= 0.
const DefaultCapacity = 256

// Cache is a thread-safe LRU cache of compiled plans. Once the capacity is
// reached, the least recently used entry is evicted.
//
// Safe for concurrent use by multiple goroutines.
type Cache struct {
	capacity int
	lru      *expirable.LRU[string, *planner.Plan]
	group    singleflight.Group
}

// New creates a cache holding up to capacity plans. Entries expire after
// ttl; a ttl of zero keeps them until evicted.
func New(capacity int, ttl time.Duration) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{
		capacity: capacity,
		lru:      expirable.NewLRU[string, *planner.Plan](capacity, nil, ttl),
	}
}

// Get retrieves a plan from the cache.
func (c *Cache) Get(key string) (*planner.Plan, bool) {
	return c.lru.Get(key)
}

// Set inserts or replaces a plan.
func (c *Cache) Set(key string, plan *planner.Plan) {
	c.lru.Add(key, plan)
}

// GetOrCompile retrieves the plan for key from the cache, or calls compile
// to create it, caches the result, and returns it. Concurrent callers
// missing the same key share one compile call. Errors are not cached.
func (c *Cache) GetOrCompile(key string, compile func() (*planner.Plan, error)) (*planner.Plan, error) {
	if plan, ok := c.lru.Get(key); ok {
		return plan, nil
	}
	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		if plan, ok := c.lru.Get(key); ok {
			return plan, nil
		}
		plan, err := compile()
		if err != nil {
			return nil, err
		}
		c.lru.Add(key, plan)
		return plan, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*planner.Plan), nil
}

// Len returns the number of entries currently in the cache.
func (c *Cache) Len() int {
	return c.lru.Len()
}

// Capacity returns the maximum number of entries the cache can hold.
func (c *Cache) Capacity() int {
	return c.capacity
}

// Invalidate removes a single entry from the cache.
func (c *Cache) Invalidate(key string) {
	c.lru.Remove(key)
}

// Clear removes all entries from the cache.
func (c *Cache) Clear() {
	c.lru.Purge()
}
