// Package cache provides the per-request response caches. Entries are
// keyed by the full request identity including the document version, so
// a document edit naturally misses without explicit invalidation; the
// LRU bound keeps stale versions from accumulating.
package cache

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/GodSpeedAI/domainforge-lsp/src/internal/common"
)

// DefaultCapacity bounds each response cache when the configuration
// does not override it.
const DefaultCapacity = 512

// Key is the full identity of one cached response.
type Key struct {
	URI       string
	Version   int32
	Line      uint32
	Character uint32
	Detail    string
	View      string
}

// Stats is a point-in-time cache counter snapshot.
type Stats struct {
	Hits    int64
	Misses  int64
	Entries int
}

// ResponseCache is a bounded LRU of computed responses. Safe for
// concurrent use.
type ResponseCache[V any] struct {
	entries *lru.Cache[Key, V]
	hits    atomic.Int64
	misses  atomic.Int64
}

// NewResponseCache builds a cache with the given capacity; non-positive
// capacities fall back to DefaultCapacity.
func NewResponseCache[V any](capacity int) (*ResponseCache[V], error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	entries, err := lru.New[Key, V](capacity)
	if err != nil {
		return nil, err
	}
	return &ResponseCache[V]{entries: entries}, nil
}

func (c *ResponseCache[V]) Get(key Key) (V, bool) {
	value, ok := c.entries.Get(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return value, ok
}

func (c *ResponseCache[V]) Put(key Key, value V) {
	c.entries.Add(key, value)
}

// InvalidateDocument drops every entry for the given URI regardless of
// version. Closing a document calls this so closed-file responses
// cannot be served later.
func (c *ResponseCache[V]) InvalidateDocument(uri string) {
	removed := 0
	for _, key := range c.entries.Keys() {
		if key.URI == uri {
			c.entries.Remove(key)
			removed++
		}
	}
	if removed > 0 {
		common.LSPLogger.Debug("invalidated %d cached responses for %s", removed, uri)
	}
}

// Purge drops every entry.
func (c *ResponseCache[V]) Purge() {
	c.entries.Purge()
}

func (c *ResponseCache[V]) Stats() Stats {
	return Stats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Entries: c.entries.Len(),
	}
}
