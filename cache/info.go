// Package cache provides the two cache layers the core depends on: an
// in-memory ImageInfo cache, and a disk-backed derivative cache with
// single-flight build de-duplication and size/TTL-bounded eviction.
package cache

import (
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/cantaloupe-core/imaging/core"
)

// InfoCache is a bounded in-memory cache of ImageInfo keyed by Identifier.
// Unlike the derivative cache, it never touches disk: ImageInfo is small and
// cheap to recompute, so the only goal here is to skip re-probing a source
// provider for every request against the same identifier.
type InfoCache struct {
	mu  sync.Mutex
	lru *lru.Cache[core.Identifier, core.ImageInfo]
}

// NewInfoCache creates an InfoCache holding up to maxEntries identifiers.
func NewInfoCache(maxEntries int) *InfoCache {
	if maxEntries <= 0 {
		maxEntries = 1024
	}
	l, _ := lru.New[core.Identifier, core.ImageInfo](maxEntries)
	return &InfoCache{lru: l}
}

func (c *InfoCache) Get(id core.Identifier) (core.ImageInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Get(id)
}

func (c *InfoCache) Put(id core.Identifier, info core.ImageInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(id, info)
}

func (c *InfoCache) Purge(id core.Identifier) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Remove(id)
}

func (c *InfoCache) PurgeAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
}

// purgeByPrefix removes every key whose identifier starts with prefix. Not
// part of core.InfoCache (whose contract purges by exact identifier only),
// and unexported, so only code inside package cache can call it.
func (c *InfoCache) purgeByPrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range c.lru.Keys() {
		if strings.HasPrefix(string(k), prefix) {
			c.lru.Remove(k)
		}
	}
}
