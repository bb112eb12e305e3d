package analysis

import (
	"sync"
	"time"

	"github.com/mamaar/sigrefactor/pkg/types"
)

// HierarchyCache memoizes type hierarchy queries for a single refactoring
// run. The owner resets it when a new run starts because the workspace may
// have changed in between.
type HierarchyCache struct {
	superTypes map[string][]*types.TypeDecl
	superLock  sync.RWMutex

	// subIndex maps a qualified name to its direct subtypes; built lazily
	// in one pass over the workspace
	subIndex map[string][]*types.TypeDecl
	subLock  sync.RWMutex

	resolved     map[string]*types.TypeDecl
	resolvedLock sync.RWMutex

	cacheStats CacheStats
	statsLock  sync.RWMutex
}

// CacheStats tracks cache performance metrics
type CacheStats struct {
	SuperTypeHits   int64
	SuperTypeMisses int64
	ResolveHits     int64
	ResolveMisses   int64
	SubIndexBuilds  int64
	LastReset       time.Time
}

// NewHierarchyCache creates a new, empty cache
func NewHierarchyCache() *HierarchyCache {
	return &HierarchyCache{
		superTypes: make(map[string][]*types.TypeDecl),
		resolved:   make(map[string]*types.TypeDecl),
		cacheStats: CacheStats{LastReset: time.Now()},
	}
}

// GetSuperTypes retrieves cached transitive supertypes
func (c *HierarchyCache) GetSuperTypes(key string) ([]*types.TypeDecl, bool) {
	c.superLock.RLock()
	defer c.superLock.RUnlock()

	supers, ok := c.superTypes[key]
	c.count(func(s *CacheStats) {
		if ok {
			s.SuperTypeHits++
		} else {
			s.SuperTypeMisses++
		}
	})
	return supers, ok
}

// SetSuperTypes caches transitive supertypes
func (c *HierarchyCache) SetSuperTypes(key string, supers []*types.TypeDecl) {
	c.superLock.Lock()
	defer c.superLock.Unlock()
	c.superTypes[key] = supers
}

// SubIndex returns the direct-subtype index, building it with build on the
// first call after a reset.
func (c *HierarchyCache) SubIndex(build func() map[string][]*types.TypeDecl) map[string][]*types.TypeDecl {
	c.subLock.RLock()
	idx := c.subIndex
	c.subLock.RUnlock()
	if idx != nil {
		return idx
	}

	c.subLock.Lock()
	defer c.subLock.Unlock()
	if c.subIndex == nil {
		c.subIndex = build()
		c.count(func(s *CacheStats) { s.SubIndexBuilds++ })
	}
	return c.subIndex
}

// GetResolved retrieves a cached type-name resolution; a nil type with
// ok=true records a failed lookup.
func (c *HierarchyCache) GetResolved(key string) (*types.TypeDecl, bool) {
	c.resolvedLock.RLock()
	defer c.resolvedLock.RUnlock()

	t, ok := c.resolved[key]
	c.count(func(s *CacheStats) {
		if ok {
			s.ResolveHits++
		} else {
			s.ResolveMisses++
		}
	})
	return t, ok
}

// SetResolved caches a type-name resolution
func (c *HierarchyCache) SetResolved(key string, t *types.TypeDecl) {
	c.resolvedLock.Lock()
	defer c.resolvedLock.Unlock()
	c.resolved[key] = t
}

// Reset drops every cached entry
func (c *HierarchyCache) Reset() {
	c.superLock.Lock()
	c.superTypes = make(map[string][]*types.TypeDecl)
	c.superLock.Unlock()

	c.subLock.Lock()
	c.subIndex = nil
	c.subLock.Unlock()

	c.resolvedLock.Lock()
	c.resolved = make(map[string]*types.TypeDecl)
	c.resolvedLock.Unlock()

	c.statsLock.Lock()
	c.cacheStats = CacheStats{LastReset: time.Now()}
	c.statsLock.Unlock()
}

// Stats returns a snapshot of the cache statistics
func (c *HierarchyCache) Stats() CacheStats {
	c.statsLock.RLock()
	defer c.statsLock.RUnlock()
	return c.cacheStats
}

func (c *HierarchyCache) count(fn func(*CacheStats)) {
	c.statsLock.Lock()
	fn(&c.cacheStats)
	c.statsLock.Unlock()
}
