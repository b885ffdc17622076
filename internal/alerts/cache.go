package alerts

import (
	"strings"
	"sync"
)

// Cache is the process-wide source of truth for alert terms and ignore
// terms. The processor consults it on every message; mutation happens
// only through the term setters, which also persist and then refresh
// the cache.
//
// Readers get a consistent snapshot of both slices under one lock.
type Cache struct {
	mu      sync.RWMutex
	terms   []string
	ignores []string
}

var (
	cacheInstance *Cache
	cacheOnce     sync.Once
)

// GetCache returns the singleton cache.
func GetCache() *Cache {
	cacheOnce.Do(func() {
		cacheInstance = &Cache{}
	})
	return cacheInstance
}

// DestroyCache discards the singleton. Test hook.
func DestroyCache() {
	cacheOnce = sync.Once{}
	cacheInstance = nil
}

// SetTerms replaces the alert terms. Input is upper-cased and
// de-duplicated preserving first occurrence order.
func (c *Cache) SetTerms(terms []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.terms = normalizeTerms(terms)
}

// SetIgnores replaces the ignore terms, same normalization as SetTerms.
func (c *Cache) SetIgnores(terms []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ignores = normalizeTerms(terms)
}

// Snapshot returns independent copies of both term lists.
func (c *Cache) Snapshot() (terms, ignores []string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.terms...), append([]string(nil), c.ignores...)
}

// NormalizeTerms is the exported form used when persisting term sets.
func NormalizeTerms(terms []string) []string { return normalizeTerms(terms) }

func normalizeTerms(terms []string) []string {
	seen := make(map[string]bool, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
