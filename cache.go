package rowguard

import "sync"

// Cache remembers statements known to need no rewrite.
// It is safe for concurrent use from multiple goroutines.
//
// Entries are keyed by rule type (Rule.Name) and statement identifier. A
// statement is skipped only when every active rule type has an entry for it,
// so adding a new rule type to a request forces a fresh traversal.
type Cache interface {
	// ShouldSkip reports whether the statement can bypass the rewriter.
	// It is true when rules is empty.
	ShouldSkip(statementID string, rules []Rule) bool

	// RecordNoRewrite marks the statement as needing no rewrite for every
	// rule type in rules.
	RecordNoRewrite(statementID string, rules []Rule)
}

// bucket holds the statement ids recorded for one rule type.
type bucket struct {
	mu  sync.RWMutex
	ids map[string]struct{}
}

func (b *bucket) has(id string) bool {
	b.mu.RLock()
	_, ok := b.ids[id]
	b.mu.RUnlock()
	return ok
}

func (b *bucket) add(id string) {
	b.mu.Lock()
	b.ids[id] = struct{}{}
	b.mu.Unlock()
}

func (b *bucket) len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.ids)
}

// CacheImpl is the default in-memory cache.
// Buckets are created lazily per rule type in a sync.Map and each bucket
// carries its own lock, so rule types do not contend with each other.
//
// The cache grows monotonically: statement identifiers are expected to come
// from a bounded set of query templates. Call Clear when rule configuration
// changes (for example after reloading which tables a rule covers).
type CacheImpl struct {
	buckets sync.Map // rule name -> *bucket
}

// NewCache creates an empty cache.
func NewCache() *CacheImpl {
	return &CacheImpl{}
}

func (c *CacheImpl) load(name string) (*bucket, bool) {
	b, ok := c.buckets.Load(name)
	if !ok {
		return nil, false
	}
	return b.(*bucket), true
}

// ShouldSkip implements Cache.
func (c *CacheImpl) ShouldSkip(statementID string, rules []Rule) bool {
	for _, r := range rules {
		b, ok := c.load(r.Name())
		if !ok || !b.has(statementID) {
			return false
		}
	}
	return true
}

// RecordNoRewrite implements Cache.
func (c *CacheImpl) RecordNoRewrite(statementID string, rules []Rule) {
	for _, r := range rules {
		b, _ := c.buckets.LoadOrStore(r.Name(), &bucket{ids: make(map[string]struct{})})
		b.(*bucket).add(statementID)
	}
}

// Size returns the total number of recorded (rule type, statement) pairs.
// Useful for monitoring cache growth.
func (c *CacheImpl) Size() int {
	n := 0
	c.buckets.Range(func(_, v any) bool {
		n += v.(*bucket).len()
		return true
	})
	return n
}

// Clear removes all entries from the cache.
func (c *CacheImpl) Clear() {
	c.buckets.Range(func(k, _ any) bool {
		c.buckets.Delete(k)
		return true
	})
}

// Ensure CacheImpl implements Cache.
var _ Cache = (*CacheImpl)(nil)
