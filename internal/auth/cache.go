package auth

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// DefaultIdentityCacheTTL is how long a Hub verdict (valid or rejected) is
// reused before the token is checked again. Short enough that token
// revocation and scope changes take effect quickly.
const DefaultIdentityCacheTTL = 60 * time.Second

// DefaultIdentityCacheCleanupInterval is how often expired entries are
// swept. Entries are also dropped on access when expired.
const DefaultIdentityCacheCleanupInterval = 1 * time.Minute

// DefaultIdentityCacheMaxEntries bounds the cache; with one entry per
// active token this covers a large hub before LRU eviction kicks in.
const DefaultIdentityCacheMaxEntries = 1000

// identityCacheEntry is one cached Hub verdict. A nil user records a
// rejected token.
type identityCacheEntry struct {
	key       string
	user      *User
	expiresAt time.Time
}

// identityCache is a thread-safe TTL cache of token verdicts with LRU
// eviction, keyed by a hash of the token so raw tokens never sit in map
// keys.
type identityCache struct {
	mu      sync.RWMutex
	entries map[string]*list.Element // key -> element containing *identityCacheEntry
	lruList *list.List               // front = most recently used
	ttl     time.Duration
	maxSize int

	stopCleanup chan struct{}
	cleanupDone chan struct{}
}

func newIdentityCache(ttl time.Duration) *identityCache {
	if ttl <= 0 {
		ttl = DefaultIdentityCacheTTL
	}

	c := &identityCache{
		entries:     make(map[string]*list.Element),
		lruList:     list.New(),
		ttl:         ttl,
		maxSize:     DefaultIdentityCacheMaxEntries,
		stopCleanup: make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}

	go c.cleanupLoop()

	return c
}

// hashToken creates a SHA-256 hash of the token for use as a cache key.
func hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// Get returns the cached verdict for a token. The second return value is
// false when no unexpired verdict exists; a (nil, true) result means the
// Hub rejected this token recently.
func (c *identityCache) Get(token string) (*User, bool) {
	key := hashToken(token)

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, exists := c.entries[key]
	if !exists {
		return nil, false
	}

	entry := elem.Value.(*identityCacheEntry)
	if time.Now().After(entry.expiresAt) {
		c.removeElementLocked(elem)
		return nil, false
	}

	c.lruList.MoveToFront(elem)
	return entry.user, true
}

// Set stores a verdict for a token, evicting the least recently used
// entry when the cache is full.
func (c *identityCache) Set(token string, user *User) {
	key := hashToken(token)
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, exists := c.entries[key]; exists {
		entry := elem.Value.(*identityCacheEntry)
		entry.user = user
		entry.expiresAt = now.Add(c.ttl)
		c.lruList.MoveToFront(elem)
		return
	}

	for c.maxSize > 0 && c.lruList.Len() >= c.maxSize {
		if oldest := c.lruList.Back(); oldest != nil {
			c.removeElementLocked(oldest)
		}
	}

	elem := c.lruList.PushFront(&identityCacheEntry{
		key:       key,
		user:      user,
		expiresAt: now.Add(c.ttl),
	})
	c.entries[key] = elem
}

// removeElementLocked removes an element from the cache.
// Must be called with mu held.
func (c *identityCache) removeElementLocked(elem *list.Element) {
	entry := elem.Value.(*identityCacheEntry)
	delete(c.entries, entry.key)
	c.lruList.Remove(elem)
}

// cleanupLoop periodically removes expired entries.
func (c *identityCache) cleanupLoop() {
	ticker := time.NewTicker(DefaultIdentityCacheCleanupInterval)
	defer ticker.Stop()
	defer close(c.cleanupDone)

	for {
		select {
		case <-ticker.C:
			c.cleanup()
		case <-c.stopCleanup:
			return
		}
	}
}

// cleanup removes all expired entries.
func (c *identityCache) cleanup() {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	var next *list.Element
	for elem := c.lruList.Front(); elem != nil; elem = next {
		next = elem.Next()
		entry := elem.Value.(*identityCacheEntry)
		if now.After(entry.expiresAt) {
			c.removeElementLocked(elem)
		}
	}
}

// Close stops the cleanup goroutine and clears the cache.
func (c *identityCache) Close() {
	close(c.stopCleanup)
	<-c.cleanupDone

	c.mu.Lock()
	c.entries = make(map[string]*list.Element)
	c.lruList.Init()
	c.mu.Unlock()
}

// Size returns the current number of entries in the cache.
func (c *identityCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
