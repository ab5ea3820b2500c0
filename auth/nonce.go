package auth

import (
	"sync"
	"time"

	"github.com/maypok86/otter"
)

// NonceCache is a bounded, TTL-expiring set of seen (client_id, nonce)
// pairs used to detect replay. otter provides the capacity-bounded
// eviction and per-entry TTL; the mutex makes the check-and-insert
// sequence atomic, since otter's Get+Set pair is not itself compound-atomic.
type NonceCache struct {
	mu    sync.Mutex
	cache otter.Cache[string, struct{}]
}

// NewNonceCache builds a cache bounded to cap entries, each expiring after ttl.
func NewNonceCache(cap int, ttl time.Duration) *NonceCache {
	cache, err := otter.MustBuilder[string, struct{}](cap).
		Cost(func(_ string, _ struct{}) uint32 { return 1 }).
		WithTTL(ttl).
		Build()
	if err != nil {
		panic("auth: failed to build nonce cache: " + err.Error())
	}
	return &NonceCache{cache: cache}
}

// CheckAndInsert reports whether (clientID, nonce) is new. It atomically
// inserts the pair so a concurrent duplicate is rejected, per spec §4.3's
// "only the first occurrence is accepted" invariant.
func (n *NonceCache) CheckAndInsert(clientID, nonce string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	key := clientID + ":" + nonce
	if _, found := n.cache.Get(key); found {
		return false
	}
	n.cache.Set(key, struct{}{})
	return true
}
