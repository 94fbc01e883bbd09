// Package ratelimit implements the fixed 60-second sliding-window limiter
// at the edge (spec §4.2): 100 requests per window per caller identity,
// fail-open on store errors. The mutex-guarded map shape is grounded on
// core/firewall.go's block-list pattern; RateBucket itself (spec §3) is
// modeled as this package's Store contract rather than a standalone struct,
// since it is transient per-window counter state, not a durable entity.
package ratelimit

import (
	"strconv"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/benbjohnson/clock"
)

// Store is the counter backend. Incr atomically bumps the count for
// (identityID, window) and returns the post-increment count.
type Store interface {
	Incr(identityID string, window int64) (int64, error)
}

// Limiter enforces a fixed window of `limit` requests per `windowSeconds`.
// Store errors fail open: the caller is admitted and the event is left for
// the caller to log as rate_limiter_unavailable.
type Limiter struct {
	store         Store
	windowSeconds int64
	limit         int64
	clock         clock.Clock
}

func New(store Store, windowSeconds, limit int64, c clock.Clock) *Limiter {
	if c == nil {
		c = clock.New()
	}
	return &Limiter{store: store, windowSeconds: windowSeconds, limit: limit, clock: c}
}

// Allow reports whether the request should proceed, and if not, the number
// of seconds until the current window resets (for Retry-After). storeErr is
// non-nil only when the store itself failed; Allow still returns true in
// that case (fail-open) so the caller can log the distinct event.
func (l *Limiter) Allow(identityID string) (allowed bool, retryAfterSeconds int64, storeErr error) {
	now := l.clock.Now().Unix()
	window := now / l.windowSeconds
	count, err := l.store.Incr(identityID, window)
	if err != nil {
		return true, 0, err
	}
	if count > l.limit {
		windowEnd := (window + 1) * l.windowSeconds
		return false, windowEnd - now, nil
	}
	return true, 0, nil
}

// MapStore is the single-process in-memory fallback Store (spec §4.2
// explicitly permits one): a mutex-guarded map keyed by identity+window,
// the same shape as core/firewall.go's Firewall.
type MapStore struct {
	mu     sync.Mutex
	counts map[string]int64
}

func NewMapStore() *MapStore {
	return &MapStore{counts: make(map[string]int64)}
}

func (m *MapStore) Incr(identityID string, window int64) (int64, error) {
	key := bucketKey(identityID, window)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[key]++
	return m.counts[key], nil
}

// LRUStore bounds memory for deployments with many distinct callers by
// evicting the least-recently-touched identity+window bucket once capacity
// is hit. Eviction does not distinguish expired windows from the current
// one: when more than capacity buckets are touched within one window, a
// live bucket can be evicted and that caller's count restarts from zero.
type LRUStore struct {
	mu    sync.Mutex
	cache *lru.Cache[string, int64]
}

func NewLRUStore(capacity int) (*LRUStore, error) {
	c, err := lru.New[string, int64](capacity)
	if err != nil {
		return nil, err
	}
	return &LRUStore{cache: c}, nil
}

func (s *LRUStore) Incr(identityID string, window int64) (int64, error) {
	key := bucketKey(identityID, window)
	s.mu.Lock()
	defer s.mu.Unlock()
	count, _ := s.cache.Get(key)
	count++
	s.cache.Add(key, count)
	return count, nil
}

func bucketKey(identityID string, window int64) string {
	return identityID + ":" + strconv.FormatInt(window, 10)
}
