package resolver

import (
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/dancret/groovebox/internal/track"
)

// RequestCache maps an opaque resolver-specific key to resolved tracks with a
// TTL, letting a resolver skip I/O on a hit.
type RequestCache interface {
	TryGet(key string) ([]track.Track, bool)
	Set(key string, tracks []track.Track, ttl time.Duration)
}

// memoryCache backs RequestCache with an expiring in-process cache.
type memoryCache struct {
	c *gocache.Cache
}

// NewRequestCache creates an in-memory TTL cache. defaultTTL applies when Set
// is called with a zero ttl.
func NewRequestCache(defaultTTL time.Duration) RequestCache {
	return &memoryCache{c: gocache.New(defaultTTL, 2*defaultTTL)}
}

func (m *memoryCache) TryGet(key string) ([]track.Track, bool) {
	v, ok := m.c.Get(key)
	if !ok {
		return nil, false
	}
	tracks, ok := v.([]track.Track)
	return tracks, ok
}

func (m *memoryCache) Set(key string, tracks []track.Track, ttl time.Duration) {
	if ttl <= 0 {
		ttl = gocache.DefaultExpiration
	}
	m.c.Set(key, tracks, ttl)
}
