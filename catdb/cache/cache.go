// Package cache holds the in-memory caches shared between the tracker and the web daemon.
package cache

import (
	"fmt"
	"sync"

	"github.com/golang/groupcache/lru"
	"github.com/jellydator/ttlcache/v3"
	"github.com/mitchellh/hashstructure/v2"
	"github.com/rotblauer/motiond/params"
	"github.com/rotblauer/motiond/types/fix"
)

// LastKnown caches the most recent fix per tracker name.
type LastKnown struct {
	c *ttlcache.Cache[string, fix.Fix]
}

func NewLastKnown() *LastKnown {
	return &LastKnown{
		c: ttlcache.New[string, fix.Fix](
			ttlcache.WithTTL[string, fix.Fix](params.CacheLastKnownTTL)),
	}
}

// Set stores f unless a newer fix is already cached.
func (l *LastKnown) Set(name string, f fix.Fix) {
	if it := l.c.Get(name); it != nil && it.Value().ObservedAt.After(f.ObservedAt) {
		return
	}
	l.c.Set(name, f, ttlcache.DefaultTTL)
}

func (l *LastKnown) Get(name string) (fix.Fix, bool) {
	it := l.c.Get(name)
	if it == nil {
		return fix.Fix{}, false
	}
	return it.Value(), true
}

// Names returns the tracker names with a cached fix.
func (l *LastKnown) Names() []string {
	return l.c.Keys()
}

// NewDedupePassLRUFunc returns a func that is true the first time it sees a fix,
// and false for a repeat of any of the last size fixes.
// Fixes are identified by a hash of their Key.
func NewDedupePassLRUFunc(size int) func(fix.Fix) bool {
	var mu sync.Mutex
	dedupeCache := lru.New(size)
	return func(f fix.Fix) bool {
		hash, err := hashstructure.Hash(f.Key(), hashstructure.FormatV2, nil)
		if err != nil {
			return false
		}
		key := fmt.Sprintf("%d", hash)
		mu.Lock()
		defer mu.Unlock()
		if _, ok := dedupeCache.Get(key); ok {
			return false
		}
		dedupeCache.Add(key, true)
		return true
	}
}
