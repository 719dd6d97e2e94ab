// Package edge turns opaque nonces into exactly-once triggers.
package edge

import (
	"time"

	"github.com/patrickmn/go-cache"
)

const DefaultTTL = 30 * time.Minute

// Detector remembers which tokens have fired per key. A token fires the
// first time it is observed; re-deliveries of the same token are ignored.
type Detector struct {
	seen *cache.Cache
}

func NewDetector(ttl time.Duration) *Detector {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Detector{seen: cache.New(ttl, ttl*2)}
}

// Observe reports whether token is new for key and records it.
func (d *Detector) Observe(key, token string) bool {
	if token == "" {
		return false
	}
	return d.seen.Add(cacheKey(key, token), struct{}{}, cache.DefaultExpiration) == nil
}

// Prime records token without firing. Used for snapshot values that
// predate the subscription.
func (d *Detector) Prime(key, token string) {
	if token == "" {
		return
	}
	d.seen.SetDefault(cacheKey(key, token), struct{}{})
}

func (d *Detector) Len() int {
	return d.seen.ItemCount()
}

func cacheKey(key, token string) string {
	return key + "|" + token
}
