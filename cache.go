package aauth

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
)

// Cache is the cross-session cache collaborator. Values are opaque encoded
// bytes so that in-process and networked backends behave the same. A nil
// Cache on the Service means caching is disabled and every resolution
// re-reads the stores.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Delete(ctx context.Context, key string)
}

// Cache key namespaces. Writers must delete these keys synchronously as part
// of the write path, before the write is considered complete.
func rolePermissionsKey(prefix string, roleID int64) string {
	return fmt.Sprintf("%s:role:%d:permissions", prefix, roleID)
}

func roleRulesKey(prefix string, roleID int64) string {
	return fmt.Sprintf("%s:role:%d:abac", prefix, roleID)
}

func switchableRolesKey(prefix string, userID int64) string {
	return fmt.Sprintf("%s:user:%d:switchable_roles", prefix, userID)
}

// RistrettoCache is the in-process Cache backend.
type RistrettoCache struct {
	cache *ristretto.Cache
}

// NewRistrettoCache sizes a ristretto cache. Zero arguments fall back to
// defaults suitable for a few thousand cached roles.
func NewRistrettoCache(numCounters, maxCost, bufferItems int64) (*RistrettoCache, error) {
	if numCounters <= 0 {
		numCounters = 1e5
	}
	if maxCost <= 0 {
		maxCost = 1 << 26 // 64 MiB
	}
	if bufferItems <= 0 {
		bufferItems = 64
	}
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: numCounters,
		MaxCost:     maxCost,
		BufferItems: bufferItems,
	})
	if err != nil {
		return nil, err
	}
	return &RistrettoCache{cache: c}, nil
}

func (r *RistrettoCache) Get(_ context.Context, key string) ([]byte, bool) {
	v, ok := r.cache.Get(key)
	if !ok {
		return nil, false
	}
	b, ok := v.([]byte)
	return b, ok
}

func (r *RistrettoCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	r.cache.SetWithTTL(key, value, int64(len(value)), ttl)
	// make the write visible to immediate readers; resolution correctness
	// relies on deletes, not on set visibility, but tests read back directly
	r.cache.Wait()
}

func (r *RistrettoCache) Delete(_ context.Context, key string) {
	r.cache.Del(key)
}

// NoopCache disables caching while keeping call sites unconditional.
type NoopCache struct{}

func (NoopCache) Get(context.Context, string) ([]byte, bool)         { return nil, false }
func (NoopCache) Set(context.Context, string, []byte, time.Duration) {}
func (NoopCache) Delete(context.Context, string)                     {}
