// Package memo caches the results of wrapped calls by (namespace, call key).
//
// The default store never evicts: memory grows with the number of distinct
// calls until Clear is called. That is an accepted tradeoff, not a bug; pick a
// RistrettoStore if a bound matters more than exactly-once computation.
//
// Under concurrency two callers missing on the same key may both compute; the
// last write wins. Callers that need single-flight semantics per key must add
// their own exclusivity above the Cache.
package memo

import (
	"context"
	"fmt"
	"sync"

	"github.com/on-the-ground/wrapkit/callkey"
	"github.com/on-the-ground/wrapkit/effects/log"
)

// Cache memoizes call results. The zero value is not usable; use New or NewWithStore.
type Cache struct {
	store Store
}

// New creates a Cache on a fresh MemDBStore.
func New() (*Cache, error) {
	store, err := NewMemDBStore()
	if err != nil {
		return nil, err
	}
	return NewWithStore(store), nil
}

// NewWithStore creates a Cache on store.
func NewWithStore(store Store) *Cache {
	return &Cache{store: store}
}

var defaultCache = sync.OnceValue(func() *Cache {
	c, err := New()
	if err != nil {
		panic(err)
	}
	return c
})

// Default returns the process-wide cache, created empty on first use.
// Applications that want isolation (tests, per-request caches) should own a
// Cache instead.
func Default() *Cache {
	return defaultCache()
}

// GetOrCompute returns the cached result for calling id with args, or runs
// compute once and caches its result. Errors from compute are returned and
// nothing is cached. Key errors (fault.ErrCacheKey) are returned before compute runs.
func (c *Cache) GetOrCompute(
	ctx context.Context,
	id callkey.FuncID,
	args callkey.Args,
	compute func(context.Context) (any, error),
) (any, error) {
	key, err := callkey.New(id, args)
	if err != nil {
		return nil, err
	}

	if v, ok, err := c.store.Get(key); err != nil {
		return nil, fmt.Errorf("memo: load %s: %w", key, err)
	} else if ok {
		log.Effect(ctx, log.LogDebug, "memo hit", map[string]interface{}{
			"func": id.String(),
			"key":  key.String(),
		})
		return v, nil
	}

	v, err := compute(ctx)
	if err != nil {
		return nil, err
	}

	if err := c.store.Set(key, v); err != nil {
		return nil, fmt.Errorf("memo: store %s: %w", key, err)
	}
	log.Effect(ctx, log.LogDebug, "memo stored", map[string]interface{}{
		"func": id.String(),
		"key":  key.String(),
	})
	return v, nil
}

// Clear empties every namespace.
func (c *Cache) Clear(ctx context.Context) error {
	if err := c.store.Clear(); err != nil {
		return fmt.Errorf("memo: clear: %w", err)
	}
	log.Effect(ctx, log.LogInfo, "memoization cleared", nil)
	return nil
}

// ClearNamespace drops the entries of one namespace, if the store supports it.
func (c *Cache) ClearNamespace(ctx context.Context, namespace string) (int, error) {
	nc, ok := c.store.(NamespaceClearer)
	if !ok {
		return 0, fmt.Errorf("memo: clear namespace %q: %w", namespace, ErrUnsupported)
	}
	n, err := nc.ClearNamespace(namespace)
	if err != nil {
		return 0, fmt.Errorf("memo: clear namespace %q: %w", namespace, err)
	}
	log.Effect(ctx, log.LogInfo, "memoization namespace cleared", map[string]interface{}{
		"namespace": namespace,
		"removed":   n,
	})
	return n, nil
}

// Len counts cached entries, if the store supports it.
func (c *Cache) Len() (int, error) {
	s, ok := c.store.(Sizer)
	if !ok {
		return 0, ErrUnsupported
	}
	return s.Len()
}
