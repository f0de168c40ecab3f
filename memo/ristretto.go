package memo

import (
	"fmt"

	ristretto "github.com/dgraph-io/ristretto/v2"
	"github.com/on-the-ground/wrapkit/callkey"
	"github.com/on-the-ground/wrapkit/fault"
)

var _ Store = RistrettoStore{}

// RistrettoStore is a bounded, admission-controlled store. It may drop or
// refuse entries, so a Cache backed by it can recompute an already cached
// call. Use it only when unbounded growth of MemDBStore is not acceptable.
type RistrettoStore struct {
	cache *ristretto.Cache[string, any]
}

// NewRistrettoStore keeps roughly maxEntries results; every entry costs 1.
func NewRistrettoStore(maxEntries int64) (RistrettoStore, error) {
	if maxEntries <= 0 {
		return RistrettoStore{}, fault.Invalid("maxEntries", maxEntries, "must be greater than 0")
	}
	cache, err := ristretto.NewCache(&ristretto.Config[string, any]{
		NumCounters: maxEntries * 10, // ristretto recommends 10x the expected item count.
		MaxCost:     maxEntries,
		BufferItems: 64,
		// Costs count entries, not bytes.
		IgnoreInternalCost: true,
	})
	if err != nil {
		return RistrettoStore{}, fmt.Errorf("memo: create ristretto cache: %w", err)
	}
	return RistrettoStore{cache: cache}, nil
}

func (r RistrettoStore) Get(key callkey.Key) (any, bool, error) {
	v, ok := r.cache.Get(entryID(key))
	return v, ok, nil
}

// Set waits for the write buffer so the entry is visible to the next Get,
// unless the admission policy rejected it.
func (r RistrettoStore) Set(key callkey.Key, value any) error {
	if r.cache.Set(entryID(key), value, 1) {
		r.cache.Wait()
	}
	return nil
}

func (r RistrettoStore) Clear() error {
	r.cache.Clear()
	return nil
}

// Close releases the cache's background goroutines.
func (r RistrettoStore) Close() {
	r.cache.Close()
}
