// Package counter counts invocations of wrapped functions.
package counter

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"

	"github.com/on-the-ground/wrapkit/callkey"
	"github.com/on-the-ground/wrapkit/effects/log"
	"github.com/on-the-ground/wrapkit/wrap"
)

// ErrNotRegistered is returned by Count for a function that was never wrapped.
var ErrNotRegistered = errors.New("function not registered")

// Registry maps function identities to invocation counts.
type Registry struct {
	mu     sync.Mutex
	counts map[callkey.FuncID]uint64
}

func NewRegistry() *Registry {
	return &Registry{counts: make(map[callkey.FuncID]uint64)}
}

var defaultRegistry = sync.OnceValue(NewRegistry)

// Default returns the process-wide registry.
func Default() *Registry {
	return defaultRegistry()
}

// Register makes id known with a count of 0. Registering twice keeps the count.
func (r *Registry) Register(id callkey.FuncID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.counts[id]; !ok {
		r.counts[id] = 0
	}
}

// Increment adds one to id's count, registering it if needed, and returns the new count.
func (r *Registry) Increment(id callkey.FuncID) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[id]++
	return r.counts[id]
}

func (r *Registry) Count(id callkey.FuncID) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.counts[id]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNotRegistered, id)
	}
	return n, nil
}

// AllCounts returns a snapshot. Later increments do not show up in it.
func (r *Registry) AllCounts() map[callkey.FuncID]uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return maps.Clone(r.counts)
}

// Reset sets every registered count back to 0. Registrations are kept.
func (r *Registry) Reset(ctx context.Context) {
	r.mu.Lock()
	for id := range r.counts {
		r.counts[id] = 0
	}
	n := len(r.counts)
	r.mu.Unlock()

	log.Effect(ctx, log.LogInfo, "call counts reset", map[string]interface{}{
		"functions": n,
	})
}

// Layer counts every invocation of the wrapped Invoker under id, including
// failed ones. id is registered when the layer is built.
func Layer[R any](r *Registry, id callkey.FuncID) wrap.Middleware[R] {
	r.Register(id)
	return func(next wrap.Invoker[R]) wrap.Invoker[R] {
		return wrap.InvokerFunc[R](func(ctx context.Context, args callkey.Args) (R, error) {
			n := r.Increment(id)
			log.Effect(ctx, log.LogDebug, "call counted", map[string]interface{}{
				"func":  id.String(),
				"count": n,
			})
			return next.Invoke(ctx, args)
		})
	}
}
