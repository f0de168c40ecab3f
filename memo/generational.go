package memo

import (
	"sync"

	"github.com/on-the-ground/wrapkit/callkey"
	"github.com/on-the-ground/wrapkit/fault"
)

var _ Store = (*GenerationalStore)(nil)
var _ Sizer = (*GenerationalStore)(nil)

// GenerationalStore bounds memory with two generations of at most maxEntries
// each. When the current generation fills up it becomes the previous one and
// the old previous generation is dropped whole. Hits in the previous
// generation are copied forward, so entries in use survive a rotation.
//
// Unlike RistrettoStore, a Set is never refused and results stay until a
// rotation drops them.
type GenerationalStore struct {
	mu       sync.Mutex
	current  map[callkey.Key]any
	previous map[callkey.Key]any
	max      int
}

func NewGenerationalStore(maxEntries int) (*GenerationalStore, error) {
	if maxEntries <= 0 {
		return nil, fault.Invalid("maxEntries", maxEntries, "must be greater than 0")
	}
	return &GenerationalStore{
		current:  make(map[callkey.Key]any, maxEntries),
		previous: map[callkey.Key]any{},
		max:      maxEntries,
	}, nil
}

func (g *GenerationalStore) Get(key callkey.Key) (any, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if v, ok := g.current[key]; ok {
		return v, true, nil
	}
	v, ok := g.previous[key]
	if ok {
		g.put(key, v)
	}
	return v, ok, nil
}

func (g *GenerationalStore) Set(key callkey.Key, value any) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.put(key, value)
	return nil
}

func (g *GenerationalStore) put(key callkey.Key, value any) {
	if _, ok := g.current[key]; !ok && len(g.current) >= g.max {
		g.previous = g.current
		g.current = make(map[callkey.Key]any, g.max)
	}
	g.current[key] = value
}

func (g *GenerationalStore) Clear() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	clear(g.current)
	g.previous = map[callkey.Key]any{}
	return nil
}

// Len counts distinct keys across both generations.
func (g *GenerationalStore) Len() (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := len(g.current)
	for k := range g.previous {
		if _, ok := g.current[k]; !ok {
			n++
		}
	}
	return n, nil
}
