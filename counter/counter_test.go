package counter_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/on-the-ground/wrapkit/callkey"
	"github.com/on-the-ground/wrapkit/counter"
	"github.com/on-the-ground/wrapkit/wrap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	fooID = callkey.ID("pkg/a", "foo")
	barID = callkey.ID("pkg/b", "foo")
)

func TestRegistry_CountRequiresRegistration(t *testing.T) {
	r := counter.NewRegistry()

	_, err := r.Count(fooID)
	assert.ErrorIs(t, err, counter.ErrNotRegistered)

	r.Register(fooID)
	n, err := r.Count(fooID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRegistry_IncrementIsPerFunction(t *testing.T) {
	r := counter.NewRegistry()

	assert.Equal(t, uint64(1), r.Increment(fooID))
	assert.Equal(t, uint64(2), r.Increment(fooID))
	assert.Equal(t, uint64(1), r.Increment(barID))

	r.Register(fooID)
	n, err := r.Count(fooID)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n, "re-registering keeps the count")
}

func TestRegistry_SnapshotIsIsolated(t *testing.T) {
	r := counter.NewRegistry()
	for range 5 {
		r.Increment(fooID)
	}

	snapshot := r.AllCounts()
	r.Increment(fooID)
	r.Increment(barID)

	assert.Equal(t, map[callkey.FuncID]uint64{fooID: 5}, snapshot)

	snapshot[fooID] = 100
	n, err := r.Count(fooID)
	require.NoError(t, err)
	assert.Equal(t, uint64(6), n)
}

func TestRegistry_ConcurrentIncrements(t *testing.T) {
	r := counter.NewRegistry()

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 20 {
				r.Increment(fooID)
			}
		}()
	}
	wg.Wait()

	n, err := r.Count(fooID)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), n)
}

func TestRegistry_ResetKeepsRegistrations(t *testing.T) {
	r := counter.NewRegistry()
	r.Increment(fooID)
	r.Register(barID)

	r.Reset(context.Background())

	assert.Equal(t, map[callkey.FuncID]uint64{fooID: 0, barID: 0}, r.AllCounts())
}

func TestLayer_CountsEveryInvocation(t *testing.T) {
	r := counter.NewRegistry()
	boom := errors.New("boom")
	base := wrap.InvokerFunc[int](func(ctx context.Context, args callkey.Args) (int, error) {
		if args.Positional[0].(int) < 0 {
			return 0, boom
		}
		return 1, nil
	})

	inv := wrap.Compose[int](base, counter.Layer[int](r, fooID))

	n, err := r.Count(fooID)
	require.NoError(t, err, "registered when the layer is built")
	assert.Zero(t, n)

	_, err = inv.Invoke(context.Background(), callkey.Of(1))
	require.NoError(t, err)
	_, err = inv.Invoke(context.Background(), callkey.Of(-1))
	assert.ErrorIs(t, err, boom)

	n, err = r.Count(fooID)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)
}
