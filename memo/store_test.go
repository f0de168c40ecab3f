package memo_test

import (
	"context"
	"testing"

	"github.com/on-the-ground/wrapkit/callkey"
	"github.com/on-the-ground/wrapkit/fault"
	"github.com/on-the-ground/wrapkit/memo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func key(t *testing.T, ns string, args ...any) callkey.Key {
	t.Helper()
	k, err := callkey.New(callkey.ID(ns, "f"), callkey.Of(args...))
	require.NoError(t, err)
	return k
}

func TestMemDBStore_BasicOperations(t *testing.T) {
	store, err := memo.NewMemDBStore()
	require.NoError(t, err)

	k := key(t, "ns", 1)

	_, ok, err := store.Get(k)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(k, "first"))
	require.NoError(t, store.Set(k, "second")) // last write wins

	v, ok, err := store.Get(k)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "second", v)

	n, err := store.Len()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, store.Clear())
	_, ok, err = store.Get(k)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemDBStore_NilResultIsCached(t *testing.T) {
	store, err := memo.NewMemDBStore()
	require.NoError(t, err)

	k := key(t, "ns", "nil")
	require.NoError(t, store.Set(k, nil))

	v, ok, err := store.Get(k)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestRistrettoStore_BasicOperations(t *testing.T) {
	store, err := memo.NewRistrettoStore(100)
	require.NoError(t, err)
	defer store.Close()

	k := key(t, "ns", 1)
	require.NoError(t, store.Set(k, 42))

	v, ok, err := store.Get(k)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 42, v)

	require.NoError(t, store.Clear())
	_, ok, err = store.Get(k)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRistrettoStore_RejectsNonPositiveBound(t *testing.T) {
	_, err := memo.NewRistrettoStore(0)
	assert.ErrorIs(t, err, fault.ErrConfiguration)
}

func TestCache_UnsupportedStoreOperations(t *testing.T) {
	store, err := memo.NewRistrettoStore(10)
	require.NoError(t, err)
	defer store.Close()

	c := memo.NewWithStore(store)
	_, err = c.ClearNamespace(context.Background(), "ns")
	assert.ErrorIs(t, err, memo.ErrUnsupported)
	_, err = c.Len()
	assert.ErrorIs(t, err, memo.ErrUnsupported)
}

func TestGenerationalStore_RotatesWholeGenerations(t *testing.T) {
	store, err := memo.NewGenerationalStore(2)
	require.NoError(t, err)

	k1, k2, k3, k4 := key(t, "ns", 1), key(t, "ns", 2), key(t, "ns", 3), key(t, "ns", 4)
	require.NoError(t, store.Set(k1, "one"))
	require.NoError(t, store.Set(k2, "two"))
	// k3 rotates {k1, k2} into the previous generation.
	require.NoError(t, store.Set(k3, "three"))

	n, err := store.Len()
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	v, ok, err := store.Get(k1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "one", v)

	// The hit on k1 copied it forward and filled the current generation, so
	// k4 rotates again and drops k2.
	require.NoError(t, store.Set(k4, "four"))
	_, ok, err = store.Get(k2)
	require.NoError(t, err)
	assert.False(t, ok)
	for _, k := range []callkey.Key{k1, k3, k4} {
		_, ok, err := store.Get(k)
		require.NoError(t, err)
		assert.True(t, ok, k.String())
	}

	require.NoError(t, store.Clear())
	n, err = store.Len()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestGenerationalStore_RejectsNonPositiveBound(t *testing.T) {
	_, err := memo.NewGenerationalStore(0)
	assert.ErrorIs(t, err, fault.ErrConfiguration)
}
