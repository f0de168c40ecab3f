package memo_test

import (
	"context"
	"testing"

	"github.com/on-the-ground/wrapkit/callkey"
	"github.com/on-the-ground/wrapkit/memo"
)

func naiveFib(n int) int {
	if n <= 1 {
		return n
	}
	return naiveFib(n-1) + naiveFib(n-2)
}

func BenchmarkNaiveFib20(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = naiveFib(20)
	}
}

func memoFib(c *memo.Cache) func(context.Context, int) (int, error) {
	var fib func(context.Context, int) (int, error)
	fib = memo.Func1(c, callkey.ID("bench", "fib"), func(ctx context.Context, n int) (int, error) {
		if n <= 1 {
			return n, nil
		}
		a, err := fib(ctx, n-1)
		if err != nil {
			return 0, err
		}
		b, err := fib(ctx, n-2)
		return a + b, err
	})
	return fib
}

func benchmarkMemoFib(b *testing.B, store memo.Store) {
	fib := memoFib(memo.NewWithStore(store))
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := fib(ctx, 20); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkMemoFib20_MemDB(b *testing.B) {
	store, err := memo.NewMemDBStore()
	if err != nil {
		b.Fatal(err)
	}
	benchmarkMemoFib(b, store)
}

func BenchmarkMemoFib20_Generational(b *testing.B) {
	store, err := memo.NewGenerationalStore(32)
	if err != nil {
		b.Fatal(err)
	}
	benchmarkMemoFib(b, store)
}

func BenchmarkMemoFib20_Ristretto(b *testing.B) {
	store, err := memo.NewRistrettoStore(32)
	if err != nil {
		b.Fatal(err)
	}
	defer store.Close()
	benchmarkMemoFib(b, store)
}
