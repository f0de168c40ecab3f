package rangeexec_test

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/on-the-ground/wrapkit/callkey"
	"github.com/on-the-ground/wrapkit/effects/log"
	"github.com/on-the-ground/wrapkit/fault"
	"github.com/on-the-ground/wrapkit/rangeexec"
	"github.com/on-the-ground/wrapkit/wrap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type sampling struct {
	Step    float64
	Scratch []float64
}

func (s sampling) Clone() sampling {
	return sampling{Step: s.Step, Scratch: append([]float64(nil), s.Scratch...)}
}

// squares samples x² on [Start, End) in steps, writing into the scratch buffer
// it was handed to catch sharing between workers.
func squares(_ context.Context, args sampling, b rangeexec.Bounds) (rangeexec.Output, error) {
	var out rangeexec.Output
	for x := b.Start; x < b.End-1e-9; x += args.Step {
		args.Scratch[0] = x
		out.Domain = append(out.Domain, x)
		out.Values = append(out.Values, args.Scratch[0]*args.Scratch[0])
	}
	out.Aux = []any{b.Index}
	return out, nil
}

func newExecutor(t *testing.T, cfg rangeexec.Config) *rangeexec.Executor {
	t.Helper()
	e, err := rangeexec.New(cfg)
	require.NoError(t, err)
	return e
}

func TestNew_ValidatesEagerly(t *testing.T) {
	for _, cfg := range []rangeexec.Config{
		{MaxWorkers: 0},
		{MaxWorkers: 4, MaxConcurrentWorkers: -1},
	} {
		e, err := rangeexec.New(cfg)
		assert.Nil(t, e)
		assert.ErrorIs(t, err, fault.ErrConfiguration)
	}
}

func TestRun_MergesAllWorkers(t *testing.T) {
	e := newExecutor(t, rangeexec.Config{MaxWorkers: 8})

	merged, err := rangeexec.Run(context.Background(), e, squares, sampling{Step: 1, Scratch: make([]float64, 1)}, 0, 10, 5)

	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, merged.Domain)
	assert.Equal(t, []float64{0, 1, 4, 9, 16, 25, 36, 49, 64, 81}, merged.Values)
	assert.Equal(t, []any{0, 1, 2, 3, 4}, merged.Aux)
}

func TestRun_IsDeterministic(t *testing.T) {
	e := newExecutor(t, rangeexec.Config{MaxWorkers: 16})
	jitter := func(ctx context.Context, args sampling, b rangeexec.Bounds) (rangeexec.Output, error) {
		// Later workers finish first.
		time.Sleep(time.Duration(16-b.Index) * time.Millisecond)
		return squares(ctx, args, b)
	}

	first, err := rangeexec.Run(context.Background(), e, jitter, sampling{Step: 0.25, Scratch: make([]float64, 1)}, -3, 3, 7)
	require.NoError(t, err)
	for range 3 {
		again, err := rangeexec.Run(context.Background(), e, jitter, sampling{Step: 0.25, Scratch: make([]float64, 1)}, -3, 3, 7)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.IsIncreasing(t, first.Domain)
}

func TestRun_WorkerCountBounds(t *testing.T) {
	e := newExecutor(t, rangeexec.Config{MaxWorkers: 4})
	args := sampling{Step: 1, Scratch: make([]float64, 1)}

	for _, workers := range []int{0, -1, 5} {
		_, err := rangeexec.Run(context.Background(), e, squares, args, 0, 10, workers)
		var cfgErr *fault.ConfigError
		require.ErrorAs(t, err, &cfgErr, "workers=%d", workers)
		assert.Equal(t, "workers", cfgErr.Param)
	}

	_, err := rangeexec.Run(context.Background(), e, squares, args, math.NaN(), 10, 2)
	assert.ErrorIs(t, err, fault.ErrConfiguration)
}

func TestRun_WorkerFailureFailsWholeRun(t *testing.T) {
	e := newExecutor(t, rangeexec.Config{MaxWorkers: 8})
	boom := errors.New("kernel diverged")
	var finished atomic.Int32

	failing := func(ctx context.Context, args sampling, b rangeexec.Bounds) (rangeexec.Output, error) {
		if b.Index == 2 {
			return rangeexec.Output{}, boom
		}
		defer finished.Add(1)
		return squares(ctx, args, b)
	}

	merged, err := rangeexec.Run(context.Background(), e, failing, sampling{Step: 1, Scratch: make([]float64, 1)}, 0, 8, 4)

	assert.Zero(t, merged.Domain)
	assert.ErrorIs(t, err, fault.ErrWorkerFailure)
	assert.ErrorIs(t, err, boom)
	var werr *fault.WorkerError
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, 2, werr.Index)
	assert.Equal(t, 4.0, werr.Start)
	assert.Equal(t, 6.0, werr.End)
	assert.Equal(t, int32(3), finished.Load(), "the run waits for every worker")
}

func TestRun_PanicBecomesWorkerError(t *testing.T) {
	e := newExecutor(t, rangeexec.Config{MaxWorkers: 2})
	panicking := func(ctx context.Context, args sampling, b rangeexec.Bounds) (rangeexec.Output, error) {
		if b.Index == 1 {
			panic("index out of range")
		}
		return squares(ctx, args, b)
	}

	_, err := rangeexec.Run(context.Background(), e, panicking, sampling{Step: 1, Scratch: make([]float64, 1)}, 0, 4, 2)

	var werr *fault.WorkerError
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, 1, werr.Index)
	assert.ErrorContains(t, err, "panic: index out of range")
}

func TestRun_ConcurrencyCap(t *testing.T) {
	e := newExecutor(t, rangeexec.Config{MaxWorkers: 8, MaxConcurrentWorkers: 2})
	var running, peak atomic.Int32

	tracked := func(ctx context.Context, args sampling, b rangeexec.Bounds) (rangeexec.Output, error) {
		n := running.Add(1)
		defer running.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		return squares(ctx, args, b)
	}

	_, err := rangeexec.Run(context.Background(), e, tracked, sampling{Step: 1, Scratch: make([]float64, 1)}, 0, 8, 8)
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestRun_CancelledContext(t *testing.T) {
	e := newExecutor(t, rangeexec.Config{MaxWorkers: 2, MaxConcurrentWorkers: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	blocking := func(ctx context.Context, _ sampling, _ rangeexec.Bounds) (rangeexec.Output, error) {
		<-ctx.Done()
		return rangeexec.Output{}, ctx.Err()
	}
	_, err := rangeexec.Run(ctx, e, blocking, sampling{}, 0, 1, 2)

	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, fault.ErrWorkerFailure)
}

func TestRunInvoker_PassesBoundsAsKeywords(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	ctx, endOfLog := log.WithZapEffectHandler(context.Background(), 16, zap.New(core))

	e := newExecutor(t, rangeexec.Config{MaxWorkers: 4})
	base := wrap.InvokerFunc[rangeexec.Output](func(ctx context.Context, args callkey.Args) (rangeexec.Output, error) {
		lo := args.Keyword["lo"].(float64)
		hi := args.Keyword["hi"].(float64)
		scale := args.Positional[0].(float64)
		return rangeexec.Output{
			Domain: []float64{lo, (lo + hi) / 2},
			Values: []float64{lo * scale, (lo + hi) / 2 * scale},
		}, nil
	})

	merged, err := rangeexec.RunInvoker(ctx, e, base, callkey.Of(10.0), "lo", "hi", 0, 4, 2)
	endOfLog()

	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 2, 3}, merged.Domain)
	assert.Equal(t, []float64{0, 10, 20, 30}, merged.Values)

	started := logs.FilterMessage("range run started").All()
	require.Len(t, started, 1)
	run := started[0].ContextMap()["run"]
	assert.NotEmpty(t, run)
	assert.Equal(t, 1, logs.FilterMessage("range run merged").FilterField(zap.Any("run", run)).Len())
}
