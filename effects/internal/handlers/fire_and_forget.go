package handlers

import (
	"context"
	"sync"

	"github.com/google/uuid"
	effectmodel "github.com/on-the-ground/wrapkit/effects/internal/model"
)

func NewFireAndForgetHandler[T any](
	ctx context.Context,
	config effectmodel.EffectScopeConfig,
	handleFn func(context.Context, T),
	teardown func(),
) FireAndForgetHandler[T] {
	return FireAndForgetHandler[T]{
		fireAndForgetEffectScope: newFireAndForgetEffectScope(ctx, config, handleFn, teardown),
	}
}

type FireAndForgetHandler[T any] struct {
	*fireAndForgetEffectScope[T]
}

// FireAndForgetEffect enqueues payload for the handler goroutine.
// It reports false when the scope is already closed or ctx is done.
func (ffh FireAndForgetHandler[T]) FireAndForgetEffect(ctx context.Context, payload T) bool {
	if ctx.Err() != nil {
		return false
	}
	select {
	case <-ffh.stopCh:
		return false
	default:
	}

	select {
	case <-ctx.Done():
		return false
	case <-ffh.stopCh:
		return false
	case ffh.effectCh <- fireAndForgetEffectMessage[T]{payload: payload}:
		return true
	}
}

// fireAndForgetEffectScope owns one handler goroutine.
// Close stops intake, drains whatever is already buffered, runs teardown and
// waits for the goroutine to exit. Close is idempotent and safe for concurrent use.
type fireAndForgetEffectScope[T any] struct {
	EffectId string
	effectCh chan fireAndForgetEffectMessage[T]
	stopCh   chan struct{}
	doneCh   chan struct{}
	once     sync.Once
	teardown func()
}

func (ffs *fireAndForgetEffectScope[T]) Close() {
	ffs.once.Do(func() {
		close(ffs.stopCh)
		<-ffs.doneCh
		ffs.teardown()
	})
}

func newFireAndForgetEffectScope[T any](
	ctx context.Context,
	config effectmodel.EffectScopeConfig,
	handleFn func(context.Context, T),
	teardown func(),
) *fireAndForgetEffectScope[T] {
	ffs := &fireAndForgetEffectScope[T]{
		EffectId: uuid.New().String(),
		effectCh: make(chan fireAndForgetEffectMessage[T], config.BufferSize),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
		teardown: teardown,
	}

	go func() {
		defer close(ffs.doneCh)
		for {
			select {
			case msg := <-ffs.effectCh:
				handleFn(ctx, msg.payload)
			case <-ffs.stopCh:
				for {
					select {
					case msg := <-ffs.effectCh:
						handleFn(ctx, msg.payload)
					default:
						return
					}
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return ffs
}

type fireAndForgetEffectMessage[T any] struct {
	payload T
}
