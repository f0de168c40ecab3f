package handlers_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/on-the-ground/wrapkit/effects/internal/handlers"
	effectmodel "github.com/on-the-ground/wrapkit/effects/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestFireAndForgetHandler_BasicExecution(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var receivedPayload string
	done := make(chan bool)

	handler := handlers.NewFireAndForgetHandler(
		ctx,
		effectmodel.EffectScopeConfig{BufferSize: 10},
		func(ctx context.Context, msg string) {
			receivedPayload = msg
			done <- true
		},
		func() {}, // no-op teardown
	)
	defer handler.Close()

	assert.True(t, handler.FireAndForgetEffect(ctx, "hello"))

	select {
	case <-done:
		assert.Equal(t, "hello", receivedPayload)
	case <-time.After(1 * time.Second):
		t.Fatal("timeout waiting for handler")
	}
}

func TestFireAndForgetHandler_CloseDrainsBuffered(t *testing.T) {
	ctx := context.Background()

	var (
		mu       sync.Mutex
		received []int
	)
	tornDown := false

	handler := handlers.NewFireAndForgetHandler(
		ctx,
		effectmodel.NewEffectScopeConfig(16),
		func(ctx context.Context, msg int) {
			mu.Lock()
			received = append(received, msg)
			mu.Unlock()
		},
		func() { tornDown = true },
	)

	for i := 0; i < 10; i++ {
		handler.FireAndForgetEffect(ctx, i)
	}
	handler.Close()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, received)
	assert.True(t, tornDown)
}

func TestFireAndForgetHandler_SendAfterCloseIsRejected(t *testing.T) {
	ctx := context.Background()

	var called bool
	handler := handlers.NewFireAndForgetHandler(
		ctx,
		effectmodel.NewEffectScopeConfig(1),
		func(ctx context.Context, msg string) {
			called = true
		},
		func() {},
	)
	handler.Close()
	handler.Close()

	assert.False(t, handler.FireAndForgetEffect(ctx, "late"))
	assert.False(t, called, "handler should not have been called")
}

func TestFireAndForgetHandler_CancelContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	handler := handlers.NewFireAndForgetHandler(
		context.Background(),
		effectmodel.EffectScopeConfig{BufferSize: 0},
		func(ctx context.Context, msg string) {},
		func() {},
	)
	defer handler.Close()

	assert.False(t, handler.FireAndForgetEffect(ctx, "should-not-send"))
}
