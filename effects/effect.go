package effects

import (
	"context"
	"errors"

	"github.com/on-the-ground/wrapkit/effects/internal/handlers"
	"github.com/on-the-ground/wrapkit/effects/internal/helper"
	"go.uber.org/zap"

	effectmodel "github.com/on-the-ground/wrapkit/effects/internal/model"
)

// ErrNoEffectHandler is returned when an effect is performed in a context
// that has no handler registered for it.
var ErrNoEffectHandler = effectmodel.ErrNoEffectHandler

// WithFireAndForgetEffectHandler registers a fire-and-forget effect handler for a given effect enum.
//
// Suitable for one-shot effects like logging or forwarding captured output.
// This handler executes without returning a result.
//
// Usage:
//
//	ctx, end := WithFireAndForgetEffectHandler(ctx, 16, MyEffectEnum, handleFn)
//	defer end()
func WithFireAndForgetEffectHandler[P any](
	ctx context.Context,
	bufferSize int,
	enum effectmodel.EffectEnum,
	handleFn func(context.Context, P),
	teardown ...func(),
) (context.Context, func() context.Context) {
	logger := zap.L()
	td := normalizeTeardown(teardown)
	handler := handlers.NewFireAndForgetHandler(ctx, effectmodel.NewEffectScopeConfig(bufferSize), handleFn, td)
	ctxWith := context.WithValue(ctx, enum, handler)
	logger.Sugar().Debugf("created fire/forget effect handler: effectId: %v, enum: %v", handler.EffectId, enum)

	return ctxWith, func() context.Context {
		handler.Close()
		logger.Sugar().Debugf("closed fire/forget effect handler: effectId: %v, enum: %v", handler.EffectId, enum)
		return ctx
	}
}

// FireAndForgetEffect triggers a fire-and-forget effect for the given enum and payload.
//
// The handler will process the payload asynchronously.
// Returns ErrNoEffectHandler if nothing is registered for enum, and an error if
// the registered handler has a different payload type.
func FireAndForgetEffect[P any](
	ctx context.Context,
	enum effectmodel.EffectEnum,
	payload P,
) error {
	raw, err := helper.GetHandler(ctx, enum)
	if err != nil {
		return err
	}
	handler, ok := raw.(handlers.FireAndForgetHandler[P])
	if !ok {
		return errors.New("effect handler payload type mismatch")
	}
	handler.FireAndForgetEffect(ctx, payload)
	return nil
}

// HasHandler reports whether a handler for enum is registered in ctx.
func HasHandler(ctx context.Context, enum effectmodel.EffectEnum) bool {
	_, err := helper.GetHandler(ctx, enum)
	return err == nil
}

// normalizeTeardown flattens optional teardown functions into a single callable.
//
// Accepts either 0 or 1 teardown functions. Panics if more than one is passed.
func normalizeTeardown(teardown []func()) func() {
	switch len(teardown) {
	case 1:
		return teardown[0]
	case 0:
		return func() {}
	default:
		panic("normalizeTeardown: only one or zero teardown functions allowed")
	}
}
