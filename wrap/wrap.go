// Package wrap composes policy layers (cache, retry, counter, redirection,
// timing) around a base callable.
//
// Composition is explicit: the caller lists the layers in order and the first
// layer is the outermost one.
//
//	inv := wrap.Compose(base,
//	    counter.Layer[float64](reg, id),
//	    memo.Layer[float64](cache, id),
//	)
package wrap

import (
	"context"
	"time"

	"github.com/on-the-ground/wrapkit/callkey"
	"github.com/on-the-ground/wrapkit/effects/log"
	"github.com/rickb777/date/v2/timespan"
)

// Invoker is the single capability every wrapped callable exposes.
type Invoker[R any] interface {
	Invoke(ctx context.Context, args callkey.Args) (R, error)
}

// InvokerFunc adapts a plain function to Invoker.
type InvokerFunc[R any] func(ctx context.Context, args callkey.Args) (R, error)

func (f InvokerFunc[R]) Invoke(ctx context.Context, args callkey.Args) (R, error) {
	return f(ctx, args)
}

// Middleware decorates an Invoker.
type Middleware[R any] func(next Invoker[R]) Invoker[R]

// Compose wraps base with layers; layers[0] ends up outermost.
func Compose[R any](base Invoker[R], layers ...Middleware[R]) Invoker[R] {
	inv := base
	for i := len(layers) - 1; i >= 0; i-- {
		if layers[i] != nil {
			inv = layers[i](inv)
		}
	}
	return inv
}

// When returns mw if enabled, otherwise a pass-through layer.
// It replaces toggling decorators with a global flag at definition time.
func When[R any](enabled bool, mw Middleware[R]) Middleware[R] {
	if !enabled {
		return func(next Invoker[R]) Invoker[R] { return next }
	}
	return mw
}

// Timed logs the wall-clock span of every call at info level.
func Timed[R any](id callkey.FuncID) Middleware[R] {
	return func(next Invoker[R]) Invoker[R] {
		return InvokerFunc[R](func(ctx context.Context, args callkey.Args) (R, error) {
			start := time.Now()
			res, err := next.Invoke(ctx, args)
			span := timespan.BetweenTimes(start, time.Now())
			log.Effect(ctx, log.LogInfo, "call timed", map[string]interface{}{
				"func":     id.String(),
				"start":    span.Start(),
				"duration": span.Duration(),
				"failed":   err != nil,
			})
			return res, err
		})
	}
}
