package memo

import (
	"context"

	"github.com/on-the-ground/wrapkit/callkey"
	"github.com/on-the-ground/wrapkit/shared/helper"
	"github.com/on-the-ground/wrapkit/wrap"
)

// Layer memoizes an Invoker under id.
func Layer[R any](c *Cache, id callkey.FuncID) wrap.Middleware[R] {
	return func(next wrap.Invoker[R]) wrap.Invoker[R] {
		return wrap.InvokerFunc[R](func(ctx context.Context, args callkey.Args) (R, error) {
			return helper.GetTypedValueOf[R](func() (any, error) {
				return c.GetOrCompute(ctx, id, args, func(ctx context.Context) (any, error) {
					return next.Invoke(ctx, args)
				})
			})
		})
	}
}

func Func1[I1, O any](
	c *Cache,
	id callkey.FuncID,
	fn func(context.Context, I1) (O, error),
) func(context.Context, I1) (O, error) {
	return func(ctx context.Context, i1 I1) (O, error) {
		return helper.GetTypedValueOf[O](func() (any, error) {
			return c.GetOrCompute(ctx, id, callkey.Of(i1), func(ctx context.Context) (any, error) {
				return fn(ctx, i1)
			})
		})
	}
}

func Func2[I1, I2, O any](
	c *Cache,
	id callkey.FuncID,
	fn func(context.Context, I1, I2) (O, error),
) func(context.Context, I1, I2) (O, error) {
	return func(ctx context.Context, i1 I1, i2 I2) (O, error) {
		return helper.GetTypedValueOf[O](func() (any, error) {
			return c.GetOrCompute(ctx, id, callkey.Of(i1, i2), func(ctx context.Context) (any, error) {
				return fn(ctx, i1, i2)
			})
		})
	}
}

func Func3[I1, I2, I3, O any](
	c *Cache,
	id callkey.FuncID,
	fn func(context.Context, I1, I2, I3) (O, error),
) func(context.Context, I1, I2, I3) (O, error) {
	return func(ctx context.Context, i1 I1, i2 I2, i3 I3) (O, error) {
		return helper.GetTypedValueOf[O](func() (any, error) {
			return c.GetOrCompute(ctx, id, callkey.Of(i1, i2, i3), func(ctx context.Context) (any, error) {
				return fn(ctx, i1, i2, i3)
			})
		})
	}
}
