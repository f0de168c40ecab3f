package rangeexec

import (
	"context"

	"github.com/on-the-ground/wrapkit/callkey"
	"github.com/on-the-ground/wrapkit/wrap"
)

// InvokerKernel runs inv once per sub-range with the sub-range bounds set as
// the keyword arguments startKey and endKey. Each worker invokes on its own
// copy of the argument list.
func InvokerKernel(inv wrap.Invoker[Output], startKey, endKey string) Kernel[callkey.Args] {
	return func(ctx context.Context, args callkey.Args, b Bounds) (Output, error) {
		return inv.Invoke(ctx, args.With(startKey, b.Start).With(endKey, b.End))
	}
}

// RunInvoker is Run for an Invoker whose domain bounds travel as keyword arguments.
func RunInvoker(
	ctx context.Context,
	e *Executor,
	inv wrap.Invoker[Output],
	args callkey.Args,
	startKey, endKey string,
	start, end float64,
	workers int,
) (Merged, error) {
	return Run(ctx, e, InvokerKernel(inv, startKey, endKey), args, start, end, workers)
}
