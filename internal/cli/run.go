package cli

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/on-the-ground/wrapkit/callkey"
	"github.com/on-the-ground/wrapkit/config"
	"github.com/on-the-ground/wrapkit/counter"
	"github.com/on-the-ground/wrapkit/effects/log"
	"github.com/on-the-ground/wrapkit/fault"
	"github.com/on-the-ground/wrapkit/memo"
	"github.com/on-the-ground/wrapkit/rangeexec"
	"github.com/on-the-ground/wrapkit/retry"
	"github.com/on-the-ground/wrapkit/wrap"
	"github.com/spf13/cobra"
)

const (
	startKey = "start"
	endKey   = "end"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	Start     float64
	End       float64
	Step      float64
	Frequency float64
	Workers   int
	Repeat    int
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Sample sin²(2π·f·x) over [start, end) in parallel",
		Long: `Sample sin²(2π·f·x) on a grid of the given step over [start, end).

The domain is split across workers; each worker calls the kernel through
memoization, transient-failure retry, call counting and timing. Output is one
"x<TAB>y" line per sample, ordered by x.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSample(cmd, rootOpts, opts)
		},
	}

	cmd.Flags().Float64Var(&opts.Start, "start", 0, "domain start")
	cmd.Flags().Float64Var(&opts.End, "end", 1, "domain end (exclusive)")
	cmd.Flags().Float64Var(&opts.Step, "step", 0.01, "sampling step")
	cmd.Flags().Float64Var(&opts.Frequency, "freq", 1, "frequency f")
	cmd.Flags().IntVarP(&opts.Workers, "workers", "w", 4, "number of sub-ranges")
	cmd.Flags().IntVar(&opts.Repeat, "repeat", 1, "evaluate the domain this many times")

	return cmd
}

func runSample(cmd *cobra.Command, rootOpts *RootOptions, opts *RunOptions) error {
	if !(opts.Step > 0) {
		return fault.Invalid("step", opts.Step, "must be greater than 0")
	}
	if opts.Repeat < 1 {
		return fault.Invalid("repeat", opts.Repeat, "must be at least 1")
	}

	cfg, err := loadConfig(rootOpts)
	if err != nil {
		return err
	}
	zl, err := logger(rootOpts, cfg)
	if err != nil {
		return err
	}

	ctx, endOfLog := log.WithZapEffectHandler(cmd.Context(), cfg.Log.BufferSize, zl)
	defer endOfLog()

	p, err := newPipeline(cfg)
	if err != nil {
		return err
	}

	var merged rangeexec.Merged
	for range opts.Repeat {
		merged, err = rangeexec.RunInvoker(ctx, p.executor, p.invoker,
			callkey.Of(opts.Step, opts.Frequency), startKey, endKey,
			opts.Start, opts.End, opts.Workers)
		if err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	for i, x := range merged.Domain {
		fmt.Fprintf(out, "%.4f\t%.6f\n", x, merged.Values[i])
	}

	if rootOpts.Verbose {
		p.report(cmd)
	}
	return nil
}

type pipeline struct {
	executor *rangeexec.Executor
	invoker  wrap.Invoker[rangeexec.Output]
	cache    *memo.Cache
	counts   *counter.Registry
}

func newPipeline(cfg config.Config) (*pipeline, error) {
	executor, err := cfg.NewExecutor()
	if err != nil {
		return nil, err
	}
	resilient, err := cfg.ResilientPolicy()
	if err != nil {
		return nil, err
	}
	cache, err := cfg.NewCache()
	if err != nil {
		return nil, err
	}

	id := callkey.IDOf(sineSquared)
	counts := counter.NewRegistry()
	inv := wrap.Compose[rangeexec.Output](
		wrap.InvokerFunc[rangeexec.Output](sineSquared),
		wrap.Timed[rangeexec.Output](id),
		counter.Layer[rangeexec.Output](counts, id),
		memo.Layer[rangeexec.Output](cache, id),
		retry.ResilientLayer[rangeexec.Output](resilient),
	)

	return &pipeline{executor: executor, invoker: inv, cache: cache, counts: counts}, nil
}

func (p *pipeline) report(cmd *cobra.Command) {
	errOut := cmd.ErrOrStderr()
	counts := p.counts.AllCounts()
	ids := make([]callkey.FuncID, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	for _, id := range ids {
		fmt.Fprintf(errOut, "calls\t%s\t%d\n", id, counts[id])
	}
	if n, err := p.cache.Len(); err == nil {
		fmt.Fprintf(errOut, "cached\t%d\n", n)
	}
}

// sineSquared samples sin²(2π·f·x) at the multiples of step inside [start, end).
// Positional arguments are step and f.
func sineSquared(_ context.Context, args callkey.Args) (rangeexec.Output, error) {
	step, ok := args.Positional[0].(float64)
	if !ok {
		return rangeexec.Output{}, fmt.Errorf("step: unexpected type %T", args.Positional[0])
	}
	freq, ok := args.Positional[1].(float64)
	if !ok {
		return rangeexec.Output{}, fmt.Errorf("freq: unexpected type %T", args.Positional[1])
	}
	lo, _ := args.Keyword[startKey].(float64)
	hi, _ := args.Keyword[endKey].(float64)

	const eps = 1e-9
	var out rangeexec.Output
	// +0 turns a -0 first index into 0.
	for k := math.Ceil(lo/step-eps) + 0; k*step < hi-eps*step; k++ {
		x := k * step
		s := math.Sin(2 * math.Pi * freq * x)
		out.Domain = append(out.Domain, x)
		out.Values = append(out.Values, s*s)
	}
	return out, nil
}
