// Package retry retries wrapped calls with exponential backoff.
//
// Policy is the generic flavour: the wrapped function reports success with a
// literal true and anything else counts as a failed attempt. Resilient is the
// I/O flavour: the wrapped function returns a value or an error and only
// transient errors are retried.
//
// Both share the same arithmetic. With an initial delay d, a factor b and n
// retries, the waits are d, d·b, …, d·b^(n−1), and a call that never succeeds
// sleeps d·(b^n − 1)/(b − 1) in total. Every wait is interruptible through the
// context.
package retry

import (
	"context"
	"time"

	"github.com/on-the-ground/wrapkit/callkey"
	"github.com/on-the-ground/wrapkit/effects/log"
	"github.com/on-the-ground/wrapkit/fault"
	"github.com/on-the-ground/wrapkit/wrap"
	"github.com/rickb777/date/v2/timespan"
)

// PolicyConfig configures a Policy.
type PolicyConfig struct {
	// MaxAttempts is the number of retries after the first call. 0 disables retries.
	MaxAttempts int
	// InitialDelay is the wait before the first retry. Must be positive.
	InitialDelay time.Duration
	// BackoffFactor multiplies the delay after each retry. Must be greater than 1.
	BackoffFactor float64
}

// Attempt describes one finished invocation of the wrapped function.
type Attempt struct {
	// Number is 0 for the first call and k for the k-th retry.
	Number int
	Span   timespan.TimeSpan
	// Waited is the delay slept before this attempt.
	Waited time.Duration
	OK     bool
}

// Policy is an immutable, validated retry configuration.
// It is safe for concurrent use; each Run has its own state.
type Policy struct {
	cfg       PolicyConfig
	onAttempt func(Attempt)
}

// PolicyOption customizes a Policy.
type PolicyOption func(*Policy)

// WithAttemptObserver registers fn to be called after every attempt.
func WithAttemptObserver(fn func(Attempt)) PolicyOption {
	return func(p *Policy) { p.onAttempt = fn }
}

// NewPolicy validates cfg eagerly and returns a *fault.ConfigError on violation.
func NewPolicy(cfg PolicyConfig, opts ...PolicyOption) (*Policy, error) {
	if err := validateBackoff(cfg.MaxAttempts, cfg.BackoffFactor); err != nil {
		return nil, err
	}
	if cfg.InitialDelay <= 0 {
		return nil, fault.Invalid("initialDelay", cfg.InitialDelay, "must be greater than 0")
	}
	p := &Policy{cfg: cfg}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Config returns the validated configuration.
func (p *Policy) Config() PolicyConfig { return p.cfg }

// WorstCaseWait is the total sleep of a Run that never succeeds.
func (p *Policy) WorstCaseWait() time.Duration {
	return WorstCaseWait(p.cfg.MaxAttempts, p.cfg.InitialDelay, p.cfg.BackoffFactor)
}

// Run calls f until it returns true or the retries are used up.
//
// Only a literal true counts as success; there is no richer result
// interpretation. Exhaustion reports (false, nil). The only error Run returns is
// ctx's, when the context ends during a wait.
func (p *Policy) Run(ctx context.Context, f func(context.Context) bool) (bool, error) {
	return p.run(ctx, func(ctx context.Context) (bool, error) {
		return f(ctx), nil
	})
}

// run stops at the first error f returns, without consuming further attempts.
func (p *Policy) run(ctx context.Context, f func(context.Context) (bool, error)) (bool, error) {
	b := newBackoff(p.cfg.MaxAttempts, p.cfg.InitialDelay, p.cfg.BackoffFactor)

	if ok, err := p.attempt(ctx, 0, 0, f); ok || err != nil {
		return ok, err
	}
	for n := 1; ; n++ {
		delay, ok := b.next()
		if !ok {
			log.Effect(ctx, log.LogWarn, "retry attempts exhausted", map[string]interface{}{
				"attempts": n,
			})
			return false, nil
		}
		log.Effect(ctx, log.LogDebug, "retrying after failure", map[string]interface{}{
			"attempt": n,
			"delay":   delay,
		})
		if err := sleep(ctx, delay); err != nil {
			return false, err
		}
		if ok, err := p.attempt(ctx, n, delay, f); ok || err != nil {
			return ok, err
		}
	}
}

func (p *Policy) attempt(ctx context.Context, n int, waited time.Duration, f func(context.Context) (bool, error)) (bool, error) {
	start := time.Now()
	ok, err := f(ctx)
	ok = ok && err == nil
	if p.onAttempt != nil {
		p.onAttempt(Attempt{
			Number: n,
			Span:   timespan.BetweenTimes(start, time.Now()),
			Waited: waited,
			OK:     ok,
		})
	}
	if err != nil {
		log.Effect(ctx, log.LogError, "attempt failed with error", map[string]interface{}{
			"attempt": n,
			"error":   err.Error(),
		})
		return false, err
	}
	return ok, nil
}

// Layer adapts p to boolean Invokers. A false result is a failed attempt and
// is retried. An error from the wrapped Invoker ends the loop at once and is
// returned with false.
func Layer(p *Policy) wrap.Middleware[bool] {
	return func(next wrap.Invoker[bool]) wrap.Invoker[bool] {
		return wrap.InvokerFunc[bool](func(ctx context.Context, args callkey.Args) (bool, error) {
			return p.run(ctx, func(ctx context.Context) (bool, error) {
				return next.Invoke(ctx, args)
			})
		})
	}
}
