package retry

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/on-the-ground/wrapkit/callkey"
	"github.com/on-the-ground/wrapkit/effects/log"
	"github.com/on-the-ground/wrapkit/fault"
	"github.com/on-the-ground/wrapkit/wrap"
)

// Exhaustion selects what Resilient does once every attempt failed transiently.
type Exhaustion int

const (
	// Raise returns the last transient error unchanged.
	Raise Exhaustion = iota
	// Suppress returns the zero result and a nil error.
	Suppress
)

func (e Exhaustion) String() string {
	switch e {
	case Raise:
		return "raise"
	case Suppress:
		return "suppress"
	default:
		return fmt.Sprintf("Exhaustion(%d)", int(e))
	}
}

// ParseExhaustion accepts "raise" (alias "error") and "suppress" (alias "continue").
func ParseExhaustion(s string) (Exhaustion, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "raise", "error":
		return Raise, nil
	case "suppress", "continue":
		return Suppress, nil
	default:
		return Raise, fault.Invalid("onExhaustion", s, `must be "raise" or "suppress"`)
	}
}

// ResilientConfig configures a Resilient.
type ResilientConfig struct {
	// MaxAttempts is the number of retries after the first call.
	MaxAttempts int
	// Timeout bounds the first attempt. Attempt k runs with Timeout·BackoffFactor^k.
	Timeout time.Duration
	// Delay is the wait before the first retry, growing by BackoffFactor.
	// Zero retries immediately with only the longer timeout.
	Delay time.Duration
	// BackoffFactor must be greater than 1.
	BackoffFactor float64
	// OnExhaustion defaults to Raise.
	OnExhaustion Exhaustion
	// Classifier decides which errors are retried. Defaults to IsTransient.
	Classifier func(error) bool
}

// Resilient retries calls that fail with transient I/O errors.
// The per-attempt timeout travels in the attempt's context.
type Resilient struct {
	cfg ResilientConfig
}

// NewResilient validates cfg eagerly.
func NewResilient(cfg ResilientConfig) (*Resilient, error) {
	if err := validateBackoff(cfg.MaxAttempts, cfg.BackoffFactor); err != nil {
		return nil, err
	}
	if cfg.Timeout <= 0 {
		return nil, fault.Invalid("timeout", cfg.Timeout, "must be greater than 0")
	}
	if cfg.Delay < 0 {
		return nil, fault.Invalid("delay", cfg.Delay, "must be 0 or greater")
	}
	if cfg.OnExhaustion != Raise && cfg.OnExhaustion != Suppress {
		return nil, fault.Invalid("onExhaustion", cfg.OnExhaustion, `must be "raise" or "suppress"`)
	}
	if cfg.Classifier == nil {
		cfg.Classifier = IsTransient
	}
	return &Resilient{cfg: cfg}, nil
}

// Config returns the validated configuration.
func (r *Resilient) Config() ResilientConfig { return r.cfg }

// Do calls f under r.
//
// Transient failures consume an attempt. Any other error is returned at once,
// unwrapped. Cancellation of ctx aborts the loop with ctx's error.
func Do[R any](ctx context.Context, r *Resilient, f func(context.Context) (R, error)) (R, error) {
	var zero R

	waits := newBackoff(r.cfg.MaxAttempts, r.cfg.Delay, r.cfg.BackoffFactor)
	timeout := r.cfg.Timeout

	var last error
	for n := 0; ; n++ {
		if n > 0 {
			delay, ok := waits.next()
			if !ok {
				break
			}
			if err := sleep(ctx, delay); err != nil {
				return zero, err
			}
			timeout = scale(timeout, r.cfg.BackoffFactor)
		}

		res, err := attemptWithTimeout(ctx, timeout, f)
		if err == nil {
			return res, nil
		}
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if !r.cfg.Classifier(err) {
			return zero, err
		}

		last = err
		log.Effect(ctx, log.LogWarn, "transient failure", map[string]interface{}{
			"attempt":   n,
			"remaining": waits.remaining,
			"timeout":   timeout,
			"error":     err.Error(),
		})
	}

	log.Effect(ctx, log.LogError, "retry attempts exhausted", map[string]interface{}{
		"attempts":     r.cfg.MaxAttempts + 1,
		"onExhaustion": r.cfg.OnExhaustion.String(),
		"error":        last.Error(),
	})
	if r.cfg.OnExhaustion == Suppress {
		return zero, nil
	}
	return zero, last
}

func attemptWithTimeout[R any](ctx context.Context, timeout time.Duration, f func(context.Context) (R, error)) (R, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return f(attemptCtx)
}

// ResilientLayer adapts r to Invokers.
func ResilientLayer[R any](r *Resilient) wrap.Middleware[R] {
	return func(next wrap.Invoker[R]) wrap.Invoker[R] {
		return wrap.InvokerFunc[R](func(ctx context.Context, args callkey.Args) (R, error) {
			return Do(ctx, r, func(ctx context.Context) (R, error) {
				return next.Invoke(ctx, args)
			})
		})
	}
}
