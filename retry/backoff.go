package retry

import (
	"context"
	"math"
	"time"

	"github.com/on-the-ground/wrapkit/fault"
)

// backoff is the call-scoped retry state. A new one is made for every call.
type backoff struct {
	remaining int
	delay     time.Duration
	factor    float64
}

func newBackoff(attempts int, initial time.Duration, factor float64) *backoff {
	return &backoff{remaining: attempts, delay: initial, factor: factor}
}

// next consumes one attempt and returns the delay to apply before it.
// The stored delay grows by factor for the following attempt.
func (b *backoff) next() (time.Duration, bool) {
	if b.remaining <= 0 {
		return 0, false
	}
	b.remaining--
	d := b.delay
	b.delay = scale(b.delay, b.factor)
	return d, true
}

func scale(d time.Duration, factor float64) time.Duration {
	f := float64(d) * factor
	if f >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(f)
}

// WorstCaseWait is initial·(factor^attempts − 1)/(factor − 1), the total sleep
// of a call that fails every attempt.
func WorstCaseWait(attempts int, initial time.Duration, factor float64) time.Duration {
	if attempts <= 0 {
		return 0
	}
	total := float64(initial) * (math.Pow(factor, float64(attempts)) - 1) / (factor - 1)
	if total >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(total)
}

// sleep blocks for d or until ctx is done, whichever comes first.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func validateBackoff(attempts int, factor float64) error {
	if attempts < 0 {
		return fault.Invalid("maxAttempts", attempts, "must be 0 or greater")
	}
	if !(factor > 1) || math.IsInf(factor, 1) {
		return fault.Invalid("backoffFactor", factor, "must be a finite number greater than 1")
	}
	return nil
}
