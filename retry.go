package graphlake

import (
	"context"
	"time"

	"github.com/graphlake/graphlake-go/internal/ctxlog"
	"github.com/graphlake/graphlake-go/transport"
)

// RetryPolicy bounds the retrying of one orchestration step. Only transient
// transport failures (network faults and 5xx) are retried; validation,
// authorization, and conflict errors are surfaced immediately.
type RetryPolicy struct {
	// MaxAttempts is the total number of tries, including the first.
	// Zero means DefaultRetryPolicy's value.
	MaxAttempts int
	// InitialBackoff is the delay before the second attempt.
	InitialBackoff time.Duration
	// MaxBackoff caps the growing delay.
	MaxBackoff time.Duration
	// Multiplier grows the delay between attempts. Values below 1 mean 2.
	Multiplier float64
}

// DefaultRetryPolicy retries transient failures three times with 500ms
// initial backoff doubling up to 5s.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts:    3,
	InitialBackoff: 500 * time.Millisecond,
	MaxBackoff:     5 * time.Second,
	Multiplier:     2,
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	d := DefaultRetryPolicy
	if p.MaxAttempts > 0 {
		d.MaxAttempts = p.MaxAttempts
	}
	if p.InitialBackoff > 0 {
		d.InitialBackoff = p.InitialBackoff
	}
	if p.MaxBackoff > 0 {
		d.MaxBackoff = p.MaxBackoff
	}
	if p.Multiplier >= 1 {
		d.Multiplier = p.Multiplier
	}
	return d
}

// retryStep runs fn under the policy, sleeping on the injected clock between
// attempts. It returns fn's last error when attempts are exhausted or the
// error is not retryable, and the context's mapped outcome when ctx ends
// mid-backoff.
func retryStep(ctx context.Context, clock Clock, policy RetryPolicy, what string, fn func() error) error {
	p := policy.withDefaults()
	backoff := p.InitialBackoff
	start := clock.Now()

	var err error
	for attempt := 1; ; attempt++ {
		err = fn()
		if err == nil || !transport.IsRetryable(err) || attempt >= p.MaxAttempts {
			return err
		}

		ctxlog.FromContext(ctx).Debug("retrying step after transient failure",
			"step", what, "attempt", attempt, "backoff", backoff, "error", err)

		select {
		case <-clock.After(backoff):
		case <-ctx.Done():
			return ctxOutcome(ctx, what, clock.Now().Sub(start), attempt)
		}

		backoff = time.Duration(float64(backoff) * p.Multiplier)
		if backoff > p.MaxBackoff {
			backoff = p.MaxBackoff
		}
	}
}

// notify invokes a ProgressFunc, recovering and logging any panic so an
// observer can never abort the orchestration it watches.
func notify(ctx context.Context, fn ProgressFunc, message string) {
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			ctxlog.FromContext(ctx).Warn("progress callback panicked", "panic", r)
		}
	}()
	fn(message)
}
