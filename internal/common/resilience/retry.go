// Package resilience holds the retry, circuit-breaker and rate-limiting
// primitives applied to every external call.
package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"github.com/avast/retry-go"

	apperrors "agency-assistant/internal/common/errors"
)

// RetryPolicy is exponential backoff with symmetric jitter.
type RetryPolicy struct {
	BaseDelay  time.Duration
	Factor     float64
	MaxRetries int
	Jitter     float64
}

// DefaultRetryPolicy: base 1s, factor 2, 3 retries, ±10% jitter.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{BaseDelay: time.Second, Factor: 2, MaxRetries: 3, Jitter: 0.1}
}

// Backoff returns the un-jittered delay before retry n (0-based).
func (p RetryPolicy) Backoff(n uint) time.Duration {
	factor := p.Factor
	if factor <= 0 {
		factor = 1
	}
	return time.Duration(float64(p.BaseDelay) * math.Pow(factor, float64(n)))
}

func (p RetryPolicy) delay(n uint, _ error, _ *retry.Config) time.Duration {
	d := p.Backoff(n)
	if p.Jitter > 0 {
		d = time.Duration(float64(d) * (1 + p.Jitter*(2*rand.Float64()-1)))
	}
	return d
}

// Retry runs fn until it succeeds, fails with a non-retryable kind, the
// retries are exhausted or ctx is done. Only network, timeout and
// rate_limited failures are retried.
func Retry(ctx context.Context, p RetryPolicy, fn func(ctx context.Context) error, onRetry func(n uint, err error)) error {
	if p.MaxRetries <= 0 {
		return fn(ctx)
	}
	opts := []retry.Option{
		retry.Attempts(uint(p.MaxRetries) + 1),
		retry.DelayType(p.delay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			// the caller's own deadline is final
			if ctx.Err() != nil {
				return false
			}
			return apperrors.IsRetryableError(err)
		}),
	}
	if onRetry != nil {
		opts = append(opts, retry.OnRetry(onRetry))
	}
	return retry.Do(func() error { return fn(ctx) }, opts...)
}
