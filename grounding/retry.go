package grounding

import (
	"context"
	"time"
)

// RetryPolicy bounds structured generation. Format failures retry
// immediately; transport failures wait Backoff, doubling per attempt up to
// MaxBackoff.
type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration
	MaxBackoff time.Duration
}

// DefaultRetryPolicy allows 2 retries, 3 attempts in total
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 2,
		Backoff:    500 * time.Millisecond,
		MaxBackoff: 4 * time.Second,
	}
}

// Delay is the wait before the attempt that follows failed attempt number
// attempt (1-based)
func (p RetryPolicy) Delay(attempt int, transport bool) time.Duration {
	if !transport || p.Backoff <= 0 {
		return 0
	}
	d := p.Backoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if p.MaxBackoff > 0 && d >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	if p.MaxBackoff > 0 && d > p.MaxBackoff {
		return p.MaxBackoff
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
