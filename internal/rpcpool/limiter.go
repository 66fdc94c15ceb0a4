package rpcpool

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/serayd61/Superchain-token-explorer-sub001/internal/metrics"
)

// Limiter is a token bucket allowing N requests per minute for one chain.
type Limiter struct {
	limiter *rate.Limiter
	chain   string
}

// NewLimiter creates a limiter with a full bucket of perMinute tokens.
func NewLimiter(perMinute int, chain string) *Limiter {
	if perMinute <= 0 {
		return &Limiter{limiter: rate.NewLimiter(rate.Inf, 1), chain: chain}
	}
	return &Limiter{
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute),
		chain:   chain,
	}
}

// Wait blocks until one token is available, or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r := l.limiter.Reserve()
	if !r.OK() {
		return fmt.Errorf("rate: cannot reserve token")
	}
	delay := r.Delay()
	if delay > 0 {
		metrics.RateLimitWaits.WithLabelValues(l.chain).Inc()
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			r.Cancel()
			return ctx.Err()
		}
	}
	return nil
}
