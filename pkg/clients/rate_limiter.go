package clients

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ajitpratap0/nebula-restclient/pkg/errors"
)

// RateLimiter paces outgoing requests
type RateLimiter interface {
	// Allow takes a token if one is available
	Allow() bool
	// Wait blocks until a token is available or ctx is done
	Wait(ctx context.Context) error
	Stats() RateLimiterStats
}

// RateLimiterStats describes the limiter's current state
type RateLimiterStats struct {
	Rate            float64       `json:"rate"`
	Burst           int           `json:"burst"`
	AllowedRequests int64         `json:"allowed_requests"`
	BlockedRequests int64         `json:"blocked_requests"`
	CurrentTokens   float64       `json:"current_tokens"`
	TotalWait       time.Duration `json:"total_wait"`
}

// TokenBucketRateLimiter refills rate tokens per second up to burst. Each
// request consumes one token.
type TokenBucketRateLimiter struct {
	limiter *rate.Limiter
	now     func() time.Time

	mu        sync.Mutex
	allowed   int64
	blocked   int64
	totalWait time.Duration
}

// NewTokenBucketRateLimiter starts with a full bucket. A burst below one is
// raised to one.
func NewTokenBucketRateLimiter(perSecond float64, burst int) *TokenBucketRateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &TokenBucketRateLimiter{
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
		now:     time.Now,
	}
}

func (tb *TokenBucketRateLimiter) Allow() bool {
	ok := tb.limiter.AllowN(tb.now(), 1)
	tb.mu.Lock()
	if ok {
		tb.allowed++
	} else {
		tb.blocked++
	}
	tb.mu.Unlock()
	return ok
}

func (tb *TokenBucketRateLimiter) Wait(ctx context.Context) error {
	start := tb.now()
	r := tb.limiter.ReserveN(start, 1)
	if !r.OK() {
		return errors.New(errors.ErrorTypeRateLimit, "request exceeds the limiter burst")
	}

	if delay := r.DelayFrom(start); delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			r.CancelAt(tb.now())
			tb.mu.Lock()
			tb.blocked++
			tb.mu.Unlock()
			return ctx.Err()
		}
		tb.mu.Lock()
		tb.totalWait += delay
		tb.mu.Unlock()
	}

	tb.mu.Lock()
	tb.allowed++
	tb.mu.Unlock()
	return nil
}

func (tb *TokenBucketRateLimiter) Stats() RateLimiterStats {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	return RateLimiterStats{
		Rate:            float64(tb.limiter.Limit()),
		Burst:           tb.limiter.Burst(),
		AllowedRequests: tb.allowed,
		BlockedRequests: tb.blocked,
		CurrentTokens:   tb.limiter.TokensAt(tb.now()),
		TotalWait:       tb.totalWait,
	}
}
