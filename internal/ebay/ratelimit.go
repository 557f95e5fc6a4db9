package ebay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/fizic37/delcampe-ebay/internal/metrics"
)

// ErrDailyLimitReached is returned when the daily API call limit has been exhausted.
var ErrDailyLimitReached = errors.New("daily API limit reached")

// RateLimiter paces outgoing seller API calls. A token bucket bounds the
// per-second rate and a rolling 24-hour window bounds the daily count. One
// limiter is shared by every client of an application key, since eBay
// meters calls per application.
type RateLimiter struct {
	limiter *rate.Limiter
	// maxDaily of zero disables the daily quota.
	maxDaily int64
	nowFunc  func() time.Time

	mu      sync.Mutex
	daily   int64
	resetAt time.Time
}

// RateLimiterOption configures the RateLimiter.
type RateLimiterOption func(*RateLimiter)

// WithRateLimiterNowFunc overrides the time function for testing.
func WithRateLimiterNowFunc(f func() time.Time) RateLimiterOption {
	return func(r *RateLimiter) {
		r.nowFunc = f
	}
}

// NewRateLimiter creates a rate limiter with the given per-second rate,
// burst size, and daily limit.
func NewRateLimiter(
	perSecond float64,
	burst int,
	maxDaily int64,
	opts ...RateLimiterOption,
) *RateLimiter {
	r := &RateLimiter{
		limiter:  rate.NewLimiter(rate.Limit(perSecond), burst),
		maxDaily: maxDaily,
		nowFunc:  time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.resetAt = r.nowFunc().Add(24 * time.Hour)
	return r
}

// Wait blocks until a call is allowed or ctx is done. It returns
// ErrDailyLimitReached without waiting once the daily quota is spent.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if err := r.reserveDaily(); err != nil {
		metrics.EbayDailyLimitHits.Inc()
		return err
	}

	if err := r.limiter.Wait(ctx); err != nil {
		r.releaseDaily()
		return fmt.Errorf("rate limiter wait: %w", err)
	}

	metrics.EbayAPICallsTotal.Inc()
	metrics.EbayDailyUsage.Set(float64(r.DailyCount()))
	return nil
}

// Usage is a snapshot of the daily quota.
type Usage struct {
	Count     int64     `json:"count"`
	Limit     int64     `json:"limit"`
	Remaining int64     `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}

// Usage returns the current daily quota state.
func (r *RateLimiter) Usage() Usage {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rollLocked()

	u := Usage{Count: r.daily, Limit: r.maxDaily, ResetAt: r.resetAt}
	if r.maxDaily > 0 {
		u.Remaining = max(r.maxDaily-r.daily, 0)
	}
	return u
}

// DailyCount returns the current daily call count.
func (r *RateLimiter) DailyCount() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.daily
}

func (r *RateLimiter) reserveDaily() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rollLocked()

	if r.maxDaily > 0 && r.daily >= r.maxDaily {
		return fmt.Errorf("%w (%d/%d)", ErrDailyLimitReached, r.daily, r.maxDaily)
	}
	r.daily++
	return nil
}

func (r *RateLimiter) releaseDaily() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.daily > 0 {
		r.daily--
	}
}

func (r *RateLimiter) rollLocked() {
	now := r.nowFunc()
	if now.After(r.resetAt) {
		r.daily = 0
		r.resetAt = now.Add(24 * time.Hour)
	}
}

// wait is a nil-safe Wait.
func (r *RateLimiter) wait(ctx context.Context) error {
	if r == nil {
		return nil
	}
	return r.Wait(ctx)
}
