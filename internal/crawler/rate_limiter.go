package crawler

import (
	"context"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter spaces requests per host. A zero delay disables limiting.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	delay    time.Duration
}

// NewRateLimiter creates a limiter allowing one request per delay per host
func NewRateLimiter(delay time.Duration) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		delay:    delay,
	}
}

// Wait blocks until a request to the host of rawURL may proceed
func (r *RateLimiter) Wait(ctx context.Context, rawURL string) error {
	if r.delay <= 0 {
		return ctx.Err()
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return err
	}
	return r.limiter(parsed.Host).Wait(ctx)
}

// SetHostDelay overrides the spacing for one host, e.g. from a Crawl-delay
func (r *RateLimiter) SetHostDelay(host string, delay time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if delay < r.delay {
		delay = r.delay
	}
	r.limiters[host] = rate.NewLimiter(limitFor(delay), 1)
}

func (r *RateLimiter) limiter(host string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l, ok := r.limiters[host]; ok {
		return l
	}
	l := rate.NewLimiter(limitFor(r.delay), 1)
	r.limiters[host] = l
	return l
}

func limitFor(delay time.Duration) rate.Limit {
	if delay <= 0 {
		return rate.Inf
	}
	return rate.Every(delay)
}
