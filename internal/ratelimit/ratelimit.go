package ratelimit

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/amishk599/jobintake/internal/model"
)

// HostRateLimiter enforces a minimum delay between requests to the same host.
// Concurrent callers reserve consecutive slots, so N workers hitting one host
// are spaced by minDelay rather than released together.
type HostRateLimiter struct {
	mu        sync.Mutex
	nextSlot  map[string]time.Time // key: host
	minDelay  time.Duration
	overrides map[string]time.Duration
}

// NewHostRateLimiter creates a rate limiter that enforces minDelay between
// consecutive requests to the same host. overrides may be nil.
func NewHostRateLimiter(minDelay time.Duration, overrides map[string]time.Duration) *HostRateLimiter {
	return &HostRateLimiter{
		nextSlot:  make(map[string]time.Time),
		minDelay:  minDelay,
		overrides: overrides,
	}
}

func (r *HostRateLimiter) delayFor(host string) time.Duration {
	if d, ok := r.overrides[host]; ok {
		return d
	}
	return r.minDelay
}

// Wait blocks until the caller's slot for host arrives.
// Returns an error if the context is cancelled while waiting.
func (r *HostRateLimiter) Wait(ctx context.Context, host string) error {
	r.mu.Lock()
	now := time.Now()
	slot, ok := r.nextSlot[host]
	if !ok || slot.Before(now) {
		slot = now
	}
	r.nextSlot[host] = slot.Add(r.delayFor(host))
	r.mu.Unlock()

	remaining := time.Until(slot)
	if remaining <= 0 {
		return nil
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("rate limiter wait for %s: %w", host, ctx.Err())
	case <-time.After(remaining):
	}
	return nil
}

// RateLimitedFetcher is a decorator that enforces host-level rate limiting
// before delegating to the wrapped PageFetcher.
type RateLimitedFetcher struct {
	inner   model.PageFetcher
	limiter *HostRateLimiter
}

var _ model.PageFetcher = (*RateLimitedFetcher)(nil)

// NewRateLimitedFetcher wraps a PageFetcher with host-level rate limiting.
func NewRateLimitedFetcher(inner model.PageFetcher, limiter *HostRateLimiter) *RateLimitedFetcher {
	return &RateLimitedFetcher{
		inner:   inner,
		limiter: limiter,
	}
}

// FetchOfferContent waits for the URL's host slot, then delegates.
func (f *RateLimitedFetcher) FetchOfferContent(ctx context.Context, rawURL string) (model.Fields, error) {
	if err := f.limiter.Wait(ctx, hostOf(rawURL)); err != nil {
		return nil, &model.FetchError{Reason: model.FetchOther, URL: rawURL, Err: err}
	}
	return f.inner.FetchOfferContent(ctx, rawURL)
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return strings.ToLower(u.Hostname())
}
