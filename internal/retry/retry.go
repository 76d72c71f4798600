package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net"
	"time"

	"github.com/amishk599/jobintake/internal/model"
)

// RetryFetcher is a decorator that retries transient page fetch failures with
// exponential backoff and jitter before delegating to the wrapped PageFetcher.
type RetryFetcher struct {
	inner      model.PageFetcher
	maxRetries int
	baseDelay  time.Duration
	logger     *slog.Logger
}

var _ model.PageFetcher = (*RetryFetcher)(nil)

// NewRetryFetcher wraps a PageFetcher with retry logic.
// maxRetries is the number of additional attempts after the first failure.
// baseDelay is the delay before the first retry, doubled on each subsequent retry.
func NewRetryFetcher(inner model.PageFetcher, maxRetries int, baseDelay time.Duration, logger *slog.Logger) *RetryFetcher {
	return &RetryFetcher{
		inner:      inner,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		logger:     logger,
	}
}

// FetchOfferContent attempts the fetch, retrying on transient errors.
func (f *RetryFetcher) FetchOfferContent(ctx context.Context, url string) (model.Fields, error) {
	fields, err := f.inner.FetchOfferContent(ctx, url)
	if err == nil {
		return fields, nil
	}

	if !isRetryable(err) {
		return nil, err
	}

	lastErr := err
	for attempt := 1; attempt <= f.maxRetries; attempt++ {
		delay := f.backoffDelay(attempt, lastErr)

		f.logger.Warn("retrying after transient error",
			"url", url,
			"attempt", attempt,
			"max_retries", f.maxRetries,
			"delay", delay,
			"error", lastErr,
		)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(delay):
		}

		fields, err = f.inner.FetchOfferContent(ctx, url)
		if err == nil {
			return fields, nil
		}

		if !isRetryable(err) {
			return nil, err
		}
		lastErr = err
	}

	return nil, lastErr
}

// backoffDelay computes the delay for a given attempt with ±30% jitter.
// If the error includes a Retry-After duration (HTTP 429), that takes precedence.
func (f *RetryFetcher) backoffDelay(attempt int, err error) time.Duration {
	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) && httpErr.RetryAfter > 0 {
		return httpErr.RetryAfter
	}

	// Exponential: baseDelay * 2^(attempt-1)
	delay := f.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
	}

	jitter := float64(delay) * 0.3
	delay = time.Duration(float64(delay) + (rand.Float64()*2-1)*jitter)

	return delay
}

// isRetryable returns true if the error represents a transient failure worth retrying.
// A posting confirmed gone is final, and so is any failure that is neither an
// HTTP 429/5xx nor a network or transport error.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var fe *model.FetchError
	if errors.As(err, &fe) && fe.Reason == model.FetchNotFound {
		return false
	}

	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) {
		// 429 and 5xx are retryable, any other status is not.
		return httpErr.StatusCode == 429 || httpErr.StatusCode >= 500
	}

	// Network, DNS and similar failures.
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return model.IsTransport(err) || errors.Is(err, io.ErrUnexpectedEOF)
}
