package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"time"
)

// retryPolicy bounds the retry loop around a single logical GET.
type retryPolicy struct {
	maxRetries        int
	initialBackoff    time.Duration
	backoffMultiplier float64
	maxBackoff        time.Duration
}

func defaultRetryPolicy() retryPolicy {
	return retryPolicy{
		maxRetries:        3,
		initialBackoff:    time.Second,
		backoffMultiplier: 2,
		maxBackoff:        60 * time.Second,
	}
}

// retryableStatus is the closed set of HTTP statuses worth retrying. Every
// other non-2xx status is terminal on the first response.
var retryableStatus = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// getJSON performs one logical GET with transient-failure resilience:
// retryable statuses and transport errors back off exponentially with jitter
// up to the retry ceiling, then the final error surfaces. On success the
// rate-limit guard runs against the response headers before the body is
// returned.
func (c *Client) getJSON(ctx context.Context, url string) (json.RawMessage, error) {
	var lastErr error
	for attempt := 0; attempt <= c.retry.maxRetries; attempt++ {
		if attempt > 0 {
			if err := c.backoff(ctx, attempt-1); err != nil {
				return nil, err
			}
		}

		body, headers, err := c.doOnce(ctx, url)
		if err == nil {
			c.guard.wait(headers)
			return body, nil
		}

		var statusErr *StatusError
		if errors.As(err, &statusErr) && !retryableStatus[statusErr.StatusCode] {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func (c *Client) doOnce(ctx context.Context, url string) (json.RawMessage, http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build request for %s: %w", url, err)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response from %s: %w", url, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, nil, &StatusError{StatusCode: resp.StatusCode, URL: url, Body: truncate(string(body), 200)}
	}
	return body, resp.Header, nil
}

// backoff sleeps min(initial * multiplier^attempt, max) plus uniform jitter
// in [10%, 50%] of the delay so concurrent retries do not synchronize.
func (c *Client) backoff(ctx context.Context, attempt int) error {
	delay := time.Duration(float64(c.retry.initialBackoff) * math.Pow(c.retry.backoffMultiplier, float64(attempt)))
	if delay > c.retry.maxBackoff {
		delay = c.retry.maxBackoff
	}
	jitter := time.Duration((0.1 + 0.4*rand.Float64()) * float64(delay))
	return c.sleep(ctx, delay+jitter)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
