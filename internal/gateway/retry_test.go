package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient builds a Client against the test server with near-zero
// backoff delays and a silenced rate-limit guard.
func newTestClient(server *httptest.Server) *Client {
	logger := log.New(io.Discard, "", 0)
	return &Client{
		http: server.Client(),
		retry: retryPolicy{
			maxRetries:        3,
			initialBackoff:    time.Millisecond,
			backoffMultiplier: 2,
			maxBackoff:        4 * time.Millisecond,
		},
		guard:  &rateLimitGuard{logger: logger, now: time.Now, sleep: func(time.Duration) {}},
		logger: logger,
		sleep:  sleepCtx,
	}
}

func TestGetJSON_SucceedsAfterRetryableFailures(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer server.Close()
	client := newTestClient(server)

	body, err := client.getJSON(context.Background(), server.URL)

	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
	assert.Equal(t, int32(3), calls.Load())
}

func TestGetJSON_RetryableStatuses(t *testing.T) {
	for _, status := range []int{429, 500, 502, 503, 504} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if calls.Add(1) == 1 {
					w.WriteHeader(status)
					return
				}
				fmt.Fprint(w, `[]`)
			}))
			defer server.Close()

			_, err := newTestClient(server).getJSON(context.Background(), server.URL)

			assert.NoError(t, err)
			assert.Equal(t, int32(2), calls.Load())
		})
	}
}

func TestGetJSON_NonRetryableStatusFailsImmediately(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message":"Not Found"}`)
	}))
	defer server.Close()

	_, err := newTestClient(server).getJSON(context.Background(), server.URL)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	assert.Equal(t, int32(1), calls.Load(), "404 must not consume a retry")
}

func TestGetJSON_ExhaustsRetryBudget(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()
	client := newTestClient(server)

	_, err := client.getJSON(context.Background(), server.URL)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
	// Initial attempt plus maxRetries, and not one call more.
	assert.Equal(t, int32(client.retry.maxRetries+1), calls.Load())
}

func TestGetJSON_ContextCancellationStopsRetrying(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestClient(server).getJSON(ctx, server.URL)

	assert.Error(t, err)
	assert.LessOrEqual(t, calls.Load(), int32(1))
}

func TestGetJSON_InvokesRateLimitGuardOnSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Remaining", "2")
		w.Header().Set("X-RateLimit-Reset", timestamp(time.Now().Add(time.Minute)))
		fmt.Fprint(w, `{}`)
	}))
	defer server.Close()

	client := newTestClient(server)
	var slept time.Duration
	client.guard.sleep = func(d time.Duration) { slept += d }

	_, err := client.getJSON(context.Background(), server.URL)

	require.NoError(t, err)
	assert.Greater(t, slept, time.Duration(0), "guard must run against success headers")
}

func TestBackoff_DelayGrowsAndRespectsCeiling(t *testing.T) {
	client := &Client{
		retry: retryPolicy{
			maxRetries:        5,
			initialBackoff:    100 * time.Millisecond,
			backoffMultiplier: 2,
			maxBackoff:        400 * time.Millisecond,
		},
	}
	var delays []time.Duration
	client.sleep = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}

	for attempt := 0; attempt < 4; attempt++ {
		require.NoError(t, client.backoff(context.Background(), attempt))
	}

	expectedBase := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		400 * time.Millisecond, // capped
	}
	for i, base := range expectedBase {
		// Jitter adds between 10% and 50% on top of the base delay.
		assert.GreaterOrEqual(t, delays[i], base+base/10)
		assert.LessOrEqual(t, delays[i], base+base/2)
	}
}

func TestBackoff_CancelledContext(t *testing.T) {
	client := &Client{
		retry: defaultRetryPolicy(),
		sleep: sleepCtx,
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := client.backoff(ctx, 0)

	assert.True(t, errors.Is(err, context.Canceled))
}
