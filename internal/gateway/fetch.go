package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Connection pool and timeout tuning for the shared HTTP client.
const (
	connectionPoolSize        = 20
	connectionPoolSizePerHost = 10
	connectionKeepAlive       = 30 * time.Second
	connectTimeout            = 2 * time.Minute
	responseHeaderTimeout     = time.Minute
	totalRequestTimeout       = 15 * time.Minute

	// Requests started per second across a batch; a mild pace that keeps
	// large fan-outs from bursting into the secondary rate limit.
	requestsPerSecond = 20
)

// Client issues authenticated GETs against the GitHub REST API with retry,
// rate-limit guarding, and ordered concurrent batch fetching. The underlying
// connection pool is shared by every request the client makes.
type Client struct {
	http    *http.Client
	retry   retryPolicy
	guard   *rateLimitGuard
	limiter *rate.Limiter
	logger  *log.Logger
	sleep   func(context.Context, time.Duration) error
}

// ClientOptions configures NewClient.
type ClientOptions struct {
	Token    string
	ProxyURL *url.URL
	Logger   *log.Logger
}

// NewClient builds the shared HTTP stack: pooled transport, secondary
// rate-limit waiter, then bearer-token injection on the outside.
func NewClient(opts ClientOptions) (*Client, error) {
	proxy := http.ProxyFromEnvironment
	if opts.ProxyURL != nil {
		proxy = http.ProxyURL(opts.ProxyURL)
	}
	transport := &http.Transport{
		Proxy: proxy,
		DialContext: (&net.Dialer{
			Timeout:   connectTimeout,
			KeepAlive: connectionKeepAlive,
		}).DialContext,
		MaxIdleConns:          connectionPoolSize,
		MaxConnsPerHost:       connectionPoolSizePerHost,
		MaxIdleConnsPerHost:   connectionPoolSizePerHost,
		IdleConnTimeout:       connectionKeepAlive,
		ResponseHeaderTimeout: responseHeaderTimeout,
	}

	waiter, err := github_ratelimit.NewRateLimitWaiter(transport, github_ratelimit.WithSingleSleepLimit(time.Hour, nil))
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit waiter: %w", err)
	}
	httpClient := &http.Client{
		Transport: &oauth2.Transport{
			Base:   waiter,
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token}),
		},
		Timeout: totalRequestTimeout,
	}

	return &Client{
		http:    httpClient,
		retry:   defaultRetryPolicy(),
		guard:   newRateLimitGuard(opts.Logger),
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond),
		logger:  opts.Logger,
		sleep:   sleepCtx,
	}, nil
}

// FetchBatch issues every URL concurrently over the shared pool and returns
// one decoded body per URL in input order, regardless of completion order.
// The first terminal failure (a request that exhausted its retries or hit a
// non-retryable status) cancels the remaining requests and aborts the whole
// batch.
func (c *Client) FetchBatch(ctx context.Context, urls []string) ([]json.RawMessage, error) {
	results := make([]json.RawMessage, len(urls))
	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(connectionPoolSize)

	for i, u := range urls {
		group.Go(func() error {
			if c.limiter != nil {
				if err := c.limiter.Wait(ctx); err != nil {
					return err
				}
			}
			body, err := c.getJSON(ctx, u)
			if err != nil {
				return fmt.Errorf("batch fetch of %s failed: %w", u, err)
			}
			results[i] = body
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
