// Package httpclient wraps net/http with bounded retries for the outbound
// calls the pipeline makes on behalf of agents (model gateway, search API).
// Retries are deadline-aware: a context cancellation always wins over the
// backoff schedule.
package httpclient

import (
	"fmt"
	"math"
	"net/http"
	"time"
)

// RetryStrategy classifies how a failed attempt should be retried.
type RetryStrategy int

const (
	NoRetry RetryStrategy = iota
	BackoffRetry
)

// Client is a retrying HTTP client.
type Client struct {
	client     *http.Client
	maxRetries int
	baseDelay  time.Duration
	classify   func(statusCode int) RetryStrategy
}

// Option configures a Client.
type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.client = client
	}
}

func WithMaxRetries(max int) Option {
	return func(c *Client) {
		c.maxRetries = max
	}
}

func WithBaseDelay(delay time.Duration) Option {
	return func(c *Client) {
		c.baseDelay = delay
	}
}

func New(opts ...Option) *Client {
	c := &Client{
		client:     &http.Client{Timeout: 60 * time.Second},
		maxRetries: 3,
		baseDelay:  time.Second,
		classify:   defaultClassify,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func defaultClassify(statusCode int) RetryStrategy {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusRequestTimeout,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return BackoffRetry
	default:
		return NoRetry
	}
}

// Do executes the request, retrying retryable status codes with exponential
// backoff. The request context bounds the total time spent including waits.
// When retries are exhausted the last response is returned, so callers can
// classify the failure from its status code.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		if attempt > 0 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("failed to recreate request body for retry: %w", err)
			}
			req.Body = body
		}

		resp, err := c.client.Do(req)
		if err != nil {
			// Transport errors (including context deadline) are not retried.
			return nil, err
		}

		if resp.StatusCode < 400 {
			return resp, nil
		}

		if c.classify(resp.StatusCode) == NoRetry || attempt == c.maxRetries {
			return resp, nil
		}

		resp.Body.Close()

		delay := time.Duration(math.Pow(2, float64(attempt))) * c.baseDelay
		select {
		case <-req.Context().Done():
			return nil, req.Context().Err()
		case <-time.After(delay):
		}
	}
}
