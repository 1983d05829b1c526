// Package health polls the analysis service's readiness endpoint.
package health

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"resty.dev/v3"

	"github.com/mmr-tortoise/ctdeploy/internal/model"
)

// DefaultRequestTimeout bounds a single request.
const DefaultRequestTimeout = 5 * time.Second

// Checker requests <baseURL><path> and treats any 2xx answer as healthy.
type Checker struct {
	url   string
	resty *resty.Client
}

// Option configures a Checker.
type Option func(*Checker)

// WithHTTPClient swaps the transport, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Checker) {
		c.resty = resty.NewWithClient(hc)
	}
}

// NewChecker returns a Checker for the endpoint at baseURL+path.
func NewChecker(baseURL, path string, opts ...Option) *Checker {
	c := &Checker{
		url:   baseURL + path,
		resty: resty.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.resty.SetTimeout(DefaultRequestTimeout)
	return c
}

// URL returns the checked address.
func (c *Checker) URL() string {
	return c.url
}

// Close releases the underlying HTTP client.
func (c *Checker) Close() error {
	return c.resty.Close()
}

// Check performs one request.
func (c *Checker) Check(ctx context.Context) error {
	resp, err := c.resty.R().
		SetContext(ctx).
		Get(c.url)
	if err != nil {
		return fmt.Errorf("health check %s: %w", c.url, err)
	}

	//nolint:errcheck
	defer resp.Body.Close()

	if !resp.IsSuccess() {
		return fmt.Errorf("health check %s: unexpected status code: %d", c.url, resp.StatusCode())
	}
	return nil
}

// Result describes a completed Wait.
type Result struct {
	Attempts int           `json:"attempts"`
	Elapsed  time.Duration `json:"elapsed"`
}

// Wait checks every interval until the endpoint answers 2xx or timeout
// elapses. A timeout is reported as ExitHealthCheckFailed with the last
// check error; cancellation of ctx is returned as is.
func (c *Checker) Wait(ctx context.Context, timeout, interval time.Duration) (*Result, error) {
	start := time.Now()
	deadline, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	res := &Result{}
	for {
		res.Attempts++
		lastErr := c.Check(deadline)
		if lastErr == nil {
			res.Elapsed = time.Since(start)
			return res, nil
		}

		select {
		case <-deadline.Done():
			res.Elapsed = time.Since(start)
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			return res, model.WrapCLIError(model.ExitHealthCheckFailed,
				fmt.Sprintf("service at %s did not become healthy within %s (%d attempts)", c.url, timeout, res.Attempts),
				lastErr)
		case <-ticker.C:
		}
	}
}
