package health

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// PingFunc adapts any ping-style dependency method into a Checker.
type PingFunc func(ctx context.Context) error

type funcChecker struct {
	name     string
	critical bool
	ping     PingFunc
}

// NewChecker wraps a ping function. Used for Redis and Postgres, whose
// clients already expose HealthCheck methods.
func NewChecker(name string, critical bool, ping PingFunc) Checker {
	return &funcChecker{name: name, critical: critical, ping: ping}
}

func (c *funcChecker) Name() string   { return c.name }
func (c *funcChecker) Critical() bool { return c.critical }
func (c *funcChecker) Check(ctx context.Context) error {
	return c.ping(ctx)
}

// HTTPChecker probes an HTTP service's health endpoint.
type HTTPChecker struct {
	name     string
	url      string
	critical bool
	client   *http.Client
}

// NewHTTPChecker probes url with GET; any 2xx is healthy.
func NewHTTPChecker(name, url string, critical bool) *HTTPChecker {
	return &HTTPChecker{
		name:     name,
		url:      url,
		critical: critical,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *HTTPChecker) Name() string   { return c.name }
func (c *HTTPChecker) Critical() bool { return c.critical }

func (c *HTTPChecker) Check(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s returned status %d", c.name, resp.StatusCode)
	}
	return nil
}
