package http

import (
	"context"
	"net/http"
	"time"

	"soloparent-workers/internal/common/metrics"
)

type Client struct {
	httpClient *http.Client
}

// NewClient returns a client whose requests are counted in the record store metrics.
func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: &instrumentedTransport{next: http.DefaultTransport},
		},
	}
}

// HTTPClient exposes the configured *http.Client for SDKs that take one.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.httpClient.Do(req)
}

func (c *Client) DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error) {
	return c.httpClient.Do(req.WithContext(ctx))
}

type instrumentedTransport struct {
	next http.RoundTripper
}

func (t *instrumentedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.next.RoundTrip(req)
	status := 0
	if err == nil {
		status = resp.StatusCode
	}
	metrics.ObserveRecordStoreRequest(req.Method, status, time.Since(start))
	return resp, err
}
