package uploader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client performs one upload attempt and classifies the outcome. Any 2xx
// response is success; every other outcome counts against the caller's
// retry budget.
type Client struct {
	http    *http.Client
	timeout time.Duration
}

// NewClient creates an upload client with the given per-try timeout.
func NewClient(timeout time.Duration) *Client {
	return &Client{
		http:    &http.Client{},
		timeout: timeout,
	}
}

// Send issues the GET request for one serialized record.
func (c *Client) Send(ctx context.Context, url string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build upload request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()
	// drain so the connection can be reused
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}
	return nil
}
