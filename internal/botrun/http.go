package botrun

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// HTTPClient wraps http.Client with timeout.
type HTTPClient struct {
	client  *http.Client
	baseURL string
}

// newHTTPClient creates a new HTTP client with timeout.
func newHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// getJSON performs a GET request and decodes a 200 response into v.
func (c *HTTPClient) getJSON(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d: %s", path, resp.StatusCode, body)
	}
	if v == nil {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// checkHealth verifies the service is running.
func (c *HTTPClient) checkHealth(ctx context.Context) error {
	return c.getJSON(ctx, "/healthz", nil)
}

// leaderboard fetches the top n standings.
func (c *HTTPClient) leaderboard(ctx context.Context, n int) ([]Entry, error) {
	var entries []Entry
	if err := c.getJSON(ctx, "/leaderboard?limit="+strconv.Itoa(n), &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// rank fetches the standing of one participant.
func (c *HTTPClient) rank(ctx context.Context, id string) (Entry, error) {
	var entry Entry
	if err := c.getJSON(ctx, "/rank/"+id, &entry); err != nil {
		return Entry{}, err
	}
	return entry, nil
}
