// Package mylar is a client for the Mylar3 comic-tracker API. The tracker is
// a soft dependency: callers probe it with TestConnection and skip it
// entirely when it is down.
package mylar

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Client talks to a single Mylar3 instance through its command-style API.
type Client struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

// New creates a Mylar client for the given base URL and API key.
func New(baseURL, apiKey string) *Client {
	for len(baseURL) > 0 && baseURL[len(baseURL)-1] == '/' {
		baseURL = baseURL[:len(baseURL)-1]
	}
	return &Client{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: baseURL,
		apiKey:  apiKey,
	}
}

// request issues one API command and decodes the JSON response into out.
func (c *Client) request(ctx context.Context, cmd string, params url.Values, out any) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("apikey", c.apiKey)
	params.Set("cmd", cmd)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("mylar: %s returned %d", cmd, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("mylar: decoding %s response: %w", cmd, err)
	}
	return nil
}

// TestConnection reports whether the tracker answers its version command.
func (c *Client) TestConnection(ctx context.Context) bool {
	var version map[string]any
	if err := c.request(ctx, "getVersion", nil, &version); err != nil {
		return false
	}
	_, ok := version["current_version"]
	return ok
}

// GetUpcoming lists upcoming issues for the tracker's current week. When
// includeDownloaded is false, issues Mylar has already grabbed are excluded.
func (c *Client) GetUpcoming(ctx context.Context, includeDownloaded bool) ([]UpcomingIssue, error) {
	params := url.Values{}
	if includeDownloaded {
		params.Set("include_downloaded_issues", "Y")
	}
	var issues []UpcomingIssue
	if err := c.request(ctx, "getUpcoming", params, &issues); err != nil {
		return nil, err
	}
	return issues, nil
}
