// Package metadata enriches catalog items with detail fetched from TMDB.
// Every lookup is best-effort: a failed or unresolvable fetch degrades the
// caller to catalog-only data instead of failing a pool build.
package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://api.themoviedb.org/3"

// Client is a thin REST client for the metadata provider. It supports both
// auth styles transparently: a v4 bearer token when configured, the v3
// api_key query parameter otherwise.
type Client struct {
	baseURL    string
	apiKey     string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewClient(apiKey, token string) *Client {
	return &Client{
		baseURL: defaultBaseURL,
		apiKey:  apiKey,
		token:   token,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		// TMDB allows ~50 req/s; stay well under it.
		limiter: rate.NewLimiter(rate.Limit(20), 10),
	}
}

// Configured reports whether the client has credentials at all.
func (c *Client) Configured() bool {
	return c.apiKey != "" || c.token != ""
}

// get issues one GET against the provider and decodes the JSON body into out.
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	if !c.Configured() {
		return fmt.Errorf("metadata provider credentials not configured")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	if query == nil {
		query = url.Values{}
	}
	if c.token == "" && c.apiKey != "" {
		query.Set("api_key", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("metadata request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("metadata request %s returned %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("parse metadata response: %w", err)
	}
	return nil
}
