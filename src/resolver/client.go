package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Client performs remote media lookups against the resolution endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

var _ Lookup = (*Client)(nil)

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		// The resolution endpoint proxies an external search API, keep the
		// request rate modest.
		limiter: rate.NewLimiter(rate.Every(250*time.Millisecond), 2),
	}
}

// Resolve asks the resolution endpoint for a playable URL matching the query.
func (c *Client) Resolve(ctx context.Context, query string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	q := url.Values{}
	q.Set("q", query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/resolve?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("could not reach resolution endpoint: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("resolution endpoint: status %d", res.StatusCode)
	}

	var data struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(res.Body).Decode(&data); err != nil {
		return "", fmt.Errorf("could not decode resolution response: %w", err)
	}
	return data.URL, nil
}
