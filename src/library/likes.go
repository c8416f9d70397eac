package library

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// LikesClient reads per-track like state from the external data service.
//
// Like state is a read dependency only, the controller never writes it.
type LikesClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewLikesClient(baseURL string) *LikesClient {
	return &LikesClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: http.DefaultClient,
	}
}

// Liked returns the like state for each of the specified track IDs. IDs
// unknown to the service are reported as not liked.
func (c *LikesClient) Liked(ctx context.Context, ids []string) (map[string]bool, error) {
	if len(ids) == 0 {
		return map[string]bool{}, nil
	}

	q := url.Values{}
	q.Set("ids", strings.Join(ids, ","))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/likes?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("could not query likes: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("could not query likes: status %d", res.StatusCode)
	}

	var data struct {
		Likes map[string]bool `json:"likes"`
	}
	if err := json.NewDecoder(res.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("could not decode likes response: %w", err)
	}

	liked := make(map[string]bool, len(ids))
	for _, id := range ids {
		liked[id] = data.Likes[id]
	}
	return liked, nil
}
