package autoplay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"cadence/src/library"
)

// Fixed mood bias sent with every recommendation request. Mid-range feature
// targets keep the variety of recommended tracks bounded.
const (
	targetEnergy       = 0.5
	targetDanceability = 0.5
	targetValence      = 0.5
)

// Request describes a single recommendation query.
type Request struct {
	SeedTracks  []string
	SeedArtists []string
	Limit       int
}

// Recommender produces candidate tracks for a set of seeds.
type Recommender interface {
	Recommend(ctx context.Context, req Request) ([]library.Track, error)
}

// Client queries the remote recommendation endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

var _ Recommender = (*Client)(nil)

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Recommend implements the Recommender interface.
func (c *Client) Recommend(ctx context.Context, r Request) ([]library.Track, error) {
	q := url.Values{}
	q.Set("seed_tracks", strings.Join(r.SeedTracks, ","))
	q.Set("seed_artists", strings.Join(r.SeedArtists, ","))
	q.Set("limit", strconv.Itoa(r.Limit))
	q.Set("target_energy", formatFeature(targetEnergy))
	q.Set("target_danceability", formatFeature(targetDanceability))
	q.Set("target_valence", formatFeature(targetValence))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/recommendations?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("could not reach recommendation endpoint: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("recommendation endpoint: status %d", res.StatusCode)
	}

	var data struct {
		Tracks []library.CatalogTrack `json:"tracks"`
	}
	if err := json.NewDecoder(res.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("could not decode recommendation response: %w", err)
	}

	tracks := make([]library.Track, 0, len(data.Tracks))
	for _, raw := range data.Tracks {
		tracks = append(tracks, raw.Descriptor())
	}
	return tracks, nil
}

func formatFeature(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
