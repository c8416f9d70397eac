package autoplay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cadence/src/library"
)

type stubRecommender struct {
	requests []Request
	tracks   []library.Track
	err      error
}

func (s *stubRecommender) Recommend(ctx context.Context, req Request) ([]library.Track, error) {
	s.requests = append(s.requests, req)
	return s.tracks, s.err
}

type stubHistory struct {
	ids []string
}

func (s *stubHistory) RecentIDs(ctx context.Context, n int) []string {
	if len(s.ids) > n {
		return s.ids[:n]
	}
	return s.ids
}

func catalogTracks(ids ...string) []library.Track {
	tracks := make([]library.Track, 0, len(ids))
	for _, id := range ids {
		tracks = append(tracks, library.Track{ID: id, Title: "Track " + id, Source: library.SourceCatalog})
	}
	return tracks
}

func TestExtendFiltersPlayedAndQueued(t *testing.T) {
	rec := &stubRecommender{tracks: catalogTracks("a", "b", "c", "d")}
	ex := NewExtender(rec, nil)
	ex.MarkPlayed("a")
	ex.MarkPlayed("b")

	got, err := ex.Extend(context.Background(), library.Track{ID: "seed"}, []string{"d"})
	require.NoError(t, err)
	assert.Equal(t, catalogTracks("c"), got)
	assert.Len(t, rec.requests, 1)
}

func TestExtendSeedList(t *testing.T) {
	rec := &stubRecommender{tracks: catalogTracks("x")}
	hist := &stubHistory{ids: []string{"seed", "h1", "h2", "h3", "h4"}}
	ex := NewExtender(rec, hist)

	_, err := ex.Extend(context.Background(), library.Track{
		ID:      "seed",
		Artists: []library.Artist{{Name: "A", ID: "artist-1"}, {Name: "B"}},
	}, nil)
	require.NoError(t, err)

	require.Len(t, rec.requests, 1)
	assert.Equal(t, []string{"seed", "h1", "h2", "h3"}, rec.requests[0].SeedTracks)
	assert.Equal(t, []string{"artist-1"}, rec.requests[0].SeedArtists)
	assert.Equal(t, recommendLimit, rec.requests[0].Limit)
}

func TestExtendFallsBackToSingleSeed(t *testing.T) {
	rec := &stubRecommender{tracks: catalogTracks("a", "b")}
	ex := NewExtender(rec, &stubHistory{ids: []string{"h1"}})
	ex.MarkPlayed("a")
	ex.MarkPlayed("b")

	got, err := ex.Extend(context.Background(), library.Track{ID: "seed"}, nil)
	require.NoError(t, err)

	// The first request came back fully filtered, the retry takes whatever
	// the single seed yields.
	require.Len(t, rec.requests, 2)
	assert.Equal(t, []string{"seed"}, rec.requests[1].SeedTracks)
	assert.Empty(t, rec.requests[1].SeedArtists)
	assert.Equal(t, catalogTracks("a", "b"), got)
}

func TestExtendTotalFailure(t *testing.T) {
	rec := &stubRecommender{err: errors.New("boom")}
	ex := NewExtender(rec, nil)

	got, err := ex.Extend(context.Background(), library.Track{ID: "seed"}, nil)
	assert.Error(t, err)
	assert.Empty(t, got)
	assert.Len(t, rec.requests, 2)
}

func TestPlayedSetExpires(t *testing.T) {
	rec := &stubRecommender{tracks: catalogTracks("a")}
	ex := NewExtender(rec, nil)

	now := time.Now()
	ex.now = func() time.Time { return now }
	ex.MarkPlayed("a")

	got, err := ex.Extend(context.Background(), library.Track{ID: "seed"}, nil)
	require.NoError(t, err)
	assert.Equal(t, catalogTracks("a"), got, "expected the fallback result while a is marked played")
	rec.requests = nil

	now = now.Add(playedTTL + time.Minute)
	got, err = ex.Extend(context.Background(), library.Track{ID: "seed"}, nil)
	require.NoError(t, err)
	assert.Equal(t, catalogTracks("a"), got)
	assert.Len(t, rec.requests, 1, "a expired from the played set, no fallback needed")
}

func TestClientRecommend(t *testing.T) {
	var query map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = map[string]string{}
		for k := range r.URL.Query() {
			query[k] = r.URL.Query().Get(k)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"tracks": []library.CatalogTrack{
				{ID: "c1", Name: " Neon Nights ", Artists: []library.Artist{{Name: "Glow"}}},
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	tracks, err := client.Recommend(context.Background(), Request{
		SeedTracks:  []string{"s1", "s2"},
		SeedArtists: []string{"ar1"},
		Limit:       20,
	})
	require.NoError(t, err)

	assert.Equal(t, "s1,s2", query["seed_tracks"])
	assert.Equal(t, "ar1", query["seed_artists"])
	assert.Equal(t, "20", query["limit"])
	assert.Equal(t, "0.5", query["target_energy"])
	assert.Equal(t, "0.5", query["target_danceability"])
	assert.Equal(t, "0.5", query["target_valence"])

	require.Len(t, tracks, 1)
	assert.Equal(t, "c1", tracks[0].ID)
	assert.Equal(t, "Neon Nights", tracks[0].Title)
	assert.Equal(t, library.SourceCatalog, tracks[0].Source)
}

func TestClientErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := NewClient(server.URL).Recommend(context.Background(), Request{SeedTracks: []string{"s"}})
	assert.Error(t, err)
}
