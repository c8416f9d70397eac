// Package autoplay extends an exhausted playback queue with recommended
// tracks seeded from the current track and the listening history.
package autoplay

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"

	"cadence/src/library"
	"cadence/src/player"
)

const (
	// recommendLimit is the number of candidates requested per extension.
	recommendLimit = 20
	// maxHistorySeeds caps the number of history IDs added to the seed list.
	maxHistorySeeds = 3
	// playedTTL bounds the session played set. After this interval tracks
	// may be recommended again.
	playedTTL = 30 * time.Minute
)

// HistorySource provides recently played track IDs, most recent first.
type HistorySource interface {
	RecentIDs(ctx context.Context, n int) []string
}

// Extender requests recommendations and filters them against what the
// session has already played.
type Extender struct {
	rec     Recommender
	history HistorySource

	// now is swappable for tests.
	now func() time.Time

	lock      sync.Mutex
	played    map[string]struct{}
	lastSweep time.Time
}

var _ player.Extender = (*Extender)(nil)

func NewExtender(rec Recommender, history HistorySource) *Extender {
	ex := &Extender{
		rec:     rec,
		history: history,
		now:     time.Now,
		played:  map[string]struct{}{},
	}
	ex.lastSweep = ex.now()
	return ex
}

// MarkPlayed adds a track ID to the session played set.
func (ex *Extender) MarkPlayed(id string) {
	ex.lock.Lock()
	defer ex.lock.Unlock()
	ex.sweepLocked()
	ex.played[id] = struct{}{}
}

// Extend requests recommendations seeded by the specified track plus the
// most recent distinct history IDs and filters the result against the
// played set and the exclude list. When filtering leaves nothing, a
// narrower single-seed request is made and returned unfiltered.
func (ex *Extender) Extend(ctx context.Context, seed library.Track, exclude []string) ([]library.Track, error) {
	ex.lock.Lock()
	ex.sweepLocked()
	ex.lock.Unlock()

	seeds := ex.seedIDs(ctx, seed)
	tracks, err := ex.rec.Recommend(ctx, Request{
		SeedTracks:  seeds,
		SeedArtists: artistIDs(seed),
		Limit:       recommendLimit,
	})
	if err == nil {
		fresh := lo.Filter(tracks, func(t library.Track, _ int) bool {
			return t.ID != seed.ID && !ex.playedBefore(t.ID) && !lo.Contains(exclude, t.ID)
		})
		if len(fresh) > 0 {
			return fresh, nil
		}
	} else {
		log.Warnf("Recommendation request failed, retrying single-seed: %v", err)
	}

	// Everything was filtered away or the request failed. Retry with just
	// the one seed and take whatever comes back.
	tracks, err = ex.rec.Recommend(ctx, Request{
		SeedTracks: []string{seed.ID},
		Limit:      recommendLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("could not extend queue: %w", err)
	}
	return lo.Filter(tracks, func(t library.Track, _ int) bool {
		return t.ID != seed.ID
	}), nil
}

// seedIDs builds the seed list: the current track first, then up to
// maxHistorySeeds distinct recent history IDs.
func (ex *Extender) seedIDs(ctx context.Context, seed library.Track) []string {
	seeds := []string{seed.ID}
	if ex.history == nil {
		return seeds
	}
	for _, id := range ex.history.RecentIDs(ctx, maxHistorySeeds+1) {
		if len(seeds) >= maxHistorySeeds+1 {
			break
		}
		if id != "" && !lo.Contains(seeds, id) {
			seeds = append(seeds, id)
		}
	}
	return seeds
}

func (ex *Extender) playedBefore(id string) bool {
	ex.lock.Lock()
	defer ex.lock.Unlock()
	_, ok := ex.played[id]
	return ok
}

// sweepLocked clears the played set once playedTTL has passed. The lock must
// be held.
func (ex *Extender) sweepLocked() {
	if ex.now().Sub(ex.lastSweep) < playedTTL {
		return
	}
	ex.played = map[string]struct{}{}
	ex.lastSweep = ex.now()
}

func artistIDs(track library.Track) []string {
	ids := lo.FilterMap(track.Artists, func(a library.Artist, _ int) (string, bool) {
		return a.ID, a.ID != ""
	})
	return ids
}
