// Package history keeps the recently played tracks: a bounded,
// most-recent-first list deduplicated by track ID. Recording is best-effort,
// a failed write never disturbs playback.
package history

import (
	"context"

	"github.com/samber/lo"

	"cadence/src/library"
)

// maxEntries bounds the history length.
const maxEntries = 20

// Store reads and records played tracks.
type Store interface {
	Record(ctx context.Context, track library.Track)
	Recent(ctx context.Context) []library.Track
	RecentIDs(ctx context.Context, n int) []string
}

// push prepends the track, drops older entries with the same ID and trims
// the list to maxEntries.
func push(entries []library.Track, track library.Track) []library.Track {
	if track.ID == "" {
		return entries
	}
	kept := lo.Filter(entries, func(t library.Track, _ int) bool {
		return t.ID != track.ID
	})
	entries = append([]library.Track{track}, kept...)
	if len(entries) > maxEntries {
		entries = entries[:maxEntries]
	}
	return entries
}

func recentIDs(entries []library.Track, n int) []string {
	if len(entries) > n {
		entries = entries[:n]
	}
	return lo.Map(entries, func(t library.Track, _ int) string {
		return t.ID
	})
}
