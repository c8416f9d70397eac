package player

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cadence/src/library"
)

func testTracks(ids ...string) []library.Track {
	tracks := make([]library.Track, len(ids))
	for i, id := range ids {
		tracks[i] = library.Track{ID: id, Title: "Title " + id, Source: library.SourceCatalog}
	}
	return tracks
}

func sortedIDs(tracks []library.Track) []string {
	ids := make([]string, len(tracks))
	for i, t := range tracks {
		ids[i] = t.ID
	}
	sort.Strings(ids)
	return ids
}

func TestShuffleKeepsMultiset(t *testing.T) {
	tracks := testTracks("a", "b", "c", "d", "e")
	var q queue
	q.Replace(tracks, tracks[0])

	for i := 0; i < 8; i++ {
		q.SetShuffle(!q.shuffle, &tracks[2])
		assert.Equal(t, sortedIDs(tracks), sortedIDs(q.Active()),
			"active view must contain the same multiset after %d toggles", i+1)
	}
}

func TestShuffleStartsWithCurrent(t *testing.T) {
	tracks := testTracks("a", "b", "c", "d", "e")
	var q queue
	q.Replace(tracks, tracks[0])

	q.SetShuffle(true, &tracks[3])
	require.NotEmpty(t, q.Active())
	assert.Equal(t, "d", q.Active()[0].ID, "current track must lead the shuffled view")
}

func TestReplaceWhileShuffled(t *testing.T) {
	tracks := testTracks("a", "b", "c")
	var q queue
	q.SetShuffle(true, nil)
	q.Replace(tracks, tracks[1])

	assert.Equal(t, sortedIDs(tracks), sortedIDs(q.Active()))
	assert.Equal(t, "b", q.Active()[0].ID)
}

func TestAppendReachesBothViews(t *testing.T) {
	tracks := testTracks("a", "b", "c")
	var q queue
	q.Replace(tracks, tracks[0])
	q.SetShuffle(true, &tracks[0])

	extra := library.Track{ID: "x", Source: library.SourceCatalog}
	q.Append(extra)

	assert.Contains(t, sortedIDs(q.Active()), "x")
	q.SetShuffle(false, nil)
	assert.Contains(t, sortedIDs(q.Active()), "x")
}

func TestInsertAfter(t *testing.T) {
	tracks := testTracks("a", "b", "c")
	var q queue
	q.Replace(tracks, tracks[0])

	q.InsertAfter(0, library.Track{ID: "x", Source: library.SourceCatalog})
	ids := make([]string, 0, 4)
	for _, tr := range q.Active() {
		ids = append(ids, tr.ID)
	}
	assert.Equal(t, []string{"a", "x", "b", "c"}, ids)
}

func TestIndexOfMissingTrack(t *testing.T) {
	var q queue
	q.Replace(testTracks("a", "b"), library.Track{})
	assert.Equal(t, -1, q.IndexOf(library.Track{ID: "zzz"}))
}
