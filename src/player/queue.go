package player

import (
	"math/rand"

	"github.com/samber/lo"

	"cadence/src/library"
)

// queue owns the linear track order and its shuffled view. Both views always
// contain the same multiset of tracks, whichever is active is determined by
// the shuffle flag.
type queue struct {
	linear   []library.Track
	shuffled []library.Track
	shuffle  bool
}

// Active returns the view playback currently walks.
func (q *queue) Active() []library.Track {
	if q.shuffle {
		return q.shuffled
	}
	return q.linear
}

func (q *queue) Len() int {
	return len(q.linear)
}

// IDs returns the identifiers of all queued tracks.
func (q *queue) IDs() []string {
	return lo.Map(q.linear, func(t library.Track, _ int) string { return t.ID })
}

// IndexOf locates a track in the active view by identity, -1 if absent.
func (q *queue) IndexOf(track library.Track) int {
	return lo.IndexOf(lo.Map(q.Active(), func(t library.Track, _ int) string { return t.ID }), track.ID)
}

// Replace installs a new linear order. When shuffle is active the shuffled
// view is regenerated with the specified current track at its head.
func (q *queue) Replace(tracks []library.Track, current library.Track) {
	q.linear = append([]library.Track{}, tracks...)
	if q.shuffle {
		q.reshuffle(current)
	}
}

// Append adds a track to the end of the linear order and, when active, the
// shuffled view.
func (q *queue) Append(track library.Track) {
	q.linear = append(q.linear, track)
	if q.shuffle {
		q.shuffled = append(q.shuffled, track)
	}
}

// InsertAfter places a track directly after position pos in the active view
// and appends it to the other view.
func (q *queue) InsertAfter(pos int, track library.Track) {
	if q.shuffle {
		q.shuffled = insertAt(q.shuffled, pos+1, track)
		q.linear = append(q.linear, track)
		return
	}
	q.linear = insertAt(q.linear, pos+1, track)
	if q.shuffled != nil {
		q.shuffled = append(q.shuffled, track)
	}
}

// SetShuffle toggles shuffle mode. Turning it on regenerates the shuffled
// view with the current track first, turning it off resumes the linear order.
func (q *queue) SetShuffle(on bool, current *library.Track) {
	q.shuffle = on
	if !on {
		return
	}
	if current != nil {
		q.reshuffle(*current)
	} else {
		q.reshuffle(library.Track{})
	}
}

func (q *queue) reshuffle(current library.Track) {
	rest := lo.Filter(q.linear, func(t library.Track, _ int) bool { return !t.Same(current) })
	rest = append([]library.Track{}, rest...)
	rand.Shuffle(len(rest), func(i, j int) {
		rest[i], rest[j] = rest[j], rest[i]
	})

	if head, ok := lo.Find(q.linear, func(t library.Track) bool { return t.Same(current) }); ok {
		q.shuffled = append([]library.Track{head}, rest...)
	} else {
		q.shuffled = rest
	}
}

func insertAt(tracks []library.Track, pos int, track library.Track) []library.Track {
	if pos < 0 || pos >= len(tracks) {
		return append(tracks, track)
	}
	out := make([]library.Track, 0, len(tracks)+1)
	out = append(out, tracks[:pos]...)
	out = append(out, track)
	out = append(out, tracks[pos:]...)
	return out
}
