package resolver

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	log "github.com/sirupsen/logrus"

	"cadence/src/library"
)

// ErrUnresolvable is returned when no playable media ID can be determined for
// a track. Callers must treat this as a skip condition, not a fatal error.
var ErrUnresolvable = errors.New("track is unresolvable")

// mediaIDPattern extracts an embeddable media ID from the URLs handed out by
// the resolution endpoint and from direct preview URLs.
var mediaIDPattern = regexp.MustCompile(`(?:[?&]v=|/embed/|/watch/|youtu\.be/)([\w-]{11})`)

// Lookup performs a remote media lookup for a free-text query and returns a
// URL containing an embeddable media ID.
type Lookup interface {
	Resolve(ctx context.Context, query string) (string, error)
}

// Resolver determines playable media IDs for canonical tracks.
//
// Resolutions are memoized, resolving the same track twice performs at most
// one remote lookup. The resolver itself never retries, retry policy belongs
// to the caller.
type Resolver struct {
	lookup Lookup
	cache  *Cache
}

func New(lookup Lookup) *Resolver {
	return &Resolver{
		lookup: lookup,
		cache:  NewCache(),
	}
}

// CacheLen exposes the number of memoized resolutions.
func (r *Resolver) CacheLen() int {
	return r.cache.Len()
}

// Resolve determines the playable media ID for the specified track.
//
// In priority order: the cache, the track's own ID when it originates from
// the media source, an ID embedded in the preview URL, and finally a remote
// lookup by title and primary artist.
func (r *Resolver) Resolve(ctx context.Context, track library.Track) (string, error) {
	key := cacheKey(track)
	if id, ok := r.cache.Get(key); ok {
		return id, nil
	}

	if track.Source == library.SourceResolved && track.ID != "" {
		r.cache.Put(key, track.ID)
		return track.ID, nil
	}

	if id := MediaIDFromURL(track.PreviewURL); id != "" {
		r.cache.Put(key, id)
		return id, nil
	}

	query := strings.TrimSpace(track.Title + " " + track.PrimaryArtist())
	if query == "" {
		return "", fmt.Errorf("%w: track has no searchable metadata", ErrUnresolvable)
	}
	playableURL, err := r.lookup.Resolve(ctx, query)
	if err != nil {
		log.WithField("query", query).Debugf("Remote lookup failed: %v", err)
		return "", fmt.Errorf("%w: %v", ErrUnresolvable, err)
	}
	id := MediaIDFromURL(playableURL)
	if id == "" {
		return "", fmt.Errorf("%w: no media ID in %q", ErrUnresolvable, playableURL)
	}

	r.cache.Put(key, id)
	return id, nil
}

// MediaIDFromURL extracts an embeddable media ID from a URL, or returns an
// empty string when the URL does not contain one.
func MediaIDFromURL(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	if m := mediaIDPattern.FindStringSubmatch(rawURL); m != nil {
		return m[1]
	}
	return ""
}

// cacheKey falls back to the track title for descriptors without an ID.
func cacheKey(track library.Track) string {
	if track.ID != "" {
		return track.ID
	}
	return track.Title
}
