package library

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var interpArtistTitle = regexp.MustCompile(`(.+?)\s+-\s+(.+)`)

// TrackSource tags the origin of a track descriptor.
type TrackSource string

const (
	// SourceResolved marks tracks whose ID already is a playable media ID.
	SourceResolved TrackSource = "resolved"
	// SourceCatalog marks tracks from an external catalog whose ID still
	// needs to be resolved before playback.
	SourceCatalog TrackSource = "catalog"
)

// Artist names a performing artist with an optional catalog ID.
type Artist struct {
	Name string `json:"name"`
	ID   string `json:"id,omitempty"`
}

// Album holds the album reference of a track, if known.
type Album struct {
	Name   string   `json:"name,omitempty"`
	Images []string `json:"images,omitempty"`
}

// Track is the canonical descriptor of a playable song. All external shapes
// are normalized into this type before entering the playback controller.
//
// The ID together with the Source tag is unique within a queue. Two tracks
// are the same track when their IDs are equal.
type Track struct {
	ID         string        `json:"id"`
	Title      string        `json:"title"`
	Artists    []Artist      `json:"artists,omitempty"`
	Album      *Album        `json:"album,omitempty"`
	Source     TrackSource   `json:"source"`
	PreviewURL string        `json:"preview_url,omitempty"`
	Duration   time.Duration `json:"-"`
}

// PrimaryArtist returns the name of the first listed artist or an empty
// string when the artist list is empty.
func (t Track) PrimaryArtist() string {
	if len(t.Artists) == 0 {
		return ""
	}
	return t.Artists[0].Name
}

// Same reports whether the specified track is the same track.
func (t Track) Same(other Track) bool {
	return t.ID != "" && t.ID == other.ID
}

func (t Track) String() string {
	return fmt.Sprintf("%s - %s (%v)", t.PrimaryArtist(), t.Title, t.Duration)
}

// ResolvedMediaTrack is the raw shape of a track that originates from the
// media source itself. Its MediaID can be loaded directly without resolution.
type ResolvedMediaTrack struct {
	MediaID    string   `json:"media_id"`
	Title      string   `json:"title"`
	Uploader   string   `json:"uploader,omitempty"`
	Thumbnails []string `json:"thumbnails,omitempty"`
	DurationMS int64    `json:"duration_ms,omitempty"`
}

// Descriptor normalizes the raw resolved-media shape into a canonical track.
//
// Media titles commonly embed the artist as "<artist> - <title>", in which
// case the two are split. The uploader is used as artist otherwise.
func (r ResolvedMediaTrack) Descriptor() Track {
	title := strings.TrimSpace(r.Title)
	artist := strings.TrimSpace(r.Uploader)
	if m := interpArtistTitle.FindStringSubmatch(title); m != nil {
		artist, title = strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
	}

	track := Track{
		ID:       r.MediaID,
		Title:    title,
		Source:   SourceResolved,
		Duration: time.Duration(r.DurationMS) * time.Millisecond,
	}
	if artist != "" {
		track.Artists = []Artist{{Name: artist}}
	}
	if len(r.Thumbnails) > 0 {
		track.Album = &Album{Images: r.Thumbnails}
	}
	return track
}

// CatalogTrack is the raw shape of a track that originates from an external
// music catalog.
type CatalogTrack struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Artists     []Artist `json:"artists,omitempty"`
	AlbumName   string   `json:"album_name,omitempty"`
	AlbumImages []string `json:"album_images,omitempty"`
	PreviewURL  string   `json:"preview_url,omitempty"`
	DurationMS  int64    `json:"duration_ms,omitempty"`
}

// Descriptor normalizes the raw catalog shape into a canonical track.
func (c CatalogTrack) Descriptor() Track {
	track := Track{
		ID:         c.ID,
		Title:      strings.TrimSpace(c.Name),
		Artists:    c.Artists,
		Source:     SourceCatalog,
		PreviewURL: c.PreviewURL,
		Duration:   time.Duration(c.DurationMS) * time.Millisecond,
	}
	if c.AlbumName != "" || len(c.AlbumImages) > 0 {
		track.Album = &Album{Name: c.AlbumName, Images: c.AlbumImages}
	}
	return track
}
