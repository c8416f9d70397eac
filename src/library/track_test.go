package library

import (
	"testing"
	"time"
)

func TestResolvedMediaDescriptor(t *testing.T) {
	// Media titles with an "<artist> - <title>" pattern are split.
	track := ResolvedMediaTrack{
		MediaID:    "dQw4w9WgXcQ",
		Title:      "Some Artist - Some Title",
		Uploader:   "SomeChannel",
		DurationMS: 212000,
	}.Descriptor()
	if track.Title != "Some Title" || track.PrimaryArtist() != "Some Artist" {
		t.Fatalf("Unexpected artist and title: %q - %q", track.PrimaryArtist(), track.Title)
	}
	if track.Source != SourceResolved {
		t.Fatalf("Unexpected source: %q", track.Source)
	}
	if track.Duration != 212*time.Second {
		t.Fatalf("Unexpected duration: %v", track.Duration)
	}

	// Without the pattern, the uploader is the artist.
	track = ResolvedMediaTrack{MediaID: "x", Title: "Some Title", Uploader: "SomeChannel"}.Descriptor()
	if track.Title != "Some Title" || track.PrimaryArtist() != "SomeChannel" {
		t.Fatalf("Unexpected artist and title: %q - %q", track.PrimaryArtist(), track.Title)
	}
}

func TestCatalogDescriptor(t *testing.T) {
	track := CatalogTrack{
		ID:          "cat1",
		Name:        " Some Title ",
		Artists:     []Artist{{Name: "A"}, {Name: "B"}},
		AlbumName:   "Some Album",
		AlbumImages: []string{"http://example.com/cover.jpg"},
		DurationMS:  1000,
	}.Descriptor()
	if track.Title != "Some Title" {
		t.Fatalf("Unexpected title: %q", track.Title)
	}
	if track.Source != SourceCatalog {
		t.Fatalf("Unexpected source: %q", track.Source)
	}
	if track.PrimaryArtist() != "A" {
		t.Fatalf("Unexpected primary artist: %q", track.PrimaryArtist())
	}
	if track.Album == nil || track.Album.Name != "Some Album" {
		t.Fatalf("Album reference was not kept: %#v", track.Album)
	}

	// No album info should leave the reference nil.
	track = CatalogTrack{ID: "cat2", Name: "t"}.Descriptor()
	if track.Album != nil {
		t.Fatalf("Expected nil album, got %#v", track.Album)
	}
}

func TestTrackSame(t *testing.T) {
	a := Track{ID: "x", Source: SourceCatalog}
	b := Track{ID: "x", Source: SourceResolved}
	if !a.Same(b) {
		t.Fatal("Tracks with equal IDs should be the same track")
	}
	if (Track{}).Same(Track{}) {
		t.Fatal("Tracks without IDs should never match")
	}
}
