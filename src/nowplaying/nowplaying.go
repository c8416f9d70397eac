//go:build linux

// Package nowplaying registers the playback controller with the desktop
// "now playing" controls: transport actions map to standard media keys and
// the current track's metadata is published whenever it changes.
package nowplaying

import (
	"fmt"
	"hash/fnv"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/quarckster/go-mpris-server/pkg/server"
	"github.com/quarckster/go-mpris-server/pkg/types"
	log "github.com/sirupsen/logrus"

	"cadence/src/player"
)

// Adapter exposes a player.Controller as an MPRIS media player over D-Bus.
type Adapter struct {
	server *server.Server
}

// New creates and starts the adapter.
func New(pl *player.Controller) (*Adapter, error) {
	a := &Adapter{}
	a.server = server.NewServer("cadence", &rootAdapter{}, &playerAdapter{pl: pl})
	go func() {
		if err := a.server.Listen(); err != nil {
			log.Warnf("MPRIS server stopped: %v", err)
		}
	}()
	return a, nil
}

// Close releases the D-Bus name.
func (a *Adapter) Close() error {
	return a.server.Stop()
}

type rootAdapter struct{}

func (r *rootAdapter) Raise() error { return nil }
func (r *rootAdapter) Quit() error { return nil }
func (r *rootAdapter) CanQuit() (bool, error) { return false, nil }
func (r *rootAdapter) CanRaise() (bool, error) { return false, nil }
func (r *rootAdapter) HasTrackList() (bool, error) { return false, nil }
func (r *rootAdapter) Identity() (string, error) { return "Cadence", nil }
func (r *rootAdapter) SupportedUriSchemes() ([]string, error) { return []string{}, nil }
func (r *rootAdapter) SupportedMimeTypes() ([]string, error) { return []string{}, nil }

type playerAdapter struct {
	pl *player.Controller
}

func (p *playerAdapter) Next() error {
	p.pl.NextTrack()
	return nil
}

func (p *playerAdapter) Previous() error {
	p.pl.PrevTrack()
	return nil
}

func (p *playerAdapter) Pause() error {
	if p.pl.Status().Playing {
		p.pl.TogglePlay()
	}
	return nil
}

func (p *playerAdapter) PlayPause() error {
	p.pl.TogglePlay()
	return nil
}

func (p *playerAdapter) Stop() error {
	return p.Pause()
}

func (p *playerAdapter) Play() error {
	if !p.pl.Status().Playing {
		p.pl.TogglePlay()
	}
	return nil
}

func (p *playerAdapter) Seek(offset types.Microseconds) error {
	st := p.pl.Status()
	p.pl.Seek(st.Time + time.Duration(offset)*time.Microsecond)
	return nil
}

func (p *playerAdapter) SetPosition(_ string, position types.Microseconds) error {
	p.pl.Seek(time.Duration(position) * time.Microsecond)
	return nil
}

func (p *playerAdapter) OpenUri(_ string) error { return nil }

func (p *playerAdapter) PlaybackStatus() (types.PlaybackStatus, error) {
	st := p.pl.Status()
	switch {
	case st.Playing:
		return types.PlaybackStatusPlaying, nil
	case st.Current != nil:
		return types.PlaybackStatusPaused, nil
	}
	return types.PlaybackStatusStopped, nil
}

func (p *playerAdapter) Rate() (float64, error) { return 1.0, nil }
func (p *playerAdapter) SetRate(_ float64) error { return nil }
func (p *playerAdapter) MinimumRate() (float64, error) { return 1.0, nil }
func (p *playerAdapter) MaximumRate() (float64, error) { return 1.0, nil }

func (p *playerAdapter) Metadata() (types.Metadata, error) {
	st := p.pl.Status()
	if st.Current == nil {
		return types.Metadata{}, nil
	}
	track := *st.Current

	meta := types.Metadata{
		TrackId: dbus.ObjectPath(trackObjectPath(track.ID)),
		Length:  types.Microseconds(track.Duration.Microseconds()),
		Title:   track.Title,
	}
	for _, artist := range track.Artists {
		meta.Artist = append(meta.Artist, artist.Name)
	}
	if track.Album != nil {
		meta.Album = track.Album.Name
		if len(track.Album.Images) > 0 {
			meta.ArtUrl = track.Album.Images[0]
		}
	}
	return meta, nil
}

func (p *playerAdapter) Volume() (float64, error) {
	st := p.pl.Status()
	if st.Muted {
		return 0, nil
	}
	return float64(st.Volume) / 100, nil
}

func (p *playerAdapter) SetVolume(v float64) error {
	p.pl.SetVolume(int(v * 100))
	return nil
}

func (p *playerAdapter) Position() (int64, error) {
	return p.pl.Status().Time.Microseconds(), nil
}

func (p *playerAdapter) CanGoNext() (bool, error) {
	st := p.pl.Status()
	return st.Index >= 0 && st.Index+1 < len(st.Queue), nil
}

func (p *playerAdapter) CanGoPrevious() (bool, error) {
	return p.pl.Status().Current != nil, nil
}

func (p *playerAdapter) CanPlay() (bool, error) {
	return p.pl.Status().Current != nil, nil
}

func (p *playerAdapter) CanPause() (bool, error) { return true, nil }
func (p *playerAdapter) CanSeek() (bool, error) { return true, nil }
func (p *playerAdapter) CanControl() (bool, error) { return true, nil }

// LoopStatus implements OrgMprisMediaPlayer2PlayerAdapterLoopStatus.
func (p *playerAdapter) LoopStatus() (types.LoopStatus, error) {
	switch p.pl.Status().Repeat {
	case player.RepeatOne:
		return types.LoopStatusTrack, nil
	case player.RepeatAll:
		return types.LoopStatusPlaylist, nil
	}
	return types.LoopStatusNone, nil
}

// SetLoopStatus implements OrgMprisMediaPlayer2PlayerAdapterLoopStatus.
func (p *playerAdapter) SetLoopStatus(status types.LoopStatus) error {
	switch status {
	case types.LoopStatusNone:
		p.pl.SetRepeat(player.RepeatOff)
	case types.LoopStatusTrack:
		p.pl.SetRepeat(player.RepeatOne)
	case types.LoopStatusPlaylist:
		p.pl.SetRepeat(player.RepeatAll)
	}
	return nil
}

// Shuffle implements OrgMprisMediaPlayer2PlayerAdapterShuffle.
func (p *playerAdapter) Shuffle() (bool, error) {
	return p.pl.Status().Shuffle, nil
}

// SetShuffle implements OrgMprisMediaPlayer2PlayerAdapterShuffle.
func (p *playerAdapter) SetShuffle(shuffle bool) error {
	p.pl.SetShuffle(shuffle)
	return nil
}

func trackObjectPath(id string) string {
	h := fnv.New64a()
	h.Write([]byte(id))
	return fmt.Sprintf("/org/mpris/MediaPlayer2/Track/%x", h.Sum64())
}
