package player

import (
	"context"
	"errors"
	"time"

	"cadence/src/library"
	"cadence/src/util"
)

// ErrSupersededLoad is returned by an Embedded when a load is rejected
// because a load with a newer generation has already been accepted. Callers
// must discard the rejected load silently, the newer one owns the player.
var ErrSupersededLoad = errors.New("load superseded by a newer one")

// PlayState enumerates the transport states of the embedded player.
type PlayState string

const (
	PlayStateInvalid PlayState = ""
	PlayStatePlaying PlayState = "playing"
	PlayStateStopped PlayState = "stopped"
	PlayStatePaused  PlayState = "paused"
)

// RepeatMode enumerates the queue repeat behaviours.
type RepeatMode string

const (
	RepeatOff RepeatMode = "off"
	RepeatAll RepeatMode = "all"
	RepeatOne RepeatMode = "one"
)

// Cycle returns the mode that follows in the off → all → one → off cycle.
func (m RepeatMode) Cycle() RepeatMode {
	switch m {
	case RepeatOff:
		return RepeatAll
	case RepeatAll:
		return RepeatOne
	default:
		return RepeatOff
	}
}

// Embedded is the contract of the embedded media player adapter.
//
// A single instance exists per controller and all loads are serialized
// through it. Implementations own the lifecycle of the underlying platform
// player, convert its callbacks into events on their emitter and never
// propagate platform errors back through these methods beyond transport
// failures. Generations tag each load so that late callbacks for a
// superseded load can be told apart from current ones.
type Embedded interface {
	util.Eventer

	// Load cues the specified media and starts playback. A load whose
	// generation is older than the last accepted one is rejected with
	// ErrSupersededLoad.
	Load(ctx context.Context, generation uint64, mediaID string) error
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	Seek(ctx context.Context, position time.Duration) error
	// SetVolume expects a value in [0,100].
	SetVolume(ctx context.Context, volume int) error
	Stop(ctx context.Context) error
	Close() error
}

// Events emitted by Embedded implementations and republished, together with
// the controller's own, on the controller emitter.

// TimeEvent reports playback progress.
type TimeEvent struct {
	Time     time.Duration
	Duration time.Duration
}

// EndedEvent signals that the load tagged with Generation finished, either by
// reaching the natural end of the media or through a playback error that was
// already logged by the adapter.
type EndedEvent struct {
	Generation uint64
}

// PlayStateEvent reports a play state change of the underlying player.
type PlayStateEvent struct {
	State PlayState
}

// TrackEvent signals that the current track changed.
type TrackEvent struct {
	ID string
}

// PlaylistEvent signals that the queue or the position within it changed.
type PlaylistEvent struct {
	Index int
}

// VolumeEvent reports a volume change.
type VolumeEvent struct {
	Volume int
	Muted  bool
}

// ShuffleEvent reports a shuffle toggle.
type ShuffleEvent struct {
	Shuffle bool
}

// RepeatEvent reports a repeat mode change.
type RepeatEvent struct {
	Mode RepeatMode
}

// AutoplayEvent reports an autoplay toggle.
type AutoplayEvent struct {
	Enabled bool
}

// Status is an atomic snapshot of the transport state. Presentation layers
// must read state through snapshots rather than single fields so that track
// identity and progress can never tear.
type Status struct {
	Current  *library.Track  `json:"current"`
	Playing  bool            `json:"playing"`
	Time     time.Duration   `json:"-"`
	Duration time.Duration   `json:"-"`
	Volume   int             `json:"volume"`
	Muted    bool            `json:"muted"`
	Shuffle  bool            `json:"shuffle"`
	Repeat   RepeatMode      `json:"repeat"`
	Autoplay bool            `json:"autoplay"`
	Index    int             `json:"index"`
	Queue    []library.Track `json:"queue"`
}
