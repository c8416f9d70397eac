// Package mpd drives playback through a Music Player Daemon instance. It is
// the embedded player adapter: resolved media IDs are turned into stream
// URIs, cued on the daemon and its asynchronous events are translated into
// the controller's event vocabulary.
package mpd

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fhs/gompd/v2/mpd"
	log "github.com/sirupsen/logrus"

	"cadence/src/player"
	"cadence/src/util"
)

// timePollInterval is how often the playback position is sampled while
// playing. MPD does not push sub-second progress updates.
const timePollInterval = 100 * time.Millisecond

// Player adapts an MPD server to the player.Embedded contract. A single
// instance serializes all loads; the daemon connection is established lazily
// on the first load.
type Player struct {
	events util.Emitter

	network, address, passwd string
	// urlTemplate turns a playable media ID into a stream URI, with %s
	// substituted by the ID. IDs that already are URIs pass through.
	urlTemplate string

	// loadLock serializes whole cue sequences so that the generation check
	// and the clear/add/play it guards are atomic.
	loadLock sync.Mutex

	lock          sync.Mutex
	initialized   bool
	watcher       *mpd.Watcher
	state         player.PlayState
	generation    uint64
	stopRequested bool
	pollCancel    context.CancelFunc
}

var _ player.Embedded = (*Player)(nil)

// Connect creates the adapter. No connection is made until the first load.
func Connect(network, address string, passwd *string, urlTemplate string) *Player {
	pl := &Player{
		network:     network,
		address:     address,
		urlTemplate: urlTemplate,
		state:       player.PlayStateInvalid,
	}
	if passwd != nil {
		pl.passwd = *passwd
	}
	return pl
}

func (pl *Player) Events() *util.Emitter {
	return &pl.events
}

// ensureInit lazily constructs the event watcher, moving the adapter from
// uninitialized to ready.
func (pl *Player) ensureInit() error {
	pl.lock.Lock()
	defer pl.lock.Unlock()
	if pl.initialized {
		return nil
	}

	watcher, err := mpd.NewWatcher(pl.network, pl.address, pl.passwd, "player")
	if err != nil {
		return fmt.Errorf("unable to connect to MPD: %w", err)
	}
	pl.watcher = watcher
	pl.initialized = true
	pl.state = player.PlayStateStopped
	go pl.eventLoop()
	return nil
}

// withMpd runs fn on a fresh connection. Sharing a connection with the idle
// watcher corrupts its event stream.
func (pl *Player) withMpd(fn func(*mpd.Client) error) error {
	client, err := mpd.DialAuthenticated(pl.network, pl.address, pl.passwd)
	if err != nil {
		return err
	}
	defer client.Close()
	return fn(client)
}

func (pl *Player) eventLoop() {
	for {
		select {
		case subsystem, ok := <-pl.watcher.Event:
			if !ok {
				return
			}
			if subsystem != "player" {
				continue
			}
			pl.syncState()
		case err, ok := <-pl.watcher.Error:
			if !ok {
				return
			}
			log.Errorf("MPD watcher: %v", err)
		}
	}
}

// syncState pulls the daemon state and maps transitions onto events. A stop
// that was not requested while we were playing is the natural end of the
// cued media.
func (pl *Player) syncState() {
	var state string
	var errStr string
	err := pl.withMpd(func(mpdc *mpd.Client) error {
		status, err := mpdc.Status()
		if err != nil {
			return err
		}
		state = status["state"]
		errStr = status["error"]
		return nil
	})
	if err != nil {
		log.Errorf("Unable to query MPD status: %v", err)
		return
	}

	pl.lock.Lock()
	prev := pl.state
	gen := pl.generation
	stopRequested := pl.stopRequested
	switch state {
	case "play":
		pl.state = player.PlayStatePlaying
		pl.startPollerLocked()
	case "pause":
		pl.state = player.PlayStatePaused
		pl.stopPollerLocked()
	case "stop":
		pl.state = player.PlayStateStopped
		pl.stopPollerLocked()
	}
	cur := pl.state
	pl.lock.Unlock()

	if errStr != "" {
		// Playback errors degrade to a skip, a stuck player is worse.
		log.Errorf("MPD playback error: %v", errStr)
		pl.events.Emit(player.EndedEvent{Generation: gen})
		return
	}
	if cur == player.PlayStateStopped && prev == player.PlayStatePlaying && !stopRequested {
		pl.events.Emit(player.EndedEvent{Generation: gen})
		return
	}
	if cur != prev {
		pl.events.Emit(player.PlayStateEvent{State: cur})
	}
}

// pollTime samples the playback position while playing.
func (pl *Player) pollTime(ctx context.Context) {
	ticker := time.NewTicker(timePollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		var elapsed, duration float64
		err := pl.withMpd(func(mpdc *mpd.Client) error {
			status, err := mpdc.Status()
			if err != nil {
				return err
			}
			elapsed, _ = strconv.ParseFloat(status["elapsed"], 64)
			duration, _ = strconv.ParseFloat(status["duration"], 64)
			return nil
		})
		if err != nil {
			log.Debugf("Unable to poll MPD time: %v", err)
			continue
		}
		pl.events.Emit(player.TimeEvent{
			Time:     time.Duration(elapsed * float64(time.Second)),
			Duration: time.Duration(duration * float64(time.Second)),
		})
	}
}

func (pl *Player) startPollerLocked() {
	if pl.pollCancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	pl.pollCancel = cancel
	go pl.pollTime(ctx)
}

func (pl *Player) stopPollerLocked() {
	if pl.pollCancel != nil {
		pl.pollCancel()
		pl.pollCancel = nil
	}
}

// Load implements the player.Embedded interface. The cued media replaces
// whatever is playing and playback starts immediately. Loads carrying an
// older generation than the last accepted one are rejected, the newest
// current track wins.
func (pl *Player) Load(ctx context.Context, generation uint64, mediaID string) error {
	if err := pl.ensureInit(); err != nil {
		return err
	}

	pl.loadLock.Lock()
	defer pl.loadLock.Unlock()

	pl.lock.Lock()
	if generation < pl.generation {
		pl.lock.Unlock()
		return player.ErrSupersededLoad
	}
	pl.generation = generation
	// Clearing the playlist stops the daemon, which must not read as a
	// natural end of the previous media.
	pl.stopRequested = true
	pl.lock.Unlock()

	uri := pl.mediaURL(mediaID)
	err := pl.withMpd(func(mpdc *mpd.Client) error {
		if err := mpdc.Clear(); err != nil {
			return err
		}
		if err := mpdc.Add(uri); err != nil {
			return err
		}
		return mpdc.Play(0)
	})
	if err != nil {
		return fmt.Errorf("could not cue %q: %w", mediaID, err)
	}

	pl.lock.Lock()
	pl.stopRequested = false
	pl.state = player.PlayStatePlaying
	pl.startPollerLocked()
	pl.lock.Unlock()
	return nil
}

func (pl *Player) Pause(ctx context.Context) error {
	pl.lock.Lock()
	pl.state = player.PlayStatePaused
	pl.stopPollerLocked()
	pl.lock.Unlock()
	return pl.withMpd(func(mpdc *mpd.Client) error {
		return mpdc.Pause(true)
	})
}

func (pl *Player) Resume(ctx context.Context) error {
	pl.lock.Lock()
	pl.state = player.PlayStatePlaying
	pl.startPollerLocked()
	pl.lock.Unlock()
	return pl.withMpd(func(mpdc *mpd.Client) error {
		status, err := mpdc.Status()
		if err != nil {
			return err
		}
		if status["state"] == "stop" {
			return mpdc.Play(0)
		}
		return mpdc.Pause(false)
	})
}

func (pl *Player) Seek(ctx context.Context, position time.Duration) error {
	return pl.withMpd(func(mpdc *mpd.Client) error {
		status, err := mpdc.Status()
		if err != nil {
			return err
		}
		str, ok := status["songid"]
		if !ok {
			// Nothing is cued, seeking is a no-op.
			return nil
		}
		id, err := strconv.Atoi(str)
		if err != nil {
			return err
		}
		return mpdc.SeekID(id, int(position/time.Second))
	})
}

func (pl *Player) SetVolume(ctx context.Context, volume int) error {
	if volume < 0 {
		volume = 0
	} else if volume > 100 {
		volume = 100
	}
	return pl.withMpd(func(mpdc *mpd.Client) error {
		return mpdc.SetVolume(volume)
	})
}

func (pl *Player) Stop(ctx context.Context) error {
	pl.lock.Lock()
	pl.stopRequested = true
	pl.state = player.PlayStateStopped
	pl.stopPollerLocked()
	initialized := pl.initialized
	pl.lock.Unlock()
	if !initialized {
		return nil
	}
	return pl.withMpd(func(mpdc *mpd.Client) error {
		return mpdc.Stop()
	})
}

// Close tears down the poller and the watcher connection.
func (pl *Player) Close() error {
	pl.lock.Lock()
	pl.stopPollerLocked()
	watcher := pl.watcher
	pl.watcher = nil
	pl.initialized = false
	pl.lock.Unlock()
	if watcher != nil {
		return watcher.Close()
	}
	return nil
}

func (pl *Player) mediaURL(mediaID string) string {
	if strings.Contains(mediaID, "://") {
		return mediaID
	}
	if strings.Contains(pl.urlTemplate, "%s") {
		return fmt.Sprintf(pl.urlTemplate, mediaID)
	}
	return mediaID
}
