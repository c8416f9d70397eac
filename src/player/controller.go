package player

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"cadence/src/library"
	"cadence/src/util"
)

// prevRestartThreshold is how far into a track a previous-track command
// restarts the current track instead of moving back.
const prevRestartThreshold = 5 * time.Second

// TrackResolver determines the playable media ID for a track.
type TrackResolver interface {
	Resolve(ctx context.Context, track library.Track) (string, error)
}

// Extender requests additional tracks when the queue runs out. An empty
// result means "no more tracks", not an error.
type Extender interface {
	Extend(ctx context.Context, seed library.Track, exclude []string) ([]library.Track, error)
	// MarkPlayed adds a track to the session played set used for
	// recommendation deduplication.
	MarkPlayed(id string)
}

// History records started tracks. Implementations are best-effort, a failed
// write never blocks playback.
type History interface {
	Record(ctx context.Context, track library.Track)
}

// Config carries the collaborators of a Controller. All fields except the
// stores are required.
type Config struct {
	Extender    Extender
	History     History
	VolumeStore *util.PersistentStorage[int]
	Autoplay    bool
}

// Controller owns the playback queue and transport state and is the only
// component allowed to drive the embedded player. A single instance is
// constructed at application start and injected into the outer layers.
type Controller struct {
	util.Emitter

	emb      Embedded
	resolver TrackResolver
	extender Extender
	history  History
	volStore *util.PersistentStorage[int]

	ctx    context.Context
	cancel context.CancelFunc

	lock       sync.Mutex
	queue      queue
	current    *library.Track
	playing    bool
	elapsed    time.Duration
	total      time.Duration
	volume     int
	muted      bool
	repeat     RepeatMode
	autoplay   bool
	generation uint64
}

// New creates a stopped controller. Call Start before use.
func New(emb Embedded, res TrackResolver, cfg Config) *Controller {
	c := &Controller{
		emb:      emb,
		resolver: res,
		extender: cfg.Extender,
		history:  cfg.History,
		volStore: cfg.VolumeStore,
		volume:   75,
		repeat:   RepeatOff,
		autoplay: cfg.Autoplay,
	}
	if cfg.VolumeStore != nil {
		c.volume = clampVolume(cfg.VolumeStore.Value())
	}
	return c
}

// Start launches the event loop that feeds embedded player callbacks into
// the transport state machine. The controller stops when the context is
// canceled or Close is called.
func (c *Controller) Start(ctx context.Context) {
	c.ctx, c.cancel = context.WithCancel(ctx)
	// Subscribe before returning so that events emitted right after Start
	// cannot be lost to the scheduling of the event loop goroutine.
	events := c.emb.Events().Listen(c.ctx)
	go c.run(events)
}

// Close tears down the event loop and the embedded player.
func (c *Controller) Close() error {
	if c.cancel != nil {
		c.cancel()
	}
	return c.emb.Close()
}

func (c *Controller) run(events <-chan interface{}) {
	for event := range events {
		switch ev := event.(type) {
		case TimeEvent:
			c.lock.Lock()
			c.elapsed = ev.Time
			if ev.Duration > 0 {
				c.total = ev.Duration
			}
			c.lock.Unlock()
			c.Emit(ev)

		case EndedEvent:
			c.lock.Lock()
			stale := ev.Generation != c.generation
			c.lock.Unlock()
			if stale {
				// Duplicate or superseded end callback, not a fault.
				continue
			}
			c.advance()

		case PlayStateEvent:
			// Keep our state in sync when the underlying player is
			// controlled from elsewhere.
			c.lock.Lock()
			if c.current != nil {
				c.playing = ev.State == PlayStatePlaying
			}
			c.lock.Unlock()
			c.Emit(ev)
		}
	}
}

// Status returns an atomic snapshot of the transport state and the active
// queue view.
func (c *Controller) Status() Status {
	c.lock.Lock()
	defer c.lock.Unlock()

	st := Status{
		Playing:  c.playing,
		Time:     c.elapsed,
		Duration: c.total,
		Volume:   c.volume,
		Muted:    c.muted,
		Shuffle:  c.queue.shuffle,
		Repeat:   c.repeat,
		Autoplay: c.autoplay,
		Index:    -1,
		Queue:    append([]library.Track{}, c.queue.Active()...),
	}
	if c.current != nil {
		cur := *c.current
		st.Current = &cur
		st.Index = c.queue.IndexOf(cur)
	}
	return st
}

// PlayTrack makes the specified track current and starts resolving it.
//
// A non-internal call installs newQueue as the new queue, or a single-track
// queue when none is given. Internal navigation leaves the queue untouched.
// The track is recorded to history in both cases.
func (c *Controller) PlayTrack(track library.Track, newQueue []library.Track, internal bool) {
	c.lock.Lock()
	c.generation++
	gen := c.generation
	cur := track
	c.current = &cur
	c.playing = false
	c.elapsed = 0
	c.total = track.Duration
	if !internal {
		if len(newQueue) > 0 {
			c.queue.Replace(newQueue, track)
		} else {
			c.queue.Replace([]library.Track{track}, track)
		}
	}
	index := c.queue.IndexOf(track)
	c.lock.Unlock()

	c.Emit(TrackEvent{ID: track.ID})
	c.Emit(PlaylistEvent{Index: index})

	if c.extender != nil {
		c.extender.MarkPlayed(track.ID)
	}
	if c.history != nil {
		go c.history.Record(c.runCtx(), track)
	}
	go c.resolveAndLoad(gen, track)
}

// resolveAndLoad resolves the track and cues it on the embedded player,
// unless a newer load superseded this one in the meantime. Resolution
// failures degrade to a skip.
func (c *Controller) resolveAndLoad(gen uint64, track library.Track) {
	ctx := c.runCtx()
	mediaID, err := c.resolver.Resolve(ctx, track)

	c.lock.Lock()
	stale := gen != c.generation
	c.lock.Unlock()
	if stale {
		// Expected race: the user moved on while this resolution was in
		// flight. Discard silently.
		log.WithField("track", track.ID).Debugf("Discarding stale resolution")
		return
	}

	if err != nil {
		log.WithField("track", track.ID).Warnf("Skipping unresolvable track: %v", err)
		c.advance()
		return
	}

	if err := c.emb.Load(ctx, gen, mediaID); err != nil {
		if errors.Is(err, ErrSupersededLoad) {
			// A newer load won the player while this one was in flight.
			log.WithField("track", track.ID).Debugf("Discarding superseded load")
			return
		}
		log.WithField("track", track.ID).Errorf("Could not load media %q: %v", mediaID, err)
		c.advance()
		return
	}

	c.lock.Lock()
	if gen != c.generation {
		// The player already moved on, the successor's load owns the
		// playing state and volume.
		c.lock.Unlock()
		return
	}
	c.playing = true
	vol := c.effectiveVolume()
	c.lock.Unlock()

	c.Emit(PlayStateEvent{State: PlayStatePlaying})
	if err := c.emb.SetVolume(ctx, vol); err != nil {
		log.Debugf("Could not propagate volume: %v", err)
	}
}

// TogglePlay flips between playing and paused. No-op without a current
// track.
func (c *Controller) TogglePlay() {
	c.lock.Lock()
	if c.current == nil {
		c.lock.Unlock()
		return
	}
	c.playing = !c.playing
	playing := c.playing
	c.lock.Unlock()

	ctx := c.runCtx()
	var err error
	state := PlayStatePaused
	if playing {
		err = c.emb.Resume(ctx)
		state = PlayStatePlaying
	} else {
		err = c.emb.Pause(ctx)
	}
	if err != nil {
		log.Errorf("Could not toggle playback: %v", err)
	}
	c.Emit(PlayStateEvent{State: state})
}

// Seek moves the playback position. Positions past the media length are
// clamped once the length is known.
func (c *Controller) Seek(position time.Duration) {
	c.lock.Lock()
	if c.current == nil {
		c.lock.Unlock()
		return
	}
	if position < 0 {
		position = 0
	}
	if c.total > 0 && position > c.total {
		position = c.total
	}
	c.elapsed = position
	total := c.total
	c.lock.Unlock()

	if err := c.emb.Seek(c.runCtx(), position); err != nil {
		log.Errorf("Could not seek: %v", err)
	}
	c.Emit(TimeEvent{Time: position, Duration: total})
}

// SetVolume sets the volume as a percentage, clamped to [0,100], persists it
// and propagates it to the embedded player. Setting a value above zero
// unmutes.
func (c *Controller) SetVolume(volume int) {
	volume = clampVolume(volume)

	c.lock.Lock()
	c.volume = volume
	if volume > 0 {
		c.muted = false
	}
	muted := c.muted
	effective := c.effectiveVolume()
	c.lock.Unlock()

	if c.volStore != nil {
		if err := c.volStore.SetValue(volume); err != nil {
			log.Warnf("Could not persist volume: %v", err)
		}
	}
	if err := c.emb.SetVolume(c.runCtx(), effective); err != nil {
		log.Errorf("Could not set volume: %v", err)
	}
	c.Emit(VolumeEvent{Volume: volume, Muted: muted})
}

// ToggleMute silences the player without losing the set volume.
func (c *Controller) ToggleMute() {
	c.lock.Lock()
	c.muted = !c.muted
	muted := c.muted
	volume := c.volume
	effective := c.effectiveVolume()
	c.lock.Unlock()

	if err := c.emb.SetVolume(c.runCtx(), effective); err != nil {
		log.Errorf("Could not set volume: %v", err)
	}
	c.Emit(VolumeEvent{Volume: volume, Muted: muted})
}

// ToggleShuffle flips shuffle mode. Enabling shuffle regenerates the shuffled
// view with the current track at its head.
func (c *Controller) ToggleShuffle() {
	c.lock.Lock()
	shuffle := !c.queue.shuffle
	c.lock.Unlock()
	c.SetShuffle(shuffle)
}

// SetShuffle switches between the linear and the shuffled queue view. The
// shuffled view is regenerated on every activation, with the current track
// at its head.
func (c *Controller) SetShuffle(shuffle bool) {
	c.lock.Lock()
	c.queue.SetShuffle(shuffle, c.current)
	index := -1
	if c.current != nil {
		index = c.queue.IndexOf(*c.current)
	}
	c.lock.Unlock()

	c.Emit(ShuffleEvent{Shuffle: shuffle})
	c.Emit(PlaylistEvent{Index: index})
}

// CycleRepeat advances the repeat mode through off → all → one.
func (c *Controller) CycleRepeat() {
	c.lock.Lock()
	mode := c.repeat.Cycle()
	c.lock.Unlock()
	c.SetRepeat(mode)
}

func (c *Controller) SetRepeat(mode RepeatMode) {
	c.lock.Lock()
	c.repeat = mode
	c.lock.Unlock()
	c.Emit(RepeatEvent{Mode: mode})
}

// SetAutoplay enables or disables queue extension through recommendations.
func (c *Controller) SetAutoplay(enabled bool) {
	c.lock.Lock()
	c.autoplay = enabled
	c.lock.Unlock()
	c.Emit(AutoplayEvent{Enabled: enabled})
}

// AddToQueue appends a track to the queue.
func (c *Controller) AddToQueue(track library.Track) {
	c.lock.Lock()
	c.queue.Append(track)
	index := -1
	if c.current != nil {
		index = c.queue.IndexOf(*c.current)
	}
	c.lock.Unlock()
	c.Emit(PlaylistEvent{Index: index})
}

// PlayNext inserts a track directly after the current one.
func (c *Controller) PlayNext(track library.Track) {
	c.lock.Lock()
	index := -1
	if c.current != nil {
		index = c.queue.IndexOf(*c.current)
	}
	c.queue.InsertAfter(index, track)
	c.lock.Unlock()
	c.Emit(PlaylistEvent{Index: index})
}

// NextTrack advances playback. See advance for the decision order.
func (c *Controller) NextTrack() {
	c.advance()
}

// PrevTrack restarts the current track when more than a few seconds in,
// otherwise it moves to the previous queue entry. At the queue start the
// current track is restarted.
func (c *Controller) PrevTrack() {
	c.lock.Lock()
	if c.current == nil {
		c.lock.Unlock()
		return
	}
	if c.elapsed > prevRestartThreshold {
		c.restartCurrentLocked()
		return
	}

	active := c.queue.Active()
	index := c.queue.IndexOf(*c.current)
	if index > 0 {
		prev := active[index-1]
		c.lock.Unlock()
		c.PlayTrack(prev, nil, true)
		return
	}
	c.restartCurrentLocked()
}

// restartCurrentLocked seeks the current track back to its start. The lock
// must be held and is released before the embedded player call.
func (c *Controller) restartCurrentLocked() {
	c.elapsed = 0
	total := c.total
	c.lock.Unlock()

	ctx := c.runCtx()
	if err := c.emb.Seek(ctx, 0); err != nil {
		log.Errorf("Could not restart track: %v", err)
	}
	if err := c.emb.Resume(ctx); err != nil {
		log.Debugf("Could not resume after restart: %v", err)
	}
	c.Emit(TimeEvent{Time: 0, Duration: total})
}

// advance decides what plays after the current track ends, is skipped or
// fails. Evaluated in order: repeat-one restarts the track, then the next
// entry of the active view, then repeat-all wraps to its head, then autoplay
// extension, and finally playback stops.
func (c *Controller) advance() {
	c.lock.Lock()
	if c.current == nil {
		c.lock.Unlock()
		return
	}

	if c.repeat == RepeatOne {
		c.playing = true
		c.restartCurrentLocked()
		return
	}

	active := c.queue.Active()
	index := c.queue.IndexOf(*c.current)

	if index >= 0 && index+1 < len(active) {
		next := active[index+1]
		c.lock.Unlock()
		c.PlayTrack(next, nil, true)
		return
	}

	if c.repeat == RepeatAll && len(active) > 0 {
		head := active[0]
		c.lock.Unlock()
		c.PlayTrack(head, nil, true)
		return
	}

	if c.autoplay && c.extender != nil {
		seed := *c.current
		exclude := c.queue.IDs()
		c.playing = false
		c.lock.Unlock()
		c.Emit(PlayStateEvent{State: PlayStateStopped})
		go c.extendQueue(seed, exclude)
		return
	}

	c.stopLocked()
}

// stopLocked halts playback at the end of the queue. The lock must be held
// and is released before the embedded player call.
func (c *Controller) stopLocked() {
	c.playing = false
	c.lock.Unlock()

	if err := c.emb.Stop(c.runCtx()); err != nil {
		log.Debugf("Could not stop embedded player: %v", err)
	}
	c.Emit(PlayStateEvent{State: PlayStateStopped})
}

// extendQueue asks the extender for more tracks and continues playback with
// the first of them. An empty result is a silent end of the queue.
func (c *Controller) extendQueue(seed library.Track, exclude []string) {
	tracks, err := c.extender.Extend(c.runCtx(), seed, exclude)
	if err != nil {
		log.Warnf("Autoplay extension failed: %v", err)
		return
	}
	if len(tracks) == 0 {
		return
	}

	c.lock.Lock()
	if c.current == nil || !c.current.Same(seed) {
		// The user picked something else while we were fetching.
		c.lock.Unlock()
		return
	}
	for _, track := range tracks {
		c.queue.Append(track)
	}
	c.lock.Unlock()

	c.PlayTrack(tracks[0], nil, true)
}

// effectiveVolume is the volume propagated to the embedded player. The lock
// must be held.
func (c *Controller) effectiveVolume() int {
	if c.muted {
		return 0
	}
	return c.volume
}

func (c *Controller) runCtx() context.Context {
	if c.ctx != nil {
		return c.ctx
	}
	return context.Background()
}

func clampVolume(volume int) int {
	if volume < 0 {
		return 0
	}
	if volume > 100 {
		return 100
	}
	return volume
}
