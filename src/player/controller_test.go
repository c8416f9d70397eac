package player

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cadence/src/library"
	"cadence/src/resolver"
)

// resolveFunc adapts a function to the TrackResolver interface.
type resolveFunc func(ctx context.Context, track library.Track) (string, error)

func (f resolveFunc) Resolve(ctx context.Context, track library.Track) (string, error) {
	return f(ctx, track)
}

// idResolver resolves every track to "m-<id>" without any network.
func idResolver() TrackResolver {
	return resolveFunc(func(ctx context.Context, track library.Track) (string, error) {
		return "m-" + track.ID, nil
	})
}

type stubExtender struct {
	lock   sync.Mutex
	tracks []library.Track
	err    error
	calls  int
	seeds  []string
	played []string
}

func (e *stubExtender) Extend(ctx context.Context, seed library.Track, exclude []string) ([]library.Track, error) {
	e.lock.Lock()
	defer e.lock.Unlock()
	e.calls++
	e.seeds = append(e.seeds, seed.ID)
	return e.tracks, e.err
}

func (e *stubExtender) MarkPlayed(id string) {
	e.lock.Lock()
	defer e.lock.Unlock()
	e.played = append(e.played, id)
}

func (e *stubExtender) numCalls() int {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.calls
}

func (e *stubExtender) seedIDs() []string {
	e.lock.Lock()
	defer e.lock.Unlock()
	return append([]string{}, e.seeds...)
}

func newTestController(t *testing.T, emb Embedded, res TrackResolver, cfg Config) *Controller {
	t.Helper()
	c := New(emb, res, cfg)
	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)
	t.Cleanup(cancel)
	return c
}

func waitPlaying(t *testing.T, c *Controller, playing bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		return c.Status().Playing == playing
	}, 2*time.Second, 5*time.Millisecond)
}

func TestPlayTrackReplacesQueue(t *testing.T) {
	emb := NewStubEmbedded()
	c := newTestController(t, emb, idResolver(), Config{})
	tracks := testTracks("t1", "t2", "t3")

	c.PlayTrack(tracks[0], tracks, false)
	load := emb.WaitLoad(t)
	assert.Equal(t, "m-t1", load.MediaID)

	waitPlaying(t, c, true)
	st := c.Status()
	require.NotNil(t, st.Current)
	assert.Equal(t, "t1", st.Current.ID)
	assert.Equal(t, 0, st.Index)
	assert.Len(t, st.Queue, 3)
}

func TestPlayTrackWithoutQueue(t *testing.T) {
	emb := NewStubEmbedded()
	c := newTestController(t, emb, idResolver(), Config{})

	c.PlayTrack(testTracks("solo")[0], nil, false)
	emb.WaitLoad(t)

	st := c.Status()
	assert.Len(t, st.Queue, 1, "queue should become the single track")
	assert.Equal(t, 0, st.Index)
}

func TestNaturalEndAdvances(t *testing.T) {
	emb := NewStubEmbedded()
	ext := &stubExtender{}
	c := newTestController(t, emb, idResolver(), Config{Extender: ext, Autoplay: true})
	tracks := testTracks("t1", "t2", "t3")

	c.PlayTrack(tracks[0], tracks, false)
	first := emb.WaitLoad(t)

	emb.End(first.Generation)
	second := emb.WaitLoad(t)
	assert.Equal(t, "m-t2", second.MediaID)

	st := c.Status()
	require.NotNil(t, st.Current)
	assert.Equal(t, "t2", st.Current.ID)
	assert.Len(t, st.Queue, 3, "internal navigation must not replace the queue")
	assert.Zero(t, ext.numCalls(), "autoplay must not trigger while queue entries remain")
}

func TestDuplicateEndIsIgnored(t *testing.T) {
	emb := NewStubEmbedded()
	c := newTestController(t, emb, idResolver(), Config{})
	tracks := testTracks("t1", "t2", "t3")

	c.PlayTrack(tracks[0], tracks, false)
	first := emb.WaitLoad(t)

	emb.End(first.Generation)
	emb.WaitLoad(t)
	emb.End(first.Generation) // duplicate platform callback

	time.Sleep(50 * time.Millisecond)
	st := c.Status()
	require.NotNil(t, st.Current)
	assert.Equal(t, "t2", st.Current.ID, "a duplicate end event must not double-advance")
}

func TestRepeatOne(t *testing.T) {
	emb := NewStubEmbedded()
	c := newTestController(t, emb, idResolver(), Config{})
	tracks := testTracks("t1", "t2")

	c.PlayTrack(tracks[0], tracks, false)
	emb.WaitLoad(t)
	waitPlaying(t, c, true)

	c.CycleRepeat()
	c.CycleRepeat()
	require.Equal(t, RepeatOne, c.Status().Repeat)

	c.NextTrack()
	require.Eventually(t, func() bool {
		return len(emb.Seeks()) > 0
	}, 2*time.Second, 5*time.Millisecond)

	st := c.Status()
	require.NotNil(t, st.Current)
	assert.Equal(t, "t1", st.Current.ID, "repeat-one must not advance")
	assert.Equal(t, time.Duration(0), st.Time)
	assert.Len(t, emb.Loads(), 1, "repeat-one restarts without a new load")
}

func TestPrevTrackThreshold(t *testing.T) {
	emb := NewStubEmbedded()
	c := newTestController(t, emb, idResolver(), Config{})
	tracks := testTracks("t1", "t2")

	c.PlayTrack(tracks[0], tracks, false)
	first := emb.WaitLoad(t)
	emb.End(first.Generation)
	emb.WaitLoad(t) // now on t2

	// Deep into the track, prev restarts it.
	emb.Progress(6*time.Second, 3*time.Minute)
	require.Eventually(t, func() bool {
		return c.Status().Time == 6*time.Second
	}, 2*time.Second, 5*time.Millisecond)

	c.PrevTrack()
	require.Eventually(t, func() bool {
		return len(emb.Seeks()) > 0 && emb.Seeks()[len(emb.Seeks())-1] == 0
	}, 2*time.Second, 5*time.Millisecond)
	st := c.Status()
	require.NotNil(t, st.Current)
	assert.Equal(t, "t2", st.Current.ID)
	assert.Len(t, emb.Loads(), 2)

	// Near the start, prev moves to the previous queue entry.
	emb.Progress(3*time.Second, 3*time.Minute)
	require.Eventually(t, func() bool {
		return c.Status().Time == 3*time.Second
	}, 2*time.Second, 5*time.Millisecond)

	c.PrevTrack()
	load := emb.WaitLoad(t)
	assert.Equal(t, "m-t1", load.MediaID)
}

func TestPrevTrackAtQueueStartRestarts(t *testing.T) {
	emb := NewStubEmbedded()
	c := newTestController(t, emb, idResolver(), Config{})
	tracks := testTracks("t1", "t2")

	c.PlayTrack(tracks[0], tracks, false)
	emb.WaitLoad(t)

	c.PrevTrack()
	require.Eventually(t, func() bool {
		return len(emb.Seeks()) > 0
	}, 2*time.Second, 5*time.Millisecond)
	st := c.Status()
	require.NotNil(t, st.Current)
	assert.Equal(t, "t1", st.Current.ID)
}

func TestStaleResolutionDiscarded(t *testing.T) {
	emb := NewStubEmbedded()
	gate := make(chan struct{})
	res := resolveFunc(func(ctx context.Context, track library.Track) (string, error) {
		if track.ID == "a" {
			<-gate
		}
		return "m-" + track.ID, nil
	})
	c := newTestController(t, emb, res, Config{})

	c.PlayTrack(testTracks("a")[0], nil, false)
	c.PlayTrack(testTracks("b")[0], nil, false)

	load := emb.WaitLoad(t)
	assert.Equal(t, "m-b", load.MediaID)

	close(gate) // a's resolution completes late
	time.Sleep(50 * time.Millisecond)

	assert.Len(t, emb.Loads(), 1, "the superseded track must not be loaded")
	st := c.Status()
	require.NotNil(t, st.Current)
	assert.Equal(t, "b", st.Current.ID)
}

func TestUnresolvableTrackIsSkipped(t *testing.T) {
	emb := NewStubEmbedded()
	res := resolveFunc(func(ctx context.Context, track library.Track) (string, error) {
		if track.ID == "t1" {
			return "", resolver.ErrUnresolvable
		}
		return "m-" + track.ID, nil
	})
	c := newTestController(t, emb, res, Config{})
	tracks := testTracks("t1", "t2")

	c.PlayTrack(tracks[0], tracks, false)
	load := emb.WaitLoad(t)
	assert.Equal(t, "m-t2", load.MediaID, "unresolvable tracks are skipped, not fatal")
}

func TestAutoplayExtendsQueue(t *testing.T) {
	emb := NewStubEmbedded()
	ext := &stubExtender{tracks: testTracks("r1", "r2")}
	c := newTestController(t, emb, idResolver(), Config{Extender: ext, Autoplay: true})
	tracks := testTracks("t1")

	c.PlayTrack(tracks[0], tracks, false)
	first := emb.WaitLoad(t)
	emb.End(first.Generation)

	load := emb.WaitLoad(t)
	assert.Equal(t, "m-r1", load.MediaID)

	st := c.Status()
	assert.Len(t, st.Queue, 3, "recommendations are appended to the queue")
	assert.Equal(t, []string{"t1"}, ext.seedIDs())
}

func TestAutoplayEmptyResultStops(t *testing.T) {
	emb := NewStubEmbedded()
	ext := &stubExtender{}
	c := newTestController(t, emb, idResolver(), Config{Extender: ext, Autoplay: true})
	tracks := testTracks("t3")

	c.PlayTrack(tracks[0], tracks, false)
	first := emb.WaitLoad(t)
	waitPlaying(t, c, true)

	emb.End(first.Generation)
	waitPlaying(t, c, false)

	st := c.Status()
	require.NotNil(t, st.Current)
	assert.Equal(t, "t3", st.Current.ID, "current track is kept on silent end of queue")
	require.Eventually(t, func() bool {
		return ext.numCalls() == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestRepeatAllWrapsAround(t *testing.T) {
	emb := NewStubEmbedded()
	c := newTestController(t, emb, idResolver(), Config{})
	tracks := testTracks("t1", "t2")

	c.PlayTrack(tracks[1], tracks, false)
	first := emb.WaitLoad(t)
	c.CycleRepeat() // repeat-all

	emb.End(first.Generation)
	load := emb.WaitLoad(t)
	assert.Equal(t, "m-t1", load.MediaID, "repeat-all wraps to the head of the queue")
}

func TestVolumeClampingAndMute(t *testing.T) {
	emb := NewStubEmbedded()
	c := newTestController(t, emb, idResolver(), Config{})

	c.SetVolume(150)
	assert.Equal(t, 100, c.Status().Volume)
	c.SetVolume(-10)
	assert.Equal(t, 0, c.Status().Volume)

	c.SetVolume(60)
	c.ToggleMute()
	st := c.Status()
	assert.True(t, st.Muted)
	assert.Equal(t, 60, st.Volume, "muting must not lose the set volume")
	assert.Equal(t, 0, emb.Volume())

	// Raising the volume unmutes.
	c.SetVolume(70)
	st = c.Status()
	assert.False(t, st.Muted)
	assert.Equal(t, 70, emb.Volume())
}

func TestTogglePlayWithoutTrack(t *testing.T) {
	emb := NewStubEmbedded()
	c := newTestController(t, emb, idResolver(), Config{})

	c.TogglePlay()
	assert.False(t, c.Status().Playing)
}

func TestMarkPlayedOnStart(t *testing.T) {
	emb := NewStubEmbedded()
	ext := &stubExtender{}
	c := newTestController(t, emb, idResolver(), Config{Extender: ext})

	c.PlayTrack(testTracks("t1")[0], nil, false)
	emb.WaitLoad(t)

	ext.lock.Lock()
	defer ext.lock.Unlock()
	assert.Equal(t, []string{"t1"}, ext.played)
}

// blockingEmbedded holds back loads of one media ID until released, so a
// competing load can overtake it.
type blockingEmbedded struct {
	*StubEmbedded
	blockID string
	blocked chan struct{}
	release chan struct{}
}

func (b *blockingEmbedded) Load(ctx context.Context, generation uint64, mediaID string) error {
	if mediaID == b.blockID {
		b.blocked <- struct{}{}
		<-b.release
	}
	return b.StubEmbedded.Load(ctx, generation, mediaID)
}

func TestSupersededLoadIsDiscarded(t *testing.T) {
	emb := &blockingEmbedded{
		StubEmbedded: NewStubEmbedded(),
		blockID:      "m-a",
		blocked:      make(chan struct{}, 1),
		release:      make(chan struct{}),
	}
	c := newTestController(t, emb, idResolver(), Config{})
	tracks := testTracks("a", "b")

	c.PlayTrack(tracks[0], tracks, false)
	<-emb.blocked

	// While a's load hangs, b takes over the player.
	c.PlayTrack(tracks[1], nil, true)
	load := emb.WaitLoad(t)
	assert.Equal(t, "m-b", load.MediaID)
	waitPlaying(t, c, true)

	close(emb.release)
	time.Sleep(50 * time.Millisecond)

	loads := emb.Loads()
	require.Len(t, loads, 1, "the overtaken load must never be committed")
	assert.Equal(t, "m-b", loads[0].MediaID)

	st := c.Status()
	require.NotNil(t, st.Current)
	assert.Equal(t, "b", st.Current.ID)
	assert.True(t, st.Playing, "the discarded load must not disturb the playing state")
}

func TestSeekPastEndClamps(t *testing.T) {
	emb := NewStubEmbedded()
	c := newTestController(t, emb, idResolver(), Config{})

	c.PlayTrack(testTracks("t1")[0], nil, false)
	emb.WaitLoad(t)
	waitPlaying(t, c, true)

	emb.Progress(10*time.Second, 3*time.Minute)
	require.Eventually(t, func() bool {
		return c.Status().Duration == 3*time.Minute
	}, 2*time.Second, 5*time.Millisecond)

	c.Seek(10 * time.Minute)
	st := c.Status()
	assert.Equal(t, 3*time.Minute, st.Time, "elapsed time may not exceed the media length")

	seeks := emb.Seeks()
	require.NotEmpty(t, seeks)
	assert.Equal(t, 3*time.Minute, seeks[len(seeks)-1])
}
