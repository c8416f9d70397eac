package player

import (
	"context"
	"sync"
	"testing"
	"time"

	"cadence/src/util"
)

// LoadCall records a single load issued to a StubEmbedded.
type LoadCall struct {
	Generation uint64
	MediaID    string
}

// StubEmbedded is an embedded player for tests. Loads are recorded, end
// events are injected by the test through End.
type StubEmbedded struct {
	events util.Emitter

	// LoadErr, when set, is returned by the next Load calls.
	LoadErr error

	lock    sync.Mutex
	loads   []LoadCall
	seeks   []time.Duration
	volume  int
	lastGen uint64

	loaded chan LoadCall
}

var _ Embedded = (*StubEmbedded)(nil)

func NewStubEmbedded() *StubEmbedded {
	return &StubEmbedded{loaded: make(chan LoadCall, 16)}
}

func (s *StubEmbedded) Events() *util.Emitter {
	return &s.events
}

func (s *StubEmbedded) Load(ctx context.Context, generation uint64, mediaID string) error {
	s.lock.Lock()
	if s.LoadErr != nil {
		err := s.LoadErr
		s.lock.Unlock()
		return err
	}
	if generation < s.lastGen {
		s.lock.Unlock()
		return ErrSupersededLoad
	}
	s.lastGen = generation
	call := LoadCall{Generation: generation, MediaID: mediaID}
	s.loads = append(s.loads, call)
	s.lock.Unlock()
	s.loaded <- call
	return nil
}

func (s *StubEmbedded) Pause(ctx context.Context) error  { return nil }
func (s *StubEmbedded) Resume(ctx context.Context) error { return nil }
func (s *StubEmbedded) Stop(ctx context.Context) error   { return nil }
func (s *StubEmbedded) Close() error                     { return nil }

func (s *StubEmbedded) Seek(ctx context.Context, position time.Duration) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.seeks = append(s.seeks, position)
	return nil
}

func (s *StubEmbedded) SetVolume(ctx context.Context, volume int) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.volume = volume
	return nil
}

// Loads returns all recorded load calls.
func (s *StubEmbedded) Loads() []LoadCall {
	s.lock.Lock()
	defer s.lock.Unlock()
	return append([]LoadCall{}, s.loads...)
}

// Seeks returns all recorded seek positions.
func (s *StubEmbedded) Seeks() []time.Duration {
	s.lock.Lock()
	defer s.lock.Unlock()
	return append([]time.Duration{}, s.seeks...)
}

// Volume returns the last volume propagated to the stub.
func (s *StubEmbedded) Volume() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.volume
}

// WaitLoad blocks until the next load is issued.
func (s *StubEmbedded) WaitLoad(t *testing.T) LoadCall {
	t.Helper()
	select {
	case call := <-s.loaded:
		return call
	case <-time.After(2 * time.Second):
		t.Fatal("No media was loaded")
		return LoadCall{}
	}
}

// End injects the end-of-media callback for the specified load generation.
func (s *StubEmbedded) End(generation uint64) {
	s.events.Emit(EndedEvent{Generation: generation})
}

// Progress injects a time update.
func (s *StubEmbedded) Progress(elapsed, total time.Duration) {
	s.events.Emit(TimeEvent{Time: elapsed, Duration: total})
}
