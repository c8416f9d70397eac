package util

import (
	"context"
	"sync"
)

// An Eventer is a type that can be listened to for events.
type Eventer interface {
	Events() *Emitter
}

// Emitter is an event broadcaster that fans out every emitted event to all
// attached listeners.
//
// The zero value is ready for use.
type Emitter struct {
	lock      sync.Mutex
	listeners map[chan interface{}]struct{}
}

// Events implements the Eventer interface, making any type that embeds an
// Emitter listenable.
func (emitter *Emitter) Events() *Emitter {
	return emitter
}

// Emit broadcasts an event to all current listeners.
func (emitter *Emitter) Emit(event interface{}) {
	emitter.lock.Lock()
	defer emitter.lock.Unlock()

	// Listeners that have fallen behind lose the event, state consumers are
	// expected to query a fresh snapshot when they catch up.
	for listener := range emitter.listeners {
		select {
		case listener <- event:
		default:
		}
	}
}

// Listen attaches a new listener to the emitter. The listener channel is
// closed and detached when the context is canceled.
func (emitter *Emitter) Listen(ctx context.Context) <-chan interface{} {
	emitter.lock.Lock()
	defer emitter.lock.Unlock()
	if emitter.listeners == nil {
		emitter.listeners = map[chan interface{}]struct{}{}
	}

	ch := make(chan interface{}, 128)
	emitter.listeners[ch] = struct{}{}

	go func() {
		<-ctx.Done()
		emitter.lock.Lock()
		defer emitter.lock.Unlock()
		delete(emitter.listeners, ch)
		close(ch)
	}()
	return ch
}
