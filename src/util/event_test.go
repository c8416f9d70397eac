package util

import (
	"context"
	"testing"
	"time"
)

func TestEmission(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var em Emitter

	l := em.Listen(ctx)
	em.Emit("test")

	select {
	case msg := <-l:
		if msg != "test" {
			t.Errorf("Event malformed: %v", msg)
			return
		}
	case <-time.After(time.Millisecond * 100):
		t.Error("Event was not emitted")
	}
}

func TestListenerDetach(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var em Emitter
	l := em.Listen(ctx)
	cancel()

	deadline := time.After(time.Millisecond * 100)
	for {
		select {
		case _, ok := <-l:
			if !ok {
				return
			}
		case <-deadline:
			t.Error("Listener channel was not closed")
			return
		}
	}
}
