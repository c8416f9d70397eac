// Package eventsource implements the server side of a Server-Sent Events
// stream over a hijacked HTTP connection.
package eventsource

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"
)

const (
	// keepaliveInterval is how often a comment frame is sent to keep
	// intermediaries from closing an idle stream.
	keepaliveInterval = 20 * time.Second
	writeTimeout      = 10 * time.Second
)

// EventSource writes named events to a single client. Writes are safe for
// concurrent use and a slow or gone client is detached by the write
// deadline rather than blocking the emitting goroutine.
type EventSource struct {
	conn net.Conn

	lock sync.Mutex
	w    *bufio.Writer
	err  error
}

// Begin hijacks the connection underlying the specified response writer and
// starts an event stream on it. The stream ends when the request context is
// canceled or a write fails.
func Begin(w http.ResponseWriter, r *http.Request) (*EventSource, error) {
	hijacker, ok := w.(http.Hijacker)
	if !ok {
		return nil, fmt.Errorf("could not start event source: connection is not hijackable")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	// Without an explicit identity encoding Go would declare the response
	// chunked, while the hijacked connection writes raw, unchunked frames.
	w.Header().Set("Transfer-Encoding", "identity")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	conn, buf, err := hijacker.Hijack()
	if err != nil {
		return nil, fmt.Errorf("could not start event source: %w", err)
	}
	buf.Flush()

	es := &EventSource{conn: conn, w: buf.Writer}
	go es.keepalive(r.Context())
	return es, nil
}

// Event sends a named event. The body must be a single line.
func (es *EventSource) Event(event, body string) error {
	return es.frame(func(w *bufio.Writer) {
		fmt.Fprintf(w, "event: %s\n", event)
		if body != "" {
			fmt.Fprintf(w, "data: %s\n", body)
		}
		fmt.Fprint(w, "\n")
	})
}

// EventJSON sends a named event with a JSON-encoded body.
func (es *EventSource) EventJSON(event string, body interface{}) error {
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("could not marshal event %q: %w", event, err)
	}
	return es.Event(event, string(b))
}

// frame writes one complete frame under the lock. The first write error is
// sticky, everything after it is dropped.
func (es *EventSource) frame(fn func(w *bufio.Writer)) error {
	es.lock.Lock()
	defer es.lock.Unlock()
	if es.err != nil {
		return es.err
	}

	es.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	fn(es.w)
	if err := es.w.Flush(); err != nil {
		es.err = err
		es.conn.Close()
		return err
	}
	return nil
}

// keepalive periodically sends a comment frame and tears the connection
// down when the request context ends.
func (es *EventSource) keepalive(ctx context.Context) {
	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			es.conn.Close()
			return
		case <-ticker.C:
			if err := es.frame(func(w *bufio.Writer) {
				fmt.Fprint(w, ": keepalive\n\n")
			}); err != nil {
				return
			}
		}
	}
}
