// Package remote adapts a websocket event stream into an events.Target,
// so subscriptions tracked by the ledger can follow events produced by
// another process. The server side is a Hub that fans events out to
// connected targets, filtered by the event names each side subscribed.
package remote

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/vango-dev/tether/pkg/events"
)

// frame is the wire format: event deliveries from the hub, and
// subscribe/unsubscribe control messages from the target.
type frame struct {
	Op    string          `json:"op"` // "event", "sub", "unsub"
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

const (
	opEvent = "event"
	opSub   = "sub"
	opUnsub = "unsub"
)

// Target is an events.Target fed by a websocket connection to a Hub.
// Local listeners are dispatched in registration order on the read
// goroutine. Event data arrives as json.RawMessage.
type Target struct {
	id     string
	conn   *websocket.Conn
	local  *events.Emitter
	logger *slog.Logger

	// writeMu serializes control frames; gorilla connections allow
	// only one concurrent writer.
	writeMu sync.Mutex

	// counts tracks listener refcounts per event name, so the hub is
	// told about an event exactly while someone listens to it.
	mu     sync.Mutex
	counts map[string]int

	closeOnce sync.Once
	done      chan struct{}
}

// TargetOption configures a Target.
type TargetOption func(*Target)

// WithLogger sets the target's logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) TargetOption {
	return func(t *Target) { t.logger = logger }
}

// Dial connects to a Hub at url (ws:// or wss://) and starts the read
// loop. Close the returned Target to release the connection.
func Dial(ctx context.Context, url string, opts ...TargetOption) (*Target, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		return nil, err
	}

	t := &Target{
		id:     uuid.NewString(),
		conn:   conn,
		local:  events.NewEmitter(),
		logger: slog.Default(),
		counts: make(map[string]int),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}

	go t.readLoop()
	return t, nil
}

// ID returns the connection's unique identifier.
func (t *Target) ID() string {
	return t.id
}

// AddListener implements events.Target. The first listener for an
// event name subscribes it with the hub.
func (t *Target) AddListener(event string, l *events.Listener) {
	t.local.AddListener(event, l)

	t.mu.Lock()
	t.counts[event]++
	first := t.counts[event] == 1
	t.mu.Unlock()

	if first {
		t.send(frame{Op: opSub, Event: event})
	}
}

// RemoveListener implements events.Target. Removing the last listener
// for an event name unsubscribes it from the hub.
func (t *Target) RemoveListener(event string, l *events.Listener) {
	before := t.local.ListenerCount(event)
	t.local.RemoveListener(event, l)
	if t.local.ListenerCount(event) == before {
		// Unknown listener; nothing was detached.
		return
	}

	t.mu.Lock()
	t.counts[event]--
	last := t.counts[event] == 0
	if last {
		delete(t.counts, event)
	}
	t.mu.Unlock()

	if last {
		t.send(frame{Op: opUnsub, Event: event})
	}
}

// Close tears down the connection. Pending listeners stop receiving
// events; they remain tracked by whatever ledger attached them.
func (t *Target) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.done)
		err = t.conn.Close()
	})
	return err
}

// Done is closed when the read loop exits.
func (t *Target) Done() <-chan struct{} {
	return t.done
}

func (t *Target) send(f frame) {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if err := t.conn.WriteJSON(f); err != nil {
		t.logger.Error("remote target write failed", "op", f.Op, "event", f.Event, "error", err)
	}
}

// readLoop dispatches incoming event frames to local listeners until
// the connection closes.
func (t *Target) readLoop() {
	defer t.Close()

	for {
		var f frame
		if err := t.conn.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure) {
				t.logger.Error("remote target read failed", "error", err)
			}
			return
		}
		if f.Op != opEvent {
			t.logger.Warn("remote target ignoring frame", "op", f.Op)
			continue
		}
		t.local.Dispatch(events.Event{Type: f.Event, Target: t, Data: f.Data})
	}
}
