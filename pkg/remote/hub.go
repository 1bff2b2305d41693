package remote

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Hub accepts websocket connections from remote Targets and broadcasts
// events to them, filtered by the event names each connection has
// subscribed. It is an http.Handler; mount it on any mux.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu    sync.Mutex
	conns map[string]*hubConn
}

type hubConn struct {
	conn *websocket.Conn

	writeMu sync.Mutex

	mu     sync.Mutex
	events map[string]bool
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithHubLogger sets the hub's logger. Defaults to slog.Default().
func WithHubLogger(logger *slog.Logger) HubOption {
	return func(h *Hub) { h.logger = logger }
}

// WithCheckOrigin sets the upgrader's origin check.
func WithCheckOrigin(check func(*http.Request) bool) HubOption {
	return func(h *Hub) { h.upgrader.CheckOrigin = check }
}

// NewHub creates a Hub.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		logger: slog.Default(),
		conns:  make(map[string]*hubConn),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP upgrades the request and serves the connection until it
// closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("hub upgrade failed", "error", err)
		return
	}

	id := uuid.NewString()
	hc := &hubConn{conn: conn, events: make(map[string]bool)}

	h.mu.Lock()
	h.conns[id] = hc
	h.mu.Unlock()

	h.logger.Debug("hub connection opened", "conn", id)
	h.readLoop(id, hc)

	h.mu.Lock()
	delete(h.conns, id)
	h.mu.Unlock()

	conn.Close()
	h.logger.Debug("hub connection closed", "conn", id)
}

// readLoop drains subscribe/unsubscribe control frames.
func (h *Hub) readLoop(id string, hc *hubConn) {
	for {
		var f frame
		if err := hc.conn.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure) {
				h.logger.Error("hub read failed", "conn", id, "error", err)
			}
			return
		}

		switch f.Op {
		case opSub:
			hc.mu.Lock()
			hc.events[f.Event] = true
			hc.mu.Unlock()
		case opUnsub:
			hc.mu.Lock()
			delete(hc.events, f.Event)
			hc.mu.Unlock()
		default:
			h.logger.Warn("hub ignoring frame", "conn", id, "op", f.Op)
		}
	}
}

// Broadcast sends an event to every connection subscribed to its name.
// data is marshalled once; connections that fail to write are logged
// and skipped.
func (h *Hub) Broadcast(event string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	f := frame{Op: opEvent, Event: event, Data: raw}

	h.mu.Lock()
	conns := make(map[string]*hubConn, len(h.conns))
	for id, hc := range h.conns {
		conns[id] = hc
	}
	h.mu.Unlock()

	for id, hc := range conns {
		hc.mu.Lock()
		subscribed := hc.events[event]
		hc.mu.Unlock()
		if !subscribed {
			continue
		}

		hc.writeMu.Lock()
		err := hc.conn.WriteJSON(f)
		hc.writeMu.Unlock()
		if err != nil {
			h.logger.Error("hub broadcast write failed", "conn", id, "event", event, "error", err)
		}
	}
	return nil
}

// ConnCount returns the number of open connections.
func (h *Hub) ConnCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}
