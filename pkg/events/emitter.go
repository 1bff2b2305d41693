package events

import "sync"

// Emitter is an in-memory OptionTarget. It dispatches synchronously in
// registration order and implements DOM-like semantics: duplicate
// registrations coexist, removal detaches the first occurrence, and
// Once listeners detach before their single delivery.
type Emitter struct {
	mu        sync.Mutex
	listeners map[string][]emitterEntry
}

type emitterEntry struct {
	l    *Listener
	opts Options
}

// NewEmitter creates an empty Emitter.
func NewEmitter() *Emitter {
	return &Emitter{listeners: make(map[string][]emitterEntry)}
}

// AddListener implements Target.
func (e *Emitter) AddListener(event string, l *Listener) {
	e.AddListenerOptions(event, l, Options{})
}

// RemoveListener implements Target.
func (e *Emitter) RemoveListener(event string, l *Listener) {
	e.removeFirst(event, l)
}

// AddListenerOptions implements OptionTarget.
func (e *Emitter) AddListenerOptions(event string, l *Listener, opts Options) {
	if l == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners[event] = append(e.listeners[event], emitterEntry{l: l, opts: opts})
}

// RemoveListenerOptions implements OptionTarget. Matching is by listener
// identity; opts are accepted for interface parity.
func (e *Emitter) RemoveListenerOptions(event string, l *Listener, _ Options) {
	e.removeFirst(event, l)
}

func (e *Emitter) removeFirst(event string, l *Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()

	entries := e.listeners[event]
	for i, entry := range entries {
		if entry.l == l {
			e.listeners[event] = append(entries[:i], entries[i+1:]...)
			if len(e.listeners[event]) == 0 {
				delete(e.listeners, event)
			}
			return
		}
	}
}

// Emit dispatches an Event with the given payload to every listener
// registered under event, in registration order.
func (e *Emitter) Emit(event string, data any) {
	e.Dispatch(Event{Type: event, Target: e, Data: data})
}

// Dispatch delivers a prebuilt Event to the listeners registered under
// ev.Type. Once listeners are detached before delivery, so a listener
// re-registering itself during dispatch behaves like a fresh
// registration.
func (e *Emitter) Dispatch(ev Event) {
	e.mu.Lock()
	entries := append([]emitterEntry(nil), e.listeners[ev.Type]...)
	e.mu.Unlock()

	for _, entry := range entries {
		if entry.opts.Once {
			e.removeFirst(ev.Type, entry.l)
		}
		entry.l.Dispatch(ev)
	}
}

// ListenerCount returns the number of registrations under event.
func (e *Emitter) ListenerCount(event string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.listeners[event])
}
