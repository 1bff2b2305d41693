// Package events defines the event-source contract consumed by the
// subscription ledger, along with an in-memory Emitter implementation.
//
// The model mirrors DOM event targets: listeners are attached to a
// Target under an event name, optionally with Options, and are removed
// by identity. Delivery order for a given (target, event) follows
// registration order.
package events

// Event is what a Target delivers to its listeners.
type Event struct {
	// Type is the event name the listener was registered under.
	Type string

	// Target is the source that dispatched the event.
	Target Target

	// Data is the event payload, if any.
	Data any
}

// Listener wraps a dispatch function behind a stable pointer identity,
// so targets can find and remove a specific registration. Registering
// the same *Listener twice creates two independent registrations.
type Listener struct {
	fn func(Event)
}

// NewListener creates a Listener dispatching to fn.
func NewListener(fn func(Event)) *Listener {
	return &Listener{fn: fn}
}

// Dispatch invokes the listener with ev.
func (l *Listener) Dispatch(ev Event) {
	l.fn(ev)
}

// Options adjust how a listener is attached, mirroring DOM
// addEventListener options.
type Options struct {
	// Capture attaches the listener for the capture phase.
	Capture bool

	// Passive marks the listener as never cancelling the event.
	Passive bool

	// Once detaches the listener after its first delivery.
	Once bool
}

// Option mutates Options.
type Option func(*Options)

// Capture returns an Option enabling capture-phase attachment.
func Capture() Option {
	return func(o *Options) { o.Capture = true }
}

// Passive returns an Option marking the listener passive.
func Passive() Option {
	return func(o *Options) { o.Passive = true }
}

// Once returns an Option detaching the listener after one delivery.
func Once() Option {
	return func(o *Options) { o.Once = true }
}

// Apply folds opts into a fresh Options value.
func Apply(opts ...Option) Options {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Target is an addressable event source. Implementations must be
// comparable values (pointers in practice) so subscriptions can be
// matched back to their target.
type Target interface {
	// AddListener attaches l under event. Duplicate registrations of
	// the same listener coexist.
	AddListener(event string, l *Listener)

	// RemoveListener detaches the first registration of l under event.
	// Removing an unknown listener is a no-op.
	RemoveListener(event string, l *Listener)
}

// OptionTarget is a Target that honors subscription Options. Targets
// that do not implement it have options silently dropped by the
// subscription ledger.
type OptionTarget interface {
	Target

	// AddListenerOptions attaches l under event with opts.
	AddListenerOptions(event string, l *Listener, opts Options)

	// RemoveListenerOptions detaches the first registration of l under
	// event that was attached with opts.
	RemoveListenerOptions(event string, l *Listener, opts Options)
}
