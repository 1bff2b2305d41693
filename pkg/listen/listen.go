// Package listen tracks event-source subscriptions per owner, so a
// specific subscription can be removed by (target, event, callback) and
// everything an owner still holds is detached when its scope is
// disposed.
package listen

import (
	"errors"
	"reflect"
	"sync"

	"github.com/vango-dev/tether/internal/registry"
	"github.com/vango-dev/tether/pkg/events"
	"github.com/vango-dev/tether/pkg/scope"
)

// ErrNilOwner is returned when Subscribe is called with a nil owner or
// an owner with no scope.
var ErrNilOwner = errors.New("listen: nil owner")

// ErrOwnerDisposed is returned when Subscribe is called for an owner
// whose scope has already been disposed.
var ErrOwnerDisposed = errors.New("listen: owner scope already disposed")

// ErrNilTarget is returned when Subscribe is called with a nil target.
var ErrNilTarget = errors.New("listen: nil target")

// ErrNilCallback is returned when Subscribe is called with a nil callback.
var ErrNilCallback = errors.New("listen: nil callback")

// Recorder observes ledger activity. Implementations must be safe for
// concurrent use. See pkg/instrument for a Prometheus-backed one.
type Recorder interface {
	SubscriptionAdded(event string)
	SubscriptionRemoved(event string)
}

// subscription records one active registration: the target and event it
// was attached under, the dispatch wrapper actually registered with the
// target, the caller's callback identity for removal matching, and the
// capability-adjusted options it was attached with.
type subscription struct {
	target   events.Target
	event    string
	listener *events.Listener
	cbKey    uintptr
	opts     events.Options

	// viaOptions records which registration path attach used, so
	// detach mirrors it exactly.
	viaOptions bool
}

// ownerSubs is the per-owner state blob: a flat ordered subscription list.
type ownerSubs struct {
	subs []*subscription
}

// Ledger tracks active subscriptions per owner. The zero value is not
// usable; create one with NewLedger.
type Ledger struct {
	mu    sync.Mutex
	table *registry.Table[ownerSubs]
	rec   Recorder

	// Option support is probed once, on the first subscribe, and the
	// result applies uniformly to every later subscription: if the
	// first target cannot honor options, options are dropped for all.
	probe     sync.Once
	optionsOK bool
}

// LedgerOption configures a Ledger.
type LedgerOption func(*Ledger)

// WithRecorder sets the activity recorder.
func WithRecorder(r Recorder) LedgerOption {
	return func(l *Ledger) { l.rec = r }
}

// NewLedger creates a Ledger.
func NewLedger(opts ...LedgerOption) *Ledger {
	l := &Ledger{table: registry.NewTable[ownerSubs]()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Subscribe attaches cb to target under event, tracked against owner's
// scope. The callback receives events until it is unsubscribed or the
// owner is disposed. Subscribing the same (target, event, cb) twice
// creates two independent registrations.
//
// The dispatch wrapper stops forwarding once the owner's scope is
// disposed, so an event already in flight during disposal is dropped
// rather than delivered to a dead owner.
func (l *Ledger) Subscribe(owner scope.Owner, target events.Target, event string, cb func(events.Event), opts ...events.Option) error {
	if owner == nil || owner.Scope() == nil {
		return ErrNilOwner
	}
	sc := owner.Scope()
	if sc.IsDisposed() {
		return ErrOwnerDisposed
	}
	if target == nil {
		return ErrNilTarget
	}
	if cb == nil {
		return ErrNilCallback
	}

	l.probe.Do(func() {
		_, l.optionsOK = target.(events.OptionTarget)
	})

	var o events.Options
	if l.optionsOK {
		o = events.Apply(opts...)
	}

	listener := events.NewListener(func(ev events.Event) {
		if sc.IsDisposed() {
			return
		}
		cb(ev)
	})

	sub := &subscription{
		target:   target,
		event:    event,
		listener: listener,
		cbKey:    callbackKey(cb),
		opts:     o,
	}

	l.mu.Lock()
	b, created := l.table.GetOrCreate(owner)
	b.subs = append(b.subs, sub)
	l.mu.Unlock()

	l.attach(sub)

	if created {
		sc.OnCleanup(func() { l.disposeOwner(owner) })
	}
	if l.rec != nil {
		l.rec.SubscriptionAdded(event)
	}
	return nil
}

// Unsubscribe detaches the first of owner's subscriptions matching
// (target, event, cb), preserving the order of the rest. Unknown
// subscriptions, owners, and nil arguments are no-ops. When Unsubscribe
// returns, the listener is detached from the target.
func (l *Ledger) Unsubscribe(owner scope.Owner, target events.Target, event string, cb func(events.Event), _ ...events.Option) {
	if owner == nil || owner.Scope() == nil || target == nil || cb == nil {
		return
	}
	key := callbackKey(cb)

	l.mu.Lock()
	b, ok := l.table.Get(owner)
	if !ok {
		l.mu.Unlock()
		return
	}
	var sub *subscription
	for i, s := range b.subs {
		if s.target == target && s.event == event && s.cbKey == key {
			sub = s
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			break
		}
	}
	l.mu.Unlock()

	if sub == nil {
		return
	}
	l.detach(sub)
	if l.rec != nil {
		l.rec.SubscriptionRemoved(event)
	}
}

// Count returns the number of active subscriptions tracked for owner.
func (l *Ledger) Count(owner scope.Owner) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.table.Get(owner)
	if !ok {
		return 0
	}
	return len(b.subs)
}

// disposeOwner is the teardown closure bridged to the owner's scope.
// It detaches every remaining wrapper once and drops the owner's blob.
// Running with zero subscriptions, or twice, is safe.
func (l *Ledger) disposeOwner(owner scope.Owner) {
	l.mu.Lock()
	b, ok := l.table.Get(owner)
	if !ok {
		l.mu.Unlock()
		return
	}
	l.table.Remove(owner)
	subs := b.subs
	b.subs = nil
	l.mu.Unlock()

	for _, sub := range subs {
		l.detach(sub)
		if l.rec != nil {
			l.rec.SubscriptionRemoved(sub.event)
		}
	}
}

// attach registers the wrapper with the target, through the options
// path when the process-wide probe allowed it and this target can
// honor it.
func (l *Ledger) attach(sub *subscription) {
	if l.optionsOK {
		if ot, ok := sub.target.(events.OptionTarget); ok {
			sub.viaOptions = true
			ot.AddListenerOptions(sub.event, sub.listener, sub.opts)
			return
		}
	}
	sub.target.AddListener(sub.event, sub.listener)
}

// detach unregisters the wrapper along the same path attach used, with
// the same capability-adjusted options.
func (l *Ledger) detach(sub *subscription) {
	if sub.viaOptions {
		sub.target.(events.OptionTarget).RemoveListenerOptions(sub.event, sub.listener, sub.opts)
		return
	}
	sub.target.RemoveListener(sub.event, sub.listener)
}

// callbackKey returns the identity used to match an unsubscribe request
// back to its registration: the callback's code pointer. Distinct
// functions have distinct keys; passing the same function value again
// matches its earliest remaining registration.
func callbackKey(cb func(events.Event)) uintptr {
	return reflect.ValueOf(cb).Pointer()
}
