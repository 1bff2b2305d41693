// Package tether ties ephemeral asynchronous work (debounced task
// invocations and event-source subscriptions) to the lifetime of an
// owning object, so the work is cancelled and detached automatically
// and exactly once when the owner's scope is disposed.
//
// This is the recommended import for most applications:
//
//	import "github.com/vango-dev/tether"
//
// Usage:
//
//	type SearchPanel struct {
//	    *tether.Scope
//	}
//
//	func (p *SearchPanel) Save(query string) { ... }
//
//	panel := &SearchPanel{Scope: tether.NewScope(nil)}
//	tether.ScheduleDebounced(panel, "Save", 300*time.Millisecond, query)
//	tether.Subscribe(panel, button, "click", p.onClick)
//	// ...
//	panel.Dispose() // cancels the save, detaches the click listener
package tether

import (
	"sync"
	"time"

	"github.com/vango-dev/tether/pkg/debounce"
	"github.com/vango-dev/tether/pkg/events"
	"github.com/vango-dev/tether/pkg/listen"
	"github.com/vango-dev/tether/pkg/scope"
)

// =============================================================================
// Core types exposed at the root
// =============================================================================

// Owner is any object whose lifetime is bounded by a Scope.
type Owner = scope.Owner

// Scope is the lifetime handle owners embed.
type Scope = scope.Scope

// Event is what a Target delivers to its listeners.
type Event = events.Event

// Target is an addressable event source.
type Target = events.Target

// Options adjust how a listener is attached.
type Options = events.Options

// Option mutates Options.
type Option = events.Option

// NewScope creates a new Scope with the given parent (nil for a root).
func NewScope(parent *Scope) *Scope {
	return scope.New(parent)
}

// NewEmitter creates an in-memory event target.
func NewEmitter() *events.Emitter {
	return events.NewEmitter()
}

// Subscription option constructors, re-exported for convenience.
var (
	Capture = events.Capture
	Passive = events.Passive
	Once    = events.Once
)

// =============================================================================
// Module-scoped runtime
// =============================================================================

// The default coordinator and ledger are process-wide and created
// lazily on first use; their entries self-clean through scope disposal,
// so they are never torn down.
var (
	runtimeMu   sync.Mutex
	coordinator *debounce.Coordinator
	ledger      *listen.Ledger
)

func runtime() (*debounce.Coordinator, *listen.Ledger) {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()

	if coordinator == nil {
		coordinator = debounce.NewCoordinator()
		ledger = listen.NewLedger()
	}
	return coordinator, ledger
}

// Configure replaces the default runtime. Call it once, before any
// ScheduleDebounced or Subscribe call; work tracked by the previous
// runtime stays with that runtime.
func Configure(opts ...ConfigOption) {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}

	var copts []debounce.CoordinatorOption
	if cfg.scheduler != nil {
		copts = append(copts, debounce.WithScheduler(cfg.scheduler))
	}
	if cfg.debounceRecorder != nil {
		copts = append(copts, debounce.WithRecorder(cfg.debounceRecorder))
	}
	if cfg.middleware != nil {
		copts = append(copts, debounce.WithMiddleware(cfg.middleware))
	}
	var lopts []listen.LedgerOption
	if cfg.listenRecorder != nil {
		lopts = append(lopts, listen.WithRecorder(cfg.listenRecorder))
	}

	runtimeMu.Lock()
	coordinator = debounce.NewCoordinator(copts...)
	ledger = listen.NewLedger(lopts...)
	runtimeMu.Unlock()
}

// =============================================================================
// Public surface
// =============================================================================

// ScheduleDebounced arms owner's task method to run after delay,
// superseding any pending invocation of the same task: only the most
// recent call's arguments are delivered, delay after the most recent
// call. The pending invocation is cancelled if the owner is disposed
// first.
func ScheduleDebounced(owner Owner, task string, delay time.Duration, args ...any) error {
	c, _ := runtime()
	return c.Schedule(owner, task, delay, args...)
}

// CancelDebounced removes the pending invocation of task on owner, if
// any. Idempotent; unknown tasks and owners are no-ops.
func CancelDebounced(owner Owner, task string) {
	c, _ := runtime()
	c.Cancel(owner, task)
}

// Subscribe attaches cb to target under event, tracked against owner's
// scope; the subscription is detached when the owner is disposed.
func Subscribe(owner Owner, target Target, event string, cb func(Event), opts ...Option) error {
	_, l := runtime()
	return l.Subscribe(owner, target, event, cb, opts...)
}

// Unsubscribe detaches the first of owner's subscriptions matching
// (target, event, cb). Unknown subscriptions are no-ops.
func Unsubscribe(owner Owner, target Target, event string, cb func(Event), opts ...Option) {
	_, l := runtime()
	l.Unsubscribe(owner, target, event, cb, opts...)
}
