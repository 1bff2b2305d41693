// Package debounce coalesces repeated invocations of a named task on an
// owner into a single delayed call, delivered only after a quiet period
// with no re-arms. Pending work is cancelled automatically when the
// owner's scope is disposed.
package debounce

import (
	"reflect"
	"sync"
	"time"

	"github.com/vango-dev/tether/internal/registry"
	"github.com/vango-dev/tether/pkg/scope"
	"github.com/vango-dev/tether/pkg/timer"
)

// Recorder observes coordinator activity. Implementations must be safe
// for concurrent use. See pkg/instrument for a Prometheus-backed one.
type Recorder interface {
	// DebounceScheduled is called on every Schedule; rearmed reports
	// whether an existing pending invocation was superseded.
	DebounceScheduled(task string, rearmed bool)

	// DebounceFired is called after a task invocation completes.
	DebounceFired(task string)

	// DebounceCancelled is called when a pending invocation is removed
	// by Cancel or by owner disposal.
	DebounceCancelled(task string)
}

// Middleware wraps task invocation. next performs the actual call;
// the middleware must invoke it exactly once.
type Middleware func(task string, next func())

// entry is the per-task debounce state. wrapped is built once and
// reused across re-arms so its identity stays stable; token and args
// are replaced on every re-arm. gen guards against a superseded timer
// delivering after its token was cancelled too late to stop it.
type entry struct {
	wrapped func(gen uint64)
	method  reflect.Value
	args    []reflect.Value
	token   timer.Token
	gen     uint64
}

// ownerTasks is the per-owner state blob: one entry per task name.
type ownerTasks struct {
	entries map[string]*entry
}

// Coordinator tracks at most one pending invocation per (owner, task).
// Re-arming a task cancels its previous pending invocation, so only the
// most recent call's arguments are delivered, after the most recent
// call's delay.
type Coordinator struct {
	mu    sync.Mutex
	table *registry.Table[ownerTasks]
	sched timer.Scheduler
	rec   Recorder
	mw    Middleware
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithScheduler sets the timer service. Defaults to the wall clock.
func WithScheduler(s timer.Scheduler) CoordinatorOption {
	return func(c *Coordinator) { c.sched = s }
}

// WithRecorder sets the activity recorder.
func WithRecorder(r Recorder) CoordinatorOption {
	return func(c *Coordinator) { c.rec = r }
}

// WithMiddleware wraps every task invocation.
func WithMiddleware(mw Middleware) CoordinatorOption {
	return func(c *Coordinator) { c.mw = mw }
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		table: registry.NewTable[ownerTasks](),
		sched: timer.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Schedule arms task to run on owner after delay. If the same task is
// already pending for this owner, the pending invocation is superseded:
// its timer is cancelled, the stored arguments are replaced, and the
// delay restarts. The task resolves to an exported method of owner's
// concrete type, looked up by name; args must match its signature.
//
// Contract violations (nil or disposed owner, unknown task, argument
// mismatch) return an error immediately. Errors raised by the task
// itself, once it fires, propagate on the scheduler's goroutine.
func (c *Coordinator) Schedule(owner scope.Owner, task string, delay time.Duration, args ...any) error {
	if owner == nil || owner.Scope() == nil {
		return ErrNilOwner
	}
	sc := owner.Scope()
	if sc.IsDisposed() {
		return ErrOwnerDisposed
	}

	method := reflect.ValueOf(owner).MethodByName(task)
	if !method.IsValid() {
		return &TaskError{Task: task, Owner: reflect.TypeOf(owner), Reason: "no such exported method"}
	}
	argv, err := buildArgs(method.Type(), task, reflect.TypeOf(owner), args)
	if err != nil {
		return err
	}

	c.mu.Lock()
	b, created := c.table.GetOrCreate(owner)
	if b.entries == nil {
		b.entries = make(map[string]*entry)
	}

	e, rearmed := b.entries[task]
	if !rearmed {
		e = &entry{method: method}
		e.wrapped = c.makeWrapper(owner, task, e)
		b.entries[task] = e
	}

	e.args = argv
	e.gen++
	gen := e.gen
	if e.token != nil {
		// The timer service does not coalesce; drop the superseded arm.
		c.sched.Cancel(e.token)
	}
	wrapped := e.wrapped
	e.token = c.sched.Schedule(delay, func() { wrapped(gen) })
	c.mu.Unlock()

	if created {
		sc.OnCleanup(func() { c.disposeOwner(owner) })
	}
	if c.rec != nil {
		c.rec.DebounceScheduled(task, rearmed)
	}
	return nil
}

// makeWrapper builds the stable per-entry fire path. The entry is
// removed from the blob before the task runs, so a re-arm from inside
// the task starts fresh instead of colliding with the finalizing entry.
func (c *Coordinator) makeWrapper(owner scope.Owner, task string, e *entry) func(uint64) {
	return func(gen uint64) {
		c.mu.Lock()
		b, ok := c.table.Get(owner)
		if !ok {
			c.mu.Unlock()
			return
		}
		cur := b.entries[task]
		if cur != e || e.gen != gen {
			// Superseded while the timer was firing.
			c.mu.Unlock()
			return
		}
		delete(b.entries, task)
		method, args := e.method, e.args
		c.mu.Unlock()

		invoke := func() { method.Call(args) }
		if c.mw != nil {
			c.mw(task, invoke)
		} else {
			invoke()
		}
		if c.rec != nil {
			c.rec.DebounceFired(task)
		}
	}
}

// Cancel removes the pending invocation of task on owner, if any.
// It is idempotent; cancelling an unknown task or owner is a no-op.
// When Cancel returns, the invocation can no longer fire.
func (c *Coordinator) Cancel(owner scope.Owner, task string) {
	if owner == nil || owner.Scope() == nil {
		return
	}

	c.mu.Lock()
	b, ok := c.table.Get(owner)
	if !ok {
		c.mu.Unlock()
		return
	}
	e, ok := b.entries[task]
	if !ok {
		c.mu.Unlock()
		return
	}
	delete(b.entries, task)
	e.gen++
	tok := e.token
	e.token = nil
	c.mu.Unlock()

	if tok != nil {
		c.sched.Cancel(tok)
	}
	if c.rec != nil {
		c.rec.DebounceCancelled(task)
	}
}

// Pending reports whether task has a live pending invocation on owner.
func (c *Coordinator) Pending(owner scope.Owner, task string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.table.Get(owner)
	if !ok {
		return false
	}
	_, ok = b.entries[task]
	return ok
}

// disposeOwner is the teardown closure bridged to the owner's scope.
// It cancels every remaining token and drops the owner's blob. Running
// with zero entries, or twice, is safe.
func (c *Coordinator) disposeOwner(owner scope.Owner) {
	c.mu.Lock()
	b, ok := c.table.Get(owner)
	if !ok {
		c.mu.Unlock()
		return
	}
	c.table.Remove(owner)

	var tasks []string
	var toks []timer.Token
	for name, e := range b.entries {
		e.gen++
		if e.token != nil {
			toks = append(toks, e.token)
			e.token = nil
		}
		tasks = append(tasks, name)
	}
	b.entries = nil
	c.mu.Unlock()

	for _, tok := range toks {
		c.sched.Cancel(tok)
	}
	if c.rec != nil {
		for _, name := range tasks {
			c.rec.DebounceCancelled(name)
		}
	}
}

// buildArgs converts args to reflect values matching the task
// signature, zero-filling nils and applying Go conversions.
func buildArgs(mt reflect.Type, task string, ownerType reflect.Type, args []any) ([]reflect.Value, error) {
	numIn := mt.NumIn()
	if mt.IsVariadic() {
		if len(args) < numIn-1 {
			return nil, &TaskError{Task: task, Owner: ownerType, Reason: "too few arguments"}
		}
	} else if len(args) != numIn {
		return nil, &TaskError{Task: task, Owner: ownerType, Reason: "argument count mismatch"}
	}

	out := make([]reflect.Value, len(args))
	for i, a := range args {
		var pt reflect.Type
		if mt.IsVariadic() && i >= numIn-1 {
			pt = mt.In(numIn - 1).Elem()
		} else {
			pt = mt.In(i)
		}

		if a == nil {
			out[i] = reflect.Zero(pt)
			continue
		}
		v := reflect.ValueOf(a)
		if !v.Type().AssignableTo(pt) {
			if !v.Type().ConvertibleTo(pt) {
				return nil, &TaskError{Task: task, Owner: ownerType, Reason: "argument type mismatch"}
			}
			v = v.Convert(pt)
		}
		out[i] = v
	}
	return out, nil
}
