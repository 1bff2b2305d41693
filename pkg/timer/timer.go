// Package timer defines the scheduling contract consumed by the debounce
// coordinator, with a wall-clock implementation over time.AfterFunc and a
// manually driven implementation for deterministic tests.
package timer

import "time"

// Token is an opaque handle identifying a single pending invocation.
// It is returned by Schedule and accepted by Cancel.
type Token any

// Scheduler delays and invokes callbacks. Implementations do not
// coalesce: every Schedule call arms a fresh invocation, and callers
// cancel superseded tokens themselves.
type Scheduler interface {
	// Schedule arms fn to run once after d.
	Schedule(d time.Duration, fn func()) Token

	// Cancel revokes a pending invocation. It reports whether the
	// invocation was prevented; false means it already fired, was
	// already cancelled, or the token is unknown. Cancelling twice
	// is safe.
	Cancel(tok Token) bool
}

// clockScheduler schedules on the wall clock via time.AfterFunc.
// Callbacks run on their own goroutine, per time package semantics.
type clockScheduler struct{}

// New returns the wall-clock Scheduler.
func New() Scheduler {
	return clockScheduler{}
}

func (clockScheduler) Schedule(d time.Duration, fn func()) Token {
	return time.AfterFunc(d, fn)
}

func (clockScheduler) Cancel(tok Token) bool {
	t, ok := tok.(*time.Timer)
	if !ok || t == nil {
		return false
	}
	return t.Stop()
}
