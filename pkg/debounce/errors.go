package debounce

import (
	"errors"
	"fmt"
	"reflect"
)

// ErrNilOwner is returned when Schedule is called with a nil owner or
// an owner with no scope.
var ErrNilOwner = errors.New("debounce: nil owner")

// ErrOwnerDisposed is returned when Schedule is called for an owner
// whose scope has already been disposed.
var ErrOwnerDisposed = errors.New("debounce: owner scope already disposed")

// TaskError reports a task name that does not resolve to a callable
// method on the owner, or arguments that do not fit its signature.
type TaskError struct {
	Task   string
	Owner  reflect.Type
	Reason string
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("debounce: task %q on %s: %s", e.Task, e.Owner, e.Reason)
}
