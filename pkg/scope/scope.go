package scope

import (
	"sync"
	"sync/atomic"
)

// idCounter is the source of unique IDs for all scopes.
// Using atomic operations ensures thread-safe ID generation without locks.
var idCounter uint64

// nextID returns the next unique scope ID.
// IDs are monotonically increasing and never reused.
func nextID() uint64 {
	return atomic.AddUint64(&idCounter, 1)
}

// Owner is any object whose lifetime is bounded by a Scope.
// Types satisfy it by embedding a *Scope:
//
//	type SearchPanel struct {
//	    *scope.Scope
//	    // ...
//	}
//
//	panel := &SearchPanel{Scope: scope.New(nil)}
type Owner interface {
	// Scope returns the lifetime handle for this owner.
	Scope() *Scope
}

// Scope ties asynchronous work to the lifetime of an owning object.
// When a Scope is disposed, every cleanup registered on it runs exactly
// once, and all child scopes are disposed first. This ensures proper
// teardown and prevents leaks for work that would otherwise outlive
// its owner.
//
// Scopes form a hierarchy: a component's Scope is typically a child of
// its parent component's Scope, mirroring the ownership tree.
type Scope struct {
	id uint64

	// parent is the parent Scope in the hierarchy.
	// nil for a root Scope.
	parent *Scope

	// children are child Scopes (sub-components).
	children   []*Scope
	childrenMu sync.Mutex

	// cleanups are teardown functions registered via OnCleanup.
	cleanups   []func()
	cleanupsMu sync.Mutex

	// disposed indicates whether this Scope has been disposed.
	disposed atomic.Bool
}

// New creates a new Scope with the given parent.
// The new Scope is automatically registered as a child of the parent.
// If parent is nil, creates a root Scope.
func New(parent *Scope) *Scope {
	s := &Scope{
		id:     nextID(),
		parent: parent,
	}

	if parent != nil {
		parent.addChild(s)
	}

	return s
}

// Scope returns s, so that embedding a *Scope satisfies Owner.
func (s *Scope) Scope() *Scope {
	return s
}

// ID returns the unique identifier for this Scope.
func (s *Scope) ID() uint64 {
	return s.id
}

// Parent returns the parent Scope, or nil if this is a root Scope.
func (s *Scope) Parent() *Scope {
	return s.parent
}

// IsDisposed returns true if this Scope has been disposed.
func (s *Scope) IsDisposed() bool {
	return s.disposed.Load()
}

// addChild registers a child Scope.
func (s *Scope) addChild(child *Scope) {
	s.childrenMu.Lock()
	defer s.childrenMu.Unlock()
	s.children = append(s.children, child)
}

// removeChild removes a child Scope from this Scope's children.
func (s *Scope) removeChild(child *Scope) {
	s.childrenMu.Lock()
	defer s.childrenMu.Unlock()

	for i, c := range s.children {
		if c == child {
			s.children = append(s.children[:i], s.children[i+1:]...)
			return
		}
	}
}

// OnCleanup registers a teardown function to run when this Scope is
// disposed. Each registered function runs exactly once. If the Scope
// is already disposed, fn runs immediately.
func (s *Scope) OnCleanup(fn func()) {
	if s.disposed.Load() {
		// Already disposed, run cleanup immediately
		fn()
		return
	}

	s.cleanupsMu.Lock()
	defer s.cleanupsMu.Unlock()
	s.cleanups = append(s.cleanups, fn)
}

// Dispose disposes this Scope, its children, and runs all cleanups.
// Children are disposed in reverse order (last created first), then
// cleanups run in reverse registration order. Dispose is idempotent;
// a second call is a no-op. Disposal completes synchronously: when
// Dispose returns, every cleanup has run.
func (s *Scope) Dispose() {
	if s.disposed.Swap(true) {
		// Already disposed
		return
	}

	// Remove from parent's children list
	if s.parent != nil {
		s.parent.removeChild(s)
	}

	// Dispose children in reverse order
	s.childrenMu.Lock()
	children := make([]*Scope, len(s.children))
	copy(children, s.children)
	s.children = nil
	s.childrenMu.Unlock()

	for i := len(children) - 1; i >= 0; i-- {
		children[i].Dispose()
	}

	// Run cleanups in reverse order
	s.cleanupsMu.Lock()
	cleanups := s.cleanups
	s.cleanups = nil
	s.cleanupsMu.Unlock()

	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
}
