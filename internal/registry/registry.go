// Package registry implements the owner-keyed state table shared by the
// debounce and subscription subsystems.
//
// A Table associates an owner's scope ID with a lazily created per-owner
// state blob. The table never holds the owner value itself, only its
// numeric ID, so an entry can never be the reason an owner stays alive.
// Entries are removed by the subsystem's teardown closure when the owner
// is disposed.
package registry

import (
	"sync"

	"github.com/vango-dev/tether/pkg/scope"
)

// Table maps owner scope IDs to per-owner state blobs of type B.
// A blob exists if and only if at least one registration has occurred
// for that owner since the last disposal.
type Table[B any] struct {
	mu    sync.Mutex
	blobs map[uint64]*B
}

// NewTable creates an empty Table.
func NewTable[B any]() *Table[B] {
	return &Table[B]{blobs: make(map[uint64]*B)}
}

// GetOrCreate returns the blob for owner, creating an empty one if none
// exists. created reports whether this call performed the creation; it
// is true exactly once per owner between disposals, and the caller uses
// it to bridge-register the teardown closure for that owner.
func (t *Table[B]) GetOrCreate(owner scope.Owner) (blob *B, created bool) {
	id := owner.Scope().ID()

	t.mu.Lock()
	defer t.mu.Unlock()

	if b, ok := t.blobs[id]; ok {
		return b, false
	}
	b := new(B)
	t.blobs[id] = b
	return b, true
}

// Get returns the blob for owner, if one exists.
func (t *Table[B]) Get(owner scope.Owner) (*B, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	b, ok := t.blobs[owner.Scope().ID()]
	return b, ok
}

// Remove deletes the blob for owner. Removing an absent owner is a no-op.
func (t *Table[B]) Remove(owner scope.Owner) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.blobs, owner.Scope().ID())
}

// Len returns the number of owners currently tracked.
func (t *Table[B]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.blobs)
}
