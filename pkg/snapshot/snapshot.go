// Package snapshot persists immutable captures of an aggregate root and keeps
// the ordered history of them.
//
// A Caretaker owns the history. Save writes the payload first and only then
// appends the id and persists the index, so an interrupted save never leaves
// a visible entry pointing at a missing payload. Load walks the history from
// newest to oldest and returns the first capture that still reads and
// decodes; every entry it had to skip is evicted from the in-memory history
// for the rest of the session.
package snapshot

import (
	"time"

	"github.com/wilhg/workshop/pkg/aggregate"
	"github.com/wilhg/workshop/pkg/counters"
)

// Snapshot is an immutable capture of an aggregate root and the identifier
// counters taken with it. Accessors hand out clones.
type Snapshot[T aggregate.Root[T]] struct {
	id        ID
	root      T
	counters  counters.Captured
	createdAt time.Time
	writer    string
}

// New captures root and c. Both are cloned.
func New[T aggregate.Root[T]](id ID, root T, c counters.Captured, createdAt time.Time) Snapshot[T] {
	return Snapshot[T]{id: id, root: root.Clone(), counters: c.Clone(), createdAt: createdAt}
}

func (s Snapshot[T]) ID() ID { return s.id }

// Root returns a deep clone of the captured aggregate.
func (s Snapshot[T]) Root() T {
	if s.id == 0 {
		var zero T
		return zero
	}
	return s.root.Clone()
}

// Counters returns a copy of the captured counters. It is nil when the
// snapshot was taken without counters.
func (s Snapshot[T]) Counters() counters.Captured { return s.counters.Clone() }

func (s Snapshot[T]) CreatedAt() time.Time { return s.createdAt }

// Writer names the session that saved the snapshot, if recorded.
func (s Snapshot[T]) Writer() string { return s.writer }
