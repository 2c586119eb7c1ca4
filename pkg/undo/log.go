// Package undo implements a linear, in-memory undo/redo log over deep clones
// of a mutable subsystem.
//
// The log holds a sequence of clones and a cursor. Slots before the cursor
// are reachable by Undo, slots at or after it by Redo. Recording a new state
// discards every slot at or after the cursor, so a commit invalidates the
// redo branch. Each slot always holds the state on the other side of one
// committed mutation: before an undo it holds the pre-mutation state, after
// the undo it holds the post-mutation state redo has to return to.
//
// The log never shares values with its callers: Record stores a clone, and a
// value returned by Undo or Redo is no longer referenced by the log.
package undo

import (
	"github.com/wilhg/workshop/pkg/aggregate"
	"github.com/wilhg/workshop/pkg/errmodel"
)

var (
	// ErrNothingToUndo is returned by Undo when the cursor is at the start.
	ErrNothingToUndo = errmodel.Usage("nothing_to_undo", "nothing to undo", nil)
	// ErrNothingToRedo is returned by Redo when the cursor is at the tip.
	ErrNothingToRedo = errmodel.Usage("nothing_to_redo", "nothing to redo", nil)
)

// Log is an undo/redo log of T. It is not safe for concurrent use.
type Log[T aggregate.Root[T]] struct {
	entries []T
	index   int
	limit   int
}

// Option configures a Log at construction time.
type Option func(*options)

type options struct {
	limit int
}

// WithLimit bounds how many undo steps are retained; the oldest are dropped.
// A limit <= 0 keeps everything.
func WithLimit(n int) Option {
	return func(o *options) { o.limit = n }
}

// New creates an empty log.
func New[T aggregate.Root[T]](opts ...Option) *Log[T] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &Log[T]{limit: o.limit}
}

// Record stores a clone of state at the cursor, discarding any redo entries,
// and advances the cursor.
func (l *Log[T]) Record(state T) {
	l.push(state.Clone())
}

// Push is Record for a value the caller already cloned; the log takes ownership.
func (l *Log[T]) Push(owned T) {
	l.push(owned)
}

func (l *Log[T]) push(v T) {
	clear(l.entries[l.index:])
	l.entries = append(l.entries[:l.index], v)
	l.index++
	if l.limit > 0 && l.index > l.limit {
		drop := l.index - l.limit
		clear(l.entries[:drop])
		l.entries = append(l.entries[:0], l.entries[drop:]...)
		l.index -= drop
	}
}

// Undo steps the cursor back and returns the state to apply. current is the
// live state being replaced; a clone of it is kept so Redo can return to it.
func (l *Log[T]) Undo(current T) (T, error) {
	var zero T
	if l.index == 0 {
		return zero, ErrNothingToUndo
	}
	l.index--
	prev := l.entries[l.index]
	l.entries[l.index] = current.Clone()
	return prev, nil
}

// Redo returns the state at the cursor and advances it. current is kept so a
// following Undo can return to it.
func (l *Log[T]) Redo(current T) (T, error) {
	var zero T
	if l.index == len(l.entries) {
		return zero, ErrNothingToRedo
	}
	next := l.entries[l.index]
	l.entries[l.index] = current.Clone()
	l.index++
	return next, nil
}

// CanUndo reports whether Undo would succeed.
func (l *Log[T]) CanUndo() bool { return l.index > 0 }

// CanRedo reports whether Redo would succeed.
func (l *Log[T]) CanRedo() bool { return l.index < len(l.entries) }

// Len returns the number of retained entries.
func (l *Log[T]) Len() int { return len(l.entries) }

// Index returns the cursor position.
func (l *Log[T]) Index() int { return l.index }

// Reset drops every entry.
func (l *Log[T]) Reset() {
	clear(l.entries)
	l.entries = l.entries[:0]
	l.index = 0
}
