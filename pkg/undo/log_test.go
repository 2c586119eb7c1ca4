package undo

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wilhg/workshop/pkg/errmodel"
)

// bin is a minimal subsystem: a slice that must be deep-copied.
type bin struct {
	Items []string
}

func (b *bin) Clone() *bin { return &bin{Items: slices.Clone(b.Items)} }

// session drives a log the way a subsystem owner does: record the
// pre-mutation state, mutate, and replace wholesale on undo/redo.
type session struct {
	live *bin
	log  *Log[*bin]
}

func newSession(opts ...Option) *session {
	return &session{live: &bin{}, log: New[*bin](opts...)}
}

func (s *session) commit(item string) {
	s.log.Record(s.live)
	s.live.Items = append(s.live.Items, item)
}

func (s *session) undo() error {
	prev, err := s.log.Undo(s.live)
	if err != nil {
		return err
	}
	s.live = prev
	return nil
}

func (s *session) redo() error {
	next, err := s.log.Redo(s.live)
	if err != nil {
		return err
	}
	s.live = next
	return nil
}

func TestFreshLogBoundaries(t *testing.T) {
	s := newSession()
	err := s.undo()
	require.ErrorIs(t, err, ErrNothingToUndo)
	assert.True(t, errmodel.IsUsage(err))
	require.ErrorIs(t, s.redo(), ErrNothingToRedo)

	s.commit("a")
	require.ErrorIs(t, s.redo(), ErrNothingToRedo)
	assert.False(t, s.log.CanRedo())
	assert.True(t, s.log.CanUndo())
}

func TestUndoIsInverseOfLastCommit(t *testing.T) {
	s := newSession()
	s.commit("c1")
	s.commit("c2")
	s.commit("c3")

	require.NoError(t, s.undo())
	assert.Equal(t, []string{"c1", "c2"}, s.live.Items)
	require.NoError(t, s.undo())
	assert.Equal(t, []string{"c1"}, s.live.Items)
	require.NoError(t, s.undo())
	assert.Empty(t, s.live.Items)
	require.ErrorIs(t, s.undo(), ErrNothingToUndo)
}

func TestUndoThenRedoRestoresState(t *testing.T) {
	s := newSession()
	s.commit("c1")
	s.commit("c2")
	s.commit("c3")
	after := s.live.Clone()

	require.NoError(t, s.undo())
	require.NoError(t, s.redo())
	assert.Equal(t, after, s.live)

	require.NoError(t, s.undo())
	require.NoError(t, s.undo())
	require.NoError(t, s.redo())
	require.NoError(t, s.redo())
	assert.Equal(t, after, s.live)
	assert.Equal(t, 3, s.log.Index())
}

func TestCommitAfterUndoTruncatesRedo(t *testing.T) {
	s := newSession()
	s.commit("c1")
	s.commit("c2")
	s.commit("c3")

	require.NoError(t, s.undo())
	s.commit("c4")
	require.ErrorIs(t, s.redo(), ErrNothingToRedo)
	assert.Equal(t, []string{"c1", "c2", "c4"}, s.live.Items)
	assert.Equal(t, 3, s.log.Len())

	require.NoError(t, s.undo())
	assert.Equal(t, []string{"c1", "c2"}, s.live.Items)
}

func TestRecordedEntriesAreNotAliased(t *testing.T) {
	s := newSession()
	s.live.Items = []string{"x"}
	s.commit("y")
	// in-place mutation of the live slice must not leak into the log
	s.live.Items[0] = "mutated"

	require.NoError(t, s.undo())
	assert.Equal(t, []string{"x"}, s.live.Items)
	s.live.Items[0] = "again"
	require.NoError(t, s.redo())
	assert.Equal(t, []string{"mutated", "y"}, s.live.Items)
}

func TestLimitDropsOldestEntries(t *testing.T) {
	s := newSession(WithLimit(2))
	s.commit("c1")
	s.commit("c2")
	s.commit("c3")
	assert.Equal(t, 2, s.log.Len())
	assert.Equal(t, 2, s.log.Index())

	require.NoError(t, s.undo())
	require.NoError(t, s.undo())
	assert.Equal(t, []string{"c1"}, s.live.Items)
	require.ErrorIs(t, s.undo(), ErrNothingToUndo)
}

func TestReset(t *testing.T) {
	s := newSession()
	s.commit("c1")
	s.log.Reset()
	assert.Zero(t, s.log.Len())
	require.ErrorIs(t, s.undo(), ErrNothingToUndo)
}

func TestPushTakesOwnership(t *testing.T) {
	l := New[*bin]()
	owned := &bin{Items: []string{"a"}}
	l.Push(owned)
	got, err := l.Undo(&bin{Items: []string{"a", "b"}})
	require.NoError(t, err)
	assert.Same(t, owned, got)
}
