// Package storetest holds the behaviour every store.BlobStore backend must
// share. Backend tests call Run with a constructor for a fresh, empty store.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wilhg/workshop/pkg/store"
)

// Run exercises a backend. newStore must return an empty store; Run closes it.
func Run(t *testing.T, newStore func(t *testing.T) store.BlobStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("put get overwrite", func(t *testing.T) {
		s := newStore(t)
		t.Cleanup(func() { _ = s.Close() })

		require.NoError(t, s.Put(ctx, "snapshots/a.json", []byte(`{"v":1}`)))
		got, err := s.Get(ctx, "snapshots/a.json")
		require.NoError(t, err)
		assert.Equal(t, `{"v":1}`, string(got))

		require.NoError(t, s.Put(ctx, "snapshots/a.json", []byte(`{"v":2}`)))
		got, err = s.Get(ctx, "snapshots/a.json")
		require.NoError(t, err)
		assert.Equal(t, `{"v":2}`, string(got))
	})

	t.Run("missing key", func(t *testing.T) {
		s := newStore(t)
		t.Cleanup(func() { _ = s.Close() })

		_, err := s.Get(ctx, "snapshots/missing.json")
		require.Error(t, err)
		assert.True(t, store.IsNotFound(err), "want ErrNotFound, got %v", err)
		assert.NoError(t, s.Delete(ctx, "snapshots/missing.json"))
	})

	t.Run("list is prefix filtered and sorted", func(t *testing.T) {
		s := newStore(t)
		t.Cleanup(func() { _ = s.Close() })

		for _, k := range []string{"snapshots/003.json", "caretaker/history.json", "snapshots/001.json", "snapshots/002.json"} {
			require.NoError(t, s.Put(ctx, k, []byte("x")))
		}
		keys, err := s.List(ctx, "snapshots/")
		require.NoError(t, err)
		assert.Equal(t, []string{"snapshots/001.json", "snapshots/002.json", "snapshots/003.json"}, keys)

		require.NoError(t, s.Delete(ctx, "snapshots/002.json"))
		keys, err = s.List(ctx, "snapshots/")
		require.NoError(t, err)
		assert.Equal(t, []string{"snapshots/001.json", "snapshots/003.json"}, keys)
	})

	t.Run("payloads are copied", func(t *testing.T) {
		s := newStore(t)
		t.Cleanup(func() { _ = s.Close() })

		buf := []byte("abc")
		require.NoError(t, s.Put(ctx, "k", buf))
		buf[0] = 'z'
		got, err := s.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, "abc", string(got))
	})
}
