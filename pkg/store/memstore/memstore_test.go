package memstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wilhg/workshop/pkg/store"
	"github.com/wilhg/workshop/pkg/store/storetest"
)

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.BlobStore { return New() })
}

func TestHooksFailSelectedKeys(t *testing.T) {
	ctx := context.Background()
	s := New()
	boom := errors.New("disk full")
	s.FailPut(func(key string) error {
		if key == "bad" {
			return boom
		}
		return nil
	})
	require.ErrorIs(t, s.Put(ctx, "bad", []byte("x")), boom)
	require.NoError(t, s.Put(ctx, "good", []byte("x")))
	assert.False(t, s.Has("bad"))

	s.FailGet(func(string) error { return boom })
	_, err := s.Get(ctx, "good")
	require.ErrorIs(t, err, boom)
	s.FailGet(nil)
	_, err = s.Get(ctx, "good")
	require.NoError(t, err)
}
