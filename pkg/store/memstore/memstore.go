// Package memstore is an in-memory blob store for tests and the "memory"
// backend. Hooks let tests inject failures on individual keys.
package memstore

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/wilhg/workshop/pkg/store"
)

// Hook may fail a call for a key. Returning nil lets the call proceed.
type Hook func(key string) error

// Store implements store.BlobStore on a map. Safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	blobs map[string][]byte

	onPut Hook
	onGet Hook
}

func New() *Store {
	return &Store{blobs: make(map[string][]byte)}
}

// FailPut installs h in front of every Put. A nil h removes the hook.
func (s *Store) FailPut(h Hook) {
	s.mu.Lock()
	s.onPut = h
	s.mu.Unlock()
}

// FailGet installs h in front of every Get.
func (s *Store) FailGet(h Hook) {
	s.mu.Lock()
	s.onGet = h
	s.mu.Unlock()
}

// Set overwrites a blob directly, bypassing hooks. Tests use it to corrupt payloads.
func (s *Store) Set(key string, data []byte) {
	s.mu.Lock()
	s.blobs[key] = slices.Clone(data)
	s.mu.Unlock()
}

// Has reports whether key holds a blob.
func (s *Store) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.blobs[key]
	return ok
}

func (s *Store) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !store.ValidKey(key) {
		return fmt.Errorf("memstore: invalid key %q", key)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.onPut != nil {
		if err := s.onPut(key); err != nil {
			return fmt.Errorf("put %s: %w", key, err)
		}
	}
	s.blobs[key] = slices.Clone(data)
	return nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.onGet != nil {
		if err := s.onGet(key); err != nil {
			return nil, fmt.Errorf("get %s: %w", key, err)
		}
	}
	b, ok := s.blobs[key]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", key, store.ErrNotFound)
	}
	return slices.Clone(b), nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.blobs, key)
	s.mu.Unlock()
	return nil
}

func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var keys []string
	for k := range s.blobs {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys, nil
}

func (s *Store) Close() error { return nil }
