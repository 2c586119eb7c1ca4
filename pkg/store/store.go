// Package store defines the blob persistence interface the caretaker writes
// snapshots and its index through. Implementations must provide identical
// semantics across backends so a history written by one can be listed and
// read by another.
package store

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound is returned by Get when no blob exists at the key.
var ErrNotFound = errors.New("store: blob not found")

// BlobStore maps slash-separated keys to byte payloads.
//
// Put must be atomic per key: a reader sees either the previous payload or
// the new one, never a torn write. List returns keys under prefix in lexical
// order.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

// ValidKey reports whether key is usable by every backend: non-empty,
// relative, slash-separated and free of "." or ".." segments.
func ValidKey(key string) bool {
	if key == "" || strings.HasPrefix(key, "/") || strings.HasSuffix(key, "/") || strings.Contains(key, "\\") {
		return false
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return false
		}
	}
	return true
}

// IsNotFound reports whether err is, or wraps, ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
