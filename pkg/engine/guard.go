package engine

import (
	"sync"

	"github.com/wilhg/workshop/pkg/aggregate"
)

// Guard serializes access to an Engine for surfaces that handle requests on
// several goroutines.
type Guard[T aggregate.Root[T]] struct {
	mu sync.Mutex
	e  *Engine[T]
}

func NewGuard[T aggregate.Root[T]](e *Engine[T]) *Guard[T] {
	return &Guard[T]{e: e}
}

// Do runs fn while holding the lock.
func (g *Guard[T]) Do(fn func(*Engine[T]) error) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return fn(g.e)
}
