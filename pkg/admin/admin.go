// Package admin exposes the operations shared by the HTTP and MCP surfaces.
// Every call runs under the engine guard.
package admin

import (
	"context"
	"time"

	"github.com/wilhg/workshop/pkg/engine"
	"github.com/wilhg/workshop/pkg/metrics"
	"github.com/wilhg/workshop/pkg/snapshot"
	"github.com/wilhg/workshop/pkg/undo"
	"github.com/wilhg/workshop/pkg/workshop"
)

type Service struct {
	guard   *engine.Guard[*workshop.Workshop]
	history *workshop.StockHistory
	metrics *metrics.Metrics
}

// New binds a stock history to the engine's root. The engine must be loaded.
func New(e *engine.Engine[*workshop.Workshop], m *metrics.Metrics, opts ...undo.Option) (*Service, error) {
	if !e.Loaded() {
		return nil, engine.ErrNotLoaded
	}
	return &Service{
		guard:   engine.NewGuard(e),
		history: workshop.NewStockHistory(e.Root(), opts...),
		metrics: m,
	}, nil
}

// Guard gives callers that need several engine calls in one critical
// section access to the lock.
func (s *Service) Guard() *engine.Guard[*workshop.Workshop] { return s.guard }

type SnapshotInfo struct {
	ID        snapshot.ID `json:"id"`
	CreatedAt time.Time   `json:"created_at"`
}

type SnapshotList struct {
	Snapshots  []SnapshotInfo `json:"snapshots"`
	LoadedFrom snapshot.ID    `json:"loaded_from,omitempty"`
	Evicted    []snapshot.ID  `json:"evicted,omitempty"`
	Session    string         `json:"session"`
	Dirty      bool           `json:"dirty"`
}

// Snapshots lists the indexed history, oldest first.
func (s *Service) Snapshots() (SnapshotList, error) {
	var out SnapshotList
	err := s.guard.Do(func(e *engine.Engine[*workshop.Workshop]) error {
		ct := e.Caretaker()
		out.Snapshots = make([]SnapshotInfo, 0, len(ct.History()))
		for _, id := range ct.History() {
			out.Snapshots = append(out.Snapshots, SnapshotInfo{ID: id, CreatedAt: id.Time()})
		}
		out.LoadedFrom = e.LoadedFrom()
		out.Evicted = ct.Evicted()
		out.Session = e.Session()
		out.Dirty = e.Dirty()
		return nil
	})
	return out, err
}

// Checkpoint saves the live state now.
func (s *Service) Checkpoint(ctx context.Context) (snapshot.ID, error) {
	var id snapshot.ID
	err := s.guard.Do(func(e *engine.Engine[*workshop.Workshop]) error {
		var err error
		id, err = e.SaveState(ctx)
		return err
	})
	return id, err
}

// Shutdown saves pending mutations, if any. It reports whether a snapshot
// was written.
func (s *Service) Shutdown(ctx context.Context) (bool, error) {
	saved := false
	err := s.guard.Do(func(e *engine.Engine[*workshop.Workshop]) error {
		if !e.Dirty() {
			return nil
		}
		if _, err := e.Checkpoint(ctx, engine.TriggerShutdown); err != nil {
			return err
		}
		saved = true
		return nil
	})
	return saved, err
}

// Stock returns a copy of the live stock.
func (s *Service) Stock() (*workshop.Stock, error) {
	var out *workshop.Stock
	err := s.guard.Do(func(e *engine.Engine[*workshop.Workshop]) error {
		out = e.Root().Stock.Clone()
		return nil
	})
	return out, err
}

type ProductInput struct {
	Name       string `json:"name"`
	SKU        string `json:"sku,omitempty"`
	Quantity   int    `json:"quantity"`
	UnitCents  int64  `json:"unit_cents"`
	SupplierID uint64 `json:"supplier_id,omitempty"`
}

// AddProduct registers a product as an undoable stock commit.
func (s *Service) AddProduct(ctx context.Context, in ProductInput) (workshop.Product, error) {
	var added workshop.Product
	err := s.guard.Do(func(e *engine.Engine[*workshop.Workshop]) error {
		return e.Mutate(ctx, func(*workshop.Workshop) error {
			return s.history.Commit(func(st *workshop.Stock) error {
				var err error
				added, err = st.AddProduct(e.Counters(), workshop.Product{
					Name:       in.Name,
					SKU:        in.SKU,
					Quantity:   in.Quantity,
					UnitCents:  in.UnitCents,
					SupplierID: in.SupplierID,
				})
				return err
			})
		})
	})
	s.metrics.UndoOp("commit", err == nil)
	return added, err
}

type UndoStatus struct {
	Depth   int  `json:"depth"`
	CanUndo bool `json:"can_undo"`
	CanRedo bool `json:"can_redo"`
}

func (s *Service) Undo(ctx context.Context) (UndoStatus, error) {
	return s.step(ctx, "undo", s.history.Undo)
}

func (s *Service) Redo(ctx context.Context) (UndoStatus, error) {
	return s.step(ctx, "redo", s.history.Redo)
}

func (s *Service) step(ctx context.Context, op string, fn func() error) (UndoStatus, error) {
	var st UndoStatus
	err := s.guard.Do(func(e *engine.Engine[*workshop.Workshop]) error {
		err := e.Mutate(ctx, func(*workshop.Workshop) error { return fn() })
		st = UndoStatus{Depth: s.history.Depth(), CanUndo: s.history.CanUndo(), CanRedo: s.history.CanRedo()}
		return err
	})
	s.metrics.UndoOp(op, err == nil)
	return st, err
}
