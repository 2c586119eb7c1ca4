package workshop

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wilhg/workshop/pkg/counters"
	"github.com/wilhg/workshop/pkg/undo"
)

func addProduct(ids counters.IDSource, name, sku string, qty int) func(*Stock) error {
	return func(s *Stock) error {
		_, err := s.AddProduct(ids, Product{Name: name, SKU: sku, Quantity: qty, UnitCents: 100})
		return err
	}
}

func TestStockHistoryUndoRedo(t *testing.T) {
	ids := counters.NewRegistry()
	w := New()
	h := NewStockHistory(w)

	require.NoError(t, h.Commit(addProduct(ids, "Brake pad", "BP-1", 4)))
	require.NoError(t, h.Commit(func(s *Stock) error { return s.Withdraw(1, 3) }))
	require.NoError(t, h.Commit(addProduct(ids, "Coolant", "CL-1", 2)))
	afterC3 := w.Stock.Clone()

	require.NoError(t, h.Undo())
	assert.Len(t, w.Stock.Products, 1)
	assert.Equal(t, 1, w.Stock.Products[1].Quantity)

	require.NoError(t, h.Redo())
	assert.Equal(t, afterC3, w.Stock)
	assert.Equal(t, 3, h.Depth())
}

func TestStockHistoryNewCommitInvalidatesRedo(t *testing.T) {
	ids := counters.NewRegistry()
	w := New()
	h := NewStockHistory(w)
	require.NoError(t, h.Commit(addProduct(ids, "A", "A", 1)))
	require.NoError(t, h.Commit(addProduct(ids, "B", "B", 1)))
	require.NoError(t, h.Commit(addProduct(ids, "C", "C", 1)))

	require.NoError(t, h.Undo())
	require.NoError(t, h.Commit(addProduct(ids, "D", "D", 1)))
	assert.ErrorIs(t, h.Redo(), undo.ErrNothingToRedo)
	assert.False(t, h.CanRedo())

	skus := map[string]bool{}
	for _, p := range w.Stock.Products {
		skus[p.SKU] = true
	}
	assert.Equal(t, map[string]bool{"A": true, "B": true, "D": true}, skus)
}

func TestStockHistoryFailedCommitRollsBack(t *testing.T) {
	ids := counters.NewRegistry()
	w := New()
	h := NewStockHistory(w)
	require.NoError(t, h.Commit(addProduct(ids, "A", "A", 1)))
	before := w.Stock.Clone()

	boom := errors.New("boom")
	err := h.Commit(func(s *Stock) error {
		delete(s.Products, 1)
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, before, w.Stock)
	assert.Equal(t, 1, h.Depth())
}

func TestStockHistoryEmptyBoundaries(t *testing.T) {
	h := NewStockHistory(New())
	assert.ErrorIs(t, h.Undo(), undo.ErrNothingToUndo)
	assert.ErrorIs(t, h.Redo(), undo.ErrNothingToRedo)
	assert.False(t, h.CanUndo())
}

func TestStockHistoryOnlyTouchesStock(t *testing.T) {
	ids := counters.NewRegistry()
	w := New()
	h := NewStockHistory(w)
	require.NoError(t, h.Commit(addProduct(ids, "A", "A", 1)))
	_, err := w.Registry.AddCustomer(ids, "Bia", "1", "")
	require.NoError(t, err)

	require.NoError(t, h.Undo())
	assert.Empty(t, w.Stock.Products)
	assert.Len(t, w.Registry.Customers, 1)
}

func TestStockHistoryRebind(t *testing.T) {
	ids := counters.NewRegistry()
	w := New()
	h := NewStockHistory(w)
	require.NoError(t, h.Commit(addProduct(ids, "A", "A", 1)))

	other := New()
	h.Rebind(other)
	assert.False(t, h.CanUndo())
	require.NoError(t, h.Commit(addProduct(ids, "B", "B", 1)))
	assert.Len(t, other.Stock.Products, 1)
	assert.Len(t, w.Stock.Products, 1)
}
