package workshop

import "github.com/wilhg/workshop/pkg/undo"

// StockHistory is the undo/redo log bound to a workshop's stock. Every
// mutation goes through Commit; Undo and Redo replace the stock wholesale.
type StockHistory struct {
	w   *Workshop
	log *undo.Log[*Stock]
}

// NewStockHistory binds a fresh log to w.
func NewStockHistory(w *Workshop, opts ...undo.Option) *StockHistory {
	return &StockHistory{w: w, log: undo.New[*Stock](opts...)}
}

// Commit runs fn against the live stock. On success the pre-mutation state is
// recorded and any redo entries are discarded. On failure the stock is put
// back exactly as it was and nothing is recorded.
func (h *StockHistory) Commit(fn func(*Stock) error) error {
	before := h.w.Stock.Clone()
	if err := fn(h.w.Stock); err != nil {
		h.w.ReplaceStock(before)
		return err
	}
	h.log.Push(before)
	return nil
}

// Undo reverts the last committed stock mutation.
func (h *StockHistory) Undo() error {
	prev, err := h.log.Undo(h.w.Stock)
	if err != nil {
		return err
	}
	h.w.ReplaceStock(prev)
	return nil
}

// Redo reapplies the last undone stock mutation.
func (h *StockHistory) Redo() error {
	next, err := h.log.Redo(h.w.Stock)
	if err != nil {
		return err
	}
	h.w.ReplaceStock(next)
	return nil
}

// Rebind points the history at another workshop and drops every entry.
// It is used after a snapshot replaces the live aggregate.
func (h *StockHistory) Rebind(w *Workshop) {
	h.w = w
	h.log.Reset()
}

// CanUndo reports whether a committed stock state sits behind the cursor.
func (h *StockHistory) CanUndo() bool { return h.log.CanUndo() }

// CanRedo reports whether an undone stock state can be reapplied.
func (h *StockHistory) CanRedo() bool { return h.log.CanRedo() }

// Depth is the number of stock states Undo can step back through.
func (h *StockHistory) Depth() int { return h.log.Index() }
