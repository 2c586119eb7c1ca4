// Package workshop is the aggregate root persisted by the state-versioning
// core: the registry of customers and vehicles, the staff base, the
// financial ledger, the service-order scheduler and the stock.
//
// Every subsystem is owned by exactly one Workshop value and is reached
// through it, never through package-level state. Every type provides Clone so
// the whole root, or the stock alone, can be captured without sharing
// mutable parts.
package workshop

import "github.com/wilhg/workshop/pkg/errmodel"

// Workshop is the aggregate root.
type Workshop struct {
	Registry  *Registry  `json:"registry"`
	Staff     *StaffBase `json:"staff"`
	Ledger    *Ledger    `json:"ledger"`
	Scheduler *Scheduler `json:"scheduler"`
	Stock     *Stock     `json:"stock"`
}

// New returns an empty workshop with every subsystem initialized.
func New() *Workshop {
	return &Workshop{
		Registry:  NewRegistry(),
		Staff:     NewStaffBase(),
		Ledger:    NewLedger(),
		Scheduler: NewScheduler(),
		Stock:     NewStock(),
	}
}

// Clone returns a deep copy of the workshop.
func (w *Workshop) Clone() *Workshop {
	if w == nil {
		return nil
	}
	return &Workshop{
		Registry:  w.Registry.Clone(),
		Staff:     w.Staff.Clone(),
		Ledger:    w.Ledger.Clone(),
		Scheduler: w.Scheduler.Clone(),
		Stock:     w.Stock.Clone(),
	}
}

// ReplaceStock swaps the stock wholesale. The workshop takes ownership of s.
func (w *Workshop) ReplaceStock(s *Stock) {
	w.Stock = s
}

func notFound(kind string, id uint64) *errmodel.Error {
	return errmodel.Validation("not_found", kind+" not found", map[string]any{"id": id})
}

func invalid(code, message string) *errmodel.Error {
	return errmodel.Validation(code, message, nil)
}
