// Package counters keeps the per-entity-kind identifier counters used to mint
// unique ids. The registry is an explicit value threaded through
// construction; entity constructors take an IDSource instead of reaching for
// process-wide state.
package counters

import (
	"maps"
	"slices"

	"github.com/wilhg/workshop/pkg/errmodel"
)

// Kind names an entity kind that receives identifiers.
type Kind string

// Tracked entity kinds.
const (
	KindCustomer     Kind = "Customer"
	KindVehicle      Kind = "Vehicle"
	KindInvoice      Kind = "Invoice"
	KindServiceOrder Kind = "ServiceOrder"
	KindStaffMember  Kind = "StaffMember"
	KindProduct      Kind = "Product"
	KindShipment     Kind = "Shipment"
	KindSupplier     Kind = "Supplier"
)

// DefaultKinds returns the kinds a new registry tracks when none are given.
func DefaultKinds() []Kind {
	return []Kind{
		KindCustomer, KindVehicle, KindInvoice, KindServiceOrder,
		KindStaffMember, KindProduct, KindShipment, KindSupplier,
	}
}

var (
	// ErrAlreadyRestored is returned when Restore is called a second time.
	ErrAlreadyRestored = errmodel.Usage("counters_already_restored", "identifier counters were already restored", nil)
	// ErrRestoreAfterMint is returned when a captured value would overwrite counters that already minted ids.
	ErrRestoreAfterMint = errmodel.Usage("counters_restore_after_mint", "identifier counters cannot be restored after ids were minted", nil)
)

// IDSource mints identifiers. It is the capability entity constructors depend on.
type IDSource interface {
	Next(kind Kind) uint64
}

// Captured is a read-only copy of every counter at capture time.
type Captured map[Kind]uint64

// Clone returns an independent copy. A nil value stays nil.
func (c Captured) Clone() Captured {
	return maps.Clone(c)
}

// Registry holds the live, mutable counters. It is not safe for concurrent use.
type Registry struct {
	values   map[Kind]uint64
	minted   bool
	restored bool
}

// NewRegistry creates a registry tracking kinds, or DefaultKinds when none are given.
func NewRegistry(kinds ...Kind) *Registry {
	if len(kinds) == 0 {
		kinds = DefaultKinds()
	}
	r := &Registry{values: make(map[Kind]uint64, len(kinds))}
	for _, k := range kinds {
		r.values[k] = 0
	}
	return r
}

// Next increments the counter for kind and returns the new value.
// Unknown kinds start tracking at zero.
func (r *Registry) Next(kind Kind) uint64 {
	r.values[kind]++
	r.minted = true
	return r.values[kind]
}

// Current returns the last id minted for kind.
func (r *Registry) Current(kind Kind) uint64 {
	return r.values[kind]
}

// Kinds returns the tracked kinds in lexical order.
func (r *Registry) Kinds() []Kind {
	return slices.Sorted(maps.Keys(r.values))
}

// Capture reads every live counter into an independent value.
func (r *Registry) Capture() Captured {
	return Captured(maps.Clone(r.values))
}

// Restore applies a captured value to the live counters. A nil value is a
// no-op that leaves every counter where the current process put it.
// Kinds absent from c keep their value; kinds unknown to the registry are adopted.
func (r *Registry) Restore(c Captured) error {
	if r.restored {
		return ErrAlreadyRestored
	}
	if c == nil {
		r.restored = true
		return nil
	}
	if r.minted {
		return ErrRestoreAfterMint
	}
	for k, v := range c {
		r.values[k] = v
	}
	r.restored = true
	return nil
}

// Restored reports whether Restore has completed.
func (r *Registry) Restored() bool { return r.restored }

// Sequence returns the narrow next-id capability for a single kind.
func (r *Registry) Sequence(kind Kind) Sequence {
	return Sequence{src: r, kind: kind}
}

// Sequence mints ids for one kind.
type Sequence struct {
	src  IDSource
	kind Kind
}

// Next mints the next id of the sequence's kind.
func (s Sequence) Next() uint64 { return s.src.Next(s.kind) }

// Kind returns the kind this sequence mints.
func (s Sequence) Kind() Kind { return s.kind }
