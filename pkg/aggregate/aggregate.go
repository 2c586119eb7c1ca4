// Package aggregate defines the contract shared by every value the
// state-versioning core captures: the aggregate root persisted in snapshots
// and the subsystem states kept by the undo log.
//
// The core never inspects the shape of these values. It only needs to copy
// them without sharing mutable parts, which is what Root expresses.
//
// Example usage:
//
//	type Inventory struct{ Items map[string]int }
//
//	func (i *Inventory) Clone() *Inventory {
//		return &Inventory{Items: maps.Clone(i.Items)}
//	}
package aggregate

// Root is a value that can produce a deep copy of itself.
//
// Implementations must ensure:
//   - Every nested map, slice and pointer is copied, so mutating the clone
//     cannot affect the source and vice versa
//   - The clone is observably equal to the source
//   - The value is JSON-serializable when it is persisted in a snapshot
type Root[T any] interface {
	// Clone creates a deep copy of the value.
	Clone() T
}

// Validator is implemented by roots that can report a decoded value as
// unusable, for example a subsystem left nil by a partial payload.
type Validator interface {
	Validate() error
}
