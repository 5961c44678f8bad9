// Package store declares the exact-key key-value board interface
// (spec.md §4.6 "board/store"), grounded on examples/rust/store/src/lib.rs
// and crates/scheduler's store calls. Ranged, fragment-aware access lives
// in internal/fragment, which is built on top of the same Store interface.
package store

// Store is an exact-key key-value store a board exposes to the dispatcher.
// Keys are uint16 integers; Store itself does not check them against
// constants.StoreKeyMax (internal/fragment checks its ranges against it).
type Store interface {
	// Insert writes value under key, replacing any existing value.
	Insert(key uint16, value []byte) error
	// Find returns the value stored under key, or ok=false if absent.
	Find(key uint16) (value []byte, ok bool, err error)
	// Remove deletes key. It is not an error to remove an absent key.
	Remove(key uint16) error
	// Keys returns every key currently populated, for fragment range scans.
	Keys() ([]uint16, error)
}
