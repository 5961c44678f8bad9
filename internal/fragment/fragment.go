// Package fragment implements the store fragment API (spec.md §4.8): a
// logical value spread across consecutive keys of a half-open range
// [a, b) of a board.Store, terminated by the first absent key. Grounded on
// the teacher's exact-key-store pattern in backend/mem.go, generalized
// here to a chunked range rather than a single key.
package fragment

import (
	"errors"
	"fmt"

	"github.com/wasefire/wfcore/internal/board/store"
	"github.com/wasefire/wfcore/internal/constants"
)

// ErrInvalidRange is returned when [a, b) is empty or b is not below
// constants.StoreKeyMax (spec.md §4.6 "Store": "non-empty and b < 4096").
var ErrInvalidRange = errors.New("fragment: invalid range")

// ErrTooLarge is returned by Insert when data needs more chunks than the
// range [a, b) has keys for.
var ErrTooLarge = errors.New("fragment: value too large for range")

// Range is a half-open key range [A, B) addressing one fragment value.
type Range struct {
	A, B uint16
}

func (r Range) validate() error {
	if r.B <= r.A {
		return fmt.Errorf("fragment: range [%d, %d) is empty: %w", r.A, r.B, ErrInvalidRange)
	}
	if uint32(r.B) >= constants.StoreKeyMax {
		return fmt.Errorf("fragment: range end %d exceeds store key space: %w", r.B, ErrInvalidRange)
	}
	return nil
}

func (r Range) keyCount() int { return int(r.B) - int(r.A) }

// Insert stores data across one or more keys in range, replacing any prior
// fragment: chunks are written in ascending key order, then any keys beyond
// the new data's end (left over from a longer prior fragment) are cleared in
// ascending order. No sentinel or commit record is written, so the
// replacement is not atomic across a crash: an Insert interrupted part-way
// can leave new chunks followed by chunks of the old value, and Find then
// returns that mix.
func Insert(s store.Store, r Range, data []byte) error {
	if err := r.validate(); err != nil {
		return err
	}
	chunks := chunk(data, constants.FragmentChunkSize)
	if len(chunks) > r.keyCount() {
		return fmt.Errorf("fragment: %d chunks don't fit in %d keys: %w", len(chunks), r.keyCount(), ErrTooLarge)
	}
	key := r.A
	for _, c := range chunks {
		if err := s.Insert(key, c); err != nil {
			return fmt.Errorf("fragment: insert key %d: %w", key, err)
		}
		key++
	}
	for ; key < r.B; key++ {
		if err := s.Remove(key); err != nil {
			return fmt.Errorf("fragment: clearing key %d: %w", key, err)
		}
	}
	return nil
}

// Find returns the concatenated value if present: it reads consecutive
// keys starting at range.A and stops at the first absent one.
func Find(s store.Store, r Range) ([]byte, bool, error) {
	if err := r.validate(); err != nil {
		return nil, false, err
	}
	var out []byte
	found := false
	for key := r.A; key < r.B; key++ {
		value, ok, err := s.Find(key)
		if err != nil {
			return nil, false, fmt.Errorf("fragment: find key %d: %w", key, err)
		}
		if !ok {
			break
		}
		found = true
		out = append(out, value...)
	}
	return out, found, nil
}

// Remove deletes every key in range.
func Remove(s store.Store, r Range) error {
	if err := r.validate(); err != nil {
		return err
	}
	for key := r.A; key < r.B; key++ {
		if err := s.Remove(key); err != nil {
			return fmt.Errorf("fragment: remove key %d: %w", key, err)
		}
	}
	return nil
}

// chunk splits data into size-byte pieces. Empty data still yields one
// empty chunk (rather than none) so Insert writes a key at r.A: otherwise
// Find could not distinguish an empty stored value from nothing stored
// (spec.md §8 property 7, "find == Some(data)" must hold for empty data too).
func chunk(data []byte, size int) [][]byte {
	if len(data) == 0 {
		return [][]byte{{}}
	}
	var chunks [][]byte
	for start := 0; start < len(data); start += size {
		end := start + size
		if end > len(data) {
			end = len(data)
		}
		chunks = append(chunks, append([]byte(nil), data[start:end]...))
	}
	return chunks
}
