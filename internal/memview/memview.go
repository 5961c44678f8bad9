// Package memview implements the applet's linear-memory view: bounded
// pointer-to-slice translation plus dynamic borrow tracking (spec.md §3/§4.3).
//
// The borrow algebra is ported from crates/slice-cell/src/lib.rs's
// borrow_check: a sorted, non-overlapping, non-empty-range list of accesses
// is kept and checked on every Get/GetMut; Alloc invalidates the whole list.
package memview

import (
	"errors"
	"fmt"
)

// ErrTrap is returned for any access that is not something the applet could
// reasonably have intended; the caller must treat it as a trap (spec.md
// §4.6 "Applet trap policy").
var ErrTrap = errors.New("memview: trap")

type access struct {
	exclusive bool
	begin     uint32
	end       uint32
}

// Allocator is the applet's own exported allocator, used by Alloc (spec.md
// §4.3): an exported `alloc` function on the wasm engine, or a C
// malloc-equivalent on native.
type Allocator interface {
	Allocate(size, align uint32) (ptr uint32, ok bool)
}

// View wraps an applet's linear memory as a mutable byte slice together
// with the sorted borrow list.
type View struct {
	data    []byte
	borrows []access
	alloc   Allocator
}

// New wraps data (the engine's full linear memory) with borrow tracking.
// alloc may be nil if the view is read-only / the applet has no allocator.
func New(data []byte, alloc Allocator) *View {
	return &View{data: data, alloc: alloc}
}

// Len returns the size of the underlying linear memory.
func (v *View) Len() int { return len(v.data) }

// Rebind replaces the underlying memory slice (e.g. after the wasm engine
// grows memory) without touching the borrow list, matching the upstream
// invariant that growth does not invalidate existing borrow ranges as long
// as they remain in bounds.
func (v *View) Rebind(data []byte) { v.data = data }

func (v *View) boundsCheck(ptr, length uint32) (begin, end uint32, err error) {
	if length == 0 {
		return ptr, ptr, nil
	}
	end64 := uint64(ptr) + uint64(length)
	if end64 > uint64(len(v.data)) {
		return 0, 0, fmt.Errorf("%w: range [%d, %d) out of bounds (len %d)", ErrTrap, ptr, end64, len(v.data))
	}
	return ptr, uint32(end64), nil
}

// Get returns a shared borrow of the range [ptr, ptr+len).
func (v *View) Get(ptr, length uint32) ([]byte, error) {
	begin, end, err := v.boundsCheck(ptr, length)
	if err != nil {
		return nil, err
	}
	if begin == end {
		return v.data[begin:begin], nil
	}
	if err := v.borrow(access{exclusive: false, begin: begin, end: end}); err != nil {
		return nil, err
	}
	return v.data[begin:end], nil
}

// GetMut returns an exclusive borrow of the range [ptr, ptr+len).
func (v *View) GetMut(ptr, length uint32) ([]byte, error) {
	begin, end, err := v.boundsCheck(ptr, length)
	if err != nil {
		return nil, err
	}
	if begin == end {
		return v.data[begin:begin], nil
	}
	if err := v.borrow(access{exclusive: true, begin: begin, end: end}); err != nil {
		return nil, err
	}
	return v.data[begin:end], nil
}

// GetArray returns a shared borrow of a fixed-size array at ptr.
func (v *View) GetArray(ptr uint32, n int) ([]byte, error) {
	return v.Get(ptr, uint32(n))
}

// GetOpt is Get, but ptr == 0 maps to (nil, nil) instead of a zero-length
// slice (spec.md §4.3 "Convenience").
func (v *View) GetOpt(ptr, length uint32) ([]byte, error) {
	if ptr == 0 {
		return nil, nil
	}
	return v.Get(ptr, length)
}

// Alloc invalidates all outstanding borrows and asks the applet's own
// allocator for memory; traps on failure.
func (v *View) Alloc(size, align uint32) (uint32, error) {
	v.borrows = nil
	if v.alloc == nil {
		return 0, fmt.Errorf("%w: no allocator", ErrTrap)
	}
	ptr, ok := v.alloc.Allocate(size, align)
	if !ok {
		return 0, fmt.Errorf("%w: allocation failed (size %d align %d)", ErrTrap, size, align)
	}
	return ptr, nil
}

// AllocCopy allocates len(data) bytes, copies data into it, and writes the
// resulting pointer and length into applet memory at ptrPtr/lenPtr
// (spec.md §4.3 "Convenience"). Allocation is skipped when data is empty,
// but the length is still written.
func (v *View) AllocCopy(ptrPtr, lenPtr uint32, data []byte) error {
	var ptr uint32
	if len(data) > 0 {
		var err error
		ptr, err = v.Alloc(uint32(len(data)), 1)
		if err != nil {
			return err
		}
		dst, err := v.GetMut(ptr, uint32(len(data)))
		if err != nil {
			return err
		}
		copy(dst, data)
	}
	if err := v.putU32(ptrPtr, ptr); err != nil {
		return err
	}
	return v.putU32(lenPtr, uint32(len(data)))
}

func (v *View) putU32(ptr, value uint32) error {
	dst, err := v.GetMut(ptr, 4)
	if err != nil {
		return err
	}
	dst[0] = byte(value)
	dst[1] = byte(value >> 8)
	dst[2] = byte(value >> 16)
	dst[3] = byte(value >> 24)
	return nil
}

// borrow checks and records a new access, following the merge/reject rules
// of crates/slice-cell/src/lib.rs's borrow_check.
func (v *View) borrow(new access) error {
	state := v.borrows
	// Find the first existing access that ends after the new access starts.
	i := len(state)
	for idx, cur := range state {
		if new.begin < cur.end {
			i = idx
			break
		}
	}
	if i == len(state) {
		v.borrows = append(state, new)
		return nil
	}
	// Find the first existing access that starts after the new access ends.
	j := len(state)
	for idx := i; idx < len(state); idx++ {
		if new.end <= state[idx].begin {
			j = idx
			break
		}
	}
	if i == j {
		v.borrows = insertAt(state, i, new)
		return nil
	}
	for _, cur := range state[i:j] {
		if cur.exclusive {
			return fmt.Errorf("%w: exclusive borrow conflict on [%d,%d)", ErrTrap, cur.begin, cur.end)
		}
	}
	if new.exclusive {
		return fmt.Errorf("%w: exclusive borrow conflicts with existing shared borrow(s)", ErrTrap)
	}
	// Merge the new access with all overlapping existing ones.
	merged := access{
		exclusive: false,
		begin:     min32(state[i].begin, new.begin),
		end:       max32(state[j-1].end, new.end),
	}
	next := append([]access{}, state[:i]...)
	next = append(next, merged)
	next = append(next, state[j:]...)
	v.borrows = next
	return nil
}

func insertAt(s []access, i int, a access) []access {
	out := make([]access, 0, len(s)+1)
	out = append(out, s[:i]...)
	out = append(out, a)
	out = append(out, s[i:]...)
	return out
}

func min32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}

func max32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}
