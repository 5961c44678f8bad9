// Package hashslot implements the fixed-size slot table for streaming
// hash/HMAC contexts (spec.md §3 "Hash slot table"), ported from
// crates/scheduler/src/applet.rs's AppletHashes.
package hashslot

import (
	"errors"

	"github.com/wasefire/wfcore/internal/constants"
)

// ErrTrap is returned for any slot access the applet could not have
// legitimately produced: double-allocation beyond capacity, or a
// missing/out-of-range slot id.
var ErrTrap = errors.New("hashslot: trap")

// Kind identifies which streaming algorithm a context holds.
type Kind int

const (
	HmacSha256 Kind = iota
	HmacSha384
	Sha256
	Sha384
)

// Context is an opaque streaming hash/HMAC context. Concrete hashing is an
// external collaborator (spec.md §1); this package only owns the slot
// lifecycle.
type Context struct {
	Kind  Kind
	State any
}

// Table is the applet's fixed 4-slot hash context table.
type Table struct {
	slots [constants.HashSlotCount]*Context
}

// Insert returns the lowest free index, or traps if the table is full.
func (t *Table) Insert(ctx *Context) (int, error) {
	for i := range t.slots {
		if t.slots[i] == nil {
			t.slots[i] = ctx
			return i, nil
		}
	}
	return 0, ErrTrap
}

// Get returns the context at id without removing it.
func (t *Table) Get(id int) (*Context, error) {
	if id < 0 || id >= len(t.slots) || t.slots[id] == nil {
		return nil, ErrTrap
	}
	return t.slots[id], nil
}

// Take removes and returns the context at id.
func (t *Table) Take(id int) (*Context, error) {
	ctx, err := t.Get(id)
	if err != nil {
		return nil, err
	}
	t.slots[id] = nil
	return ctx, nil
}
