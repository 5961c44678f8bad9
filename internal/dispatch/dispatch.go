// Package dispatch implements the platform-call dispatcher (spec.md §4.6):
// one table keyed by link name, each entry resolving its pointer arguments
// through internal/memview before delegating to a board interface. A
// memview failure, an unknown link name, or a handler explicitly returning
// ErrTrap all terminate the applet; anything else is packed through
// internal/abierr and returned to the applet as an ordinary result.
package dispatch

import (
	"errors"
	"fmt"
	"sync"

	"github.com/wasefire/wfcore/internal/abierr"
	"github.com/wasefire/wfcore/internal/engine"
)

// ErrTrap marks a dispatcher failure that must terminate the applet.
var ErrTrap = errors.New("dispatch: trap")

// Func implements one link name. It returns the call's single u32 result,
// or an error: either an abierr.Error (packed into the result) or any
// other error (wrapped as ErrTrap).
type Func func(call engine.Call) (uint32, error)

// Table is a registry of link names to their Func implementations.
type Table struct {
	mu    sync.RWMutex
	funcs map[string]Func
}

// NewTable creates an empty dispatch table.
func NewTable() *Table {
	return &Table{funcs: make(map[string]Func)}
}

// Register adds or replaces the handler for name.
func (t *Table) Register(name string, fn Func) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.funcs[name] = fn
}

// Dispatch resolves call.Name() and runs its handler, returning the packed
// i32 result ready to hand back to the engine's Resume.
func (t *Table) Dispatch(call engine.Call) (int32, error) {
	t.mu.RLock()
	fn, ok := t.funcs[call.Name()]
	t.mu.RUnlock()
	if !ok {
		return 0, fmt.Errorf("%w: unknown link name %q", ErrTrap, call.Name())
	}
	value, err := fn(call)
	if err == nil {
		return abierr.Encode(value, nil), nil
	}
	if errors.Is(err, ErrTrap) {
		return 0, err
	}
	var abiErr abierr.Error
	if errors.As(err, &abiErr) {
		return abierr.Encode(0, abiErr), nil
	}
	return 0, fmt.Errorf("%w: %v", ErrTrap, err)
}
