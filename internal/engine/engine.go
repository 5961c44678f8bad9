// Package engine defines the execution-engine façade shared by the
// interpreted (wasm) and native variants (spec.md §4.4).
package engine

import (
	"context"
	"errors"

	"github.com/wasefire/wfcore/internal/memview"
)

// ErrAlreadyRunning is returned by a constructor when a sibling engine
// instance is already live (spec.md §5 invariant (i), and the Design notes
// guidance to fail rather than panic on a duplicate instantiation).
var ErrAlreadyRunning = errors.New("engine: an instance is already running")

// ErrTrap means the engine reached an unrecoverable state for the current
// invocation (spec.md §4.4 "Trap is unrecoverable for the current
// invocation").
var ErrTrap = errors.New("engine: trap")

// Outcome is what Invoke/Resume returns.
type Outcome struct {
	// Status discriminates the three cases.
	Status Status
	// Results holds the function's results when Status == Done.
	Results []uint32
}

// Status discriminates an Outcome.
type Status int

const (
	// StatusDone means the function ran to completion; Results holds its
	// return values.
	StatusDone Status = iota
	// StatusHost means the engine is paused inside a host call; the
	// scheduler must read LastCall to dispatch it (wasm only).
	StatusHost
	// StatusTrap means the invocation trapped and is unrecoverable.
	StatusTrap
)

// Call is a reified suspended host call (spec.md §3 "Execution engine"):
// exposes the host-call's name, arguments, and the applet's memory view.
// Execution is resumed with the host call's single packed result through
// Engine.Resume, not through Call.
type Call interface {
	// Name is the host link name (e.g. "ces", "store.insert").
	Name() string
	// Args are the raw u32 parameters passed to the host call.
	Args() []uint32
	// NResults is the number of u32 results the host call must produce.
	NResults() int
	// Memory returns a view over the applet's linear memory.
	Memory() *memview.View
	// Instance identifies which applet instance made the call (always 0
	// in this single-applet core; kept for the multi-applet redesign
	// flagged in spec.md §9).
	Instance() uint32
}

// Engine is the uniform façade both execution-engine variants implement
// (spec.md §4.4).
type Engine interface {
	// Invoke calls the exported function name with args, expecting
	// nresults u32 results.
	Invoke(ctx context.Context, name string, args []uint32, nresults int) (Outcome, error)
	// Resume continues a suspended host call with its single packed
	// result. Only valid after Invoke/Resume returned StatusHost.
	Resume(ctx context.Context, result uint32) (Outcome, error)
	// LastCall returns the currently suspended call, if any.
	LastCall() (Call, bool)
	// Memory returns a view over the applet's full linear memory,
	// independent of any suspended call (needed outside host-call
	// dispatch, e.g. to seed an applet's Store handle at boot).
	Memory() *memview.View
	// Close releases the engine, allowing a new instance to be created.
	Close() error
}
