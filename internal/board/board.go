// Package board declares the external-collaborator interfaces the
// platform-call dispatcher routes typed calls to (spec.md §4.6, §4.7): one
// interface per peripheral family, with a single in-memory reference
// implementation under board/memboard used by tests and the simulator
// binary. Real deployments are expected to implement these same
// interfaces against actual hardware (USB controllers, flash, a
// fingerprint sensor, ...); that wiring is outside this core.
package board

import (
	"context"
	"errors"

	"github.com/wasefire/wfcore/internal/event"
)

// ErrTrap marks a board-reported failure that must terminate the applet
// rather than be packed as an ABI error result (spec.md §4.6 "a handful of
// conditions ... are modeled as traps instead").
var ErrTrap = errors.New("board: trap")

// Board aggregates every peripheral family the dispatcher can route calls
// to. A concrete board need not implement all of it directly; memboard
// composes the per-family interfaces below.
type Board interface {
	// Wait blocks until at least one peripheral has an event ready, or ctx
	// is done, and returns that event. It is the board-side half of the
	// scheduler's idle wait (spec.md §4.5 "ActionWait").
	Wait(ctx context.Context) (event.Event, error)

	// Events exposes the board's event source for a non-blocking drain,
	// standing in for the ISR-fed lock-free board queue of spec.md §5: the
	// scheduler reads everything currently buffered here before it commits
	// to blocking in Wait.
	Events() <-chan event.Event
}
