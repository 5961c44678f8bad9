// Package nativeengine implements the native execution engine variant
// (spec.md §4.4 "Native"): dynamically linked code loaded into a fixed
// memory region, fully synchronous, no trampolines and no suspend/resume.
// Dynamic loading uses the standard library's plugin package, the closest
// analogue available to "native code loaded at runtime" without reaching
// for a third-party dynamic-loading library (none of the retrieved
// examples carry one; see the grounding ledger).
package nativeengine

import (
	"context"
	"errors"
	"fmt"
	"plugin"
	"sync"
	"sync/atomic"

	"github.com/wasefire/wfcore/internal/constants"
	"github.com/wasefire/wfcore/internal/engine"
	"github.com/wasefire/wfcore/internal/memview"
)

var instanceLive atomic.Bool

// Applet is the interface a native applet's compiled plugin must export
// under the symbol name "Applet". Unlike the wasm engine, a native applet
// has no separate "export table" to reflect into at link time: Call is the
// single entry point through which the engine runs the applet's functions.
type Applet interface {
	Call(name string, args []uint32) ([]uint32, error)
}

// Engine is the plugin-backed native execution engine.
type Engine struct {
	plug   *plugin.Plugin
	applet Applet

	mu        sync.Mutex
	mem       []byte
	allocNext uint32
	closed    bool
}

// New loads the applet plugin at path. Only one Engine may be live
// process-wide at a time (spec.md §5 invariant (i)).
func New(path string) (*Engine, error) {
	if !instanceLive.CompareAndSwap(false, true) {
		return nil, engine.ErrAlreadyRunning
	}
	p, err := plugin.Open(path)
	if err != nil {
		instanceLive.Store(false)
		return nil, fmt.Errorf("nativeengine: opening plugin: %w", err)
	}
	sym, err := p.Lookup("Applet")
	if err != nil {
		instanceLive.Store(false)
		return nil, fmt.Errorf("nativeengine: plugin is missing the Applet symbol: %w", err)
	}
	applet, ok := sym.(Applet)
	if !ok {
		instanceLive.Store(false)
		return nil, errors.New("nativeengine: Applet symbol does not implement nativeengine.Applet")
	}
	return &Engine{
		plug:   p,
		applet: applet,
		mem:    make([]byte, constants.NativeMemorySize),
	}, nil
}

// Invoke implements engine.Engine. Native calls never suspend: they either
// run to completion or trap.
func (e *Engine) Invoke(ctx context.Context, name string, args []uint32, nresults int) (outcome engine.Outcome, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			outcome = engine.Outcome{Status: engine.StatusTrap}
			err = fmt.Errorf("%w: %v", engine.ErrTrap, r)
		}
	}()
	results, callErr := e.applet.Call(name, args)
	if callErr != nil {
		return engine.Outcome{Status: engine.StatusTrap}, fmt.Errorf("%w: %v", engine.ErrTrap, callErr)
	}
	return engine.Outcome{Status: engine.StatusDone, Results: results}, nil
}

// Resume implements engine.Engine. The native engine never returns
// StatusHost, so there is never anything to resume.
func (e *Engine) Resume(ctx context.Context, result uint32) (engine.Outcome, error) {
	return engine.Outcome{}, errors.New("nativeengine: engine never suspends, nothing to resume")
}

// LastCall implements engine.Engine. Always false: the native engine has no
// suspended call state.
func (e *Engine) LastCall() (engine.Call, bool) { return nil, false }

// Memory implements engine.Engine, returning a view over the fixed-size
// native memory region with a simple bump allocator.
func (e *Engine) Memory() *memview.View {
	return memview.New(e.mem, &bumpAllocator{e: e})
}

// bumpAllocator never frees; a native applet's allocation pattern (host
// calls handing back small buffers) never needs it to.
type bumpAllocator struct{ e *Engine }

func (a *bumpAllocator) Allocate(size, align uint32) (uint32, bool) {
	a.e.mu.Lock()
	defer a.e.mu.Unlock()
	ptr := a.e.allocNext
	if align > 0 {
		if rem := ptr % align; rem != 0 {
			ptr += align - rem
		}
	}
	end := uint64(ptr) + uint64(size)
	if end > uint64(len(a.e.mem)) {
		return 0, false
	}
	a.e.allocNext = uint32(end)
	return ptr, true
}

// Close releases the engine, allowing a new instance to be created.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	instanceLive.Store(false)
	return nil
}
