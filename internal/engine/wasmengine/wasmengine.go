// Package wasmengine implements the interpreted execution engine variant
// (spec.md §3/§4.4 "Interpreted") on top of wazero. wazero's host functions
// run synchronously on the same goroutine as the wasm call that invoked
// them, so a reified suspend/resume object (spec.md's Call) is modeled by
// running each top-level Invoke on a dedicated goroutine and handing off a
// "baton" over unbuffered channels: the host-function trampoline parks on a
// select after reporting the call to the scheduler, and only ever resumes
// wasm execution (or makes a nested call back into the applet, e.g. for
// `alloc`) while holding that baton — so exactly one goroutine is ever
// actually running code against the wazero module instance, mirroring the
// original interpreter's single-threaded, stack-is-data design
// (crates/interpreter/src/runtime.rs).
package wasmengine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/wasefire/wfcore/internal/engine"
	"github.com/wasefire/wfcore/internal/logging"
	"github.com/wasefire/wfcore/internal/memview"
)

// HostFunc describes one applet-callable host function to link into the
// "env" module (spec.md §4.4/§9 "Scheduler::new" linking host_funcs).
type HostFunc struct {
	Name     string
	Params   int
	NResults int // almost always 1; spec.md §4.1 packs every result in one i32
}

var instanceLive atomic.Bool

// Engine is the wazero-backed interpreted execution engine.
type Engine struct {
	runtime  wazero.Runtime
	mod      api.Module
	log      *logging.Logger
	mu       sync.Mutex // serializes Invoke/Resume against concurrent callers
	doneCh   chan outcomeMsg
	pending  *pendingCall
	closed   bool
}

type outcomeMsg struct {
	results []uint64
	err     error
}

type nestedRequest struct {
	name     string
	args     []uint64
	resultCh chan nestedResult
}

type nestedResult struct {
	results []uint64
	err     error
}

type pendingCall struct {
	name     string
	args     []uint32
	nresults int
	mod      api.Module
	resumeCh chan uint32
	nestedCh chan nestedRequest
}

func (c *pendingCall) Name() string   { return c.name }
func (c *pendingCall) Args() []uint32 { return c.args }
func (c *pendingCall) NResults() int  { return c.nresults }
func (c *pendingCall) Instance() uint32 { return 0 }

func (c *pendingCall) Memory() *memview.View {
	mem := c.mod.Memory()
	buf, ok := mem.Read(0, mem.Size())
	if !ok {
		buf = nil
	}
	return memview.New(buf, &nestedAllocator{call: c})
}

// nestedAllocator implements memview.Allocator by issuing a synchronous
// nested call back into the applet's exported "alloc" function, routed
// through the baton-holding goroutine (see package doc).
type nestedAllocator struct{ call *pendingCall }

func (a *nestedAllocator) Allocate(size, align uint32) (uint32, bool) {
	resultCh := make(chan nestedResult, 1)
	a.call.nestedCh <- nestedRequest{name: "alloc", args: []uint64{uint64(size), uint64(align)}, resultCh: resultCh}
	res := <-resultCh
	if res.err != nil || len(res.results) == 0 {
		return 0, false
	}
	return uint32(res.results[0]), true
}

// New compiles wasmBytes and instantiates it with hostFuncs linked into the
// "env" module. Only one Engine may be live process-wide at a time
// (spec.md §5 invariant (i)); a second call to New returns
// engine.ErrAlreadyRunning instead of panicking (spec.md §9 Design notes).
func New(ctx context.Context, wasmBytes []byte, memoryPages uint32, hostFuncs []HostFunc, log *logging.Logger) (*Engine, error) {
	if !instanceLive.CompareAndSwap(false, true) {
		return nil, engine.ErrAlreadyRunning
	}
	if log == nil {
		log = logging.Default()
	}
	cfg := wazero.NewRuntimeConfigInterpreter()
	if memoryPages > 0 {
		cfg = cfg.WithMemoryLimitPages(memoryPages)
	}
	rt := wazero.NewRuntimeWithConfig(ctx, cfg)
	e := &Engine{runtime: rt, log: log, doneCh: make(chan outcomeMsg, 1)}

	builder := rt.NewHostModuleBuilder("env")
	for _, hf := range hostFuncs {
		hf := hf
		params := make([]api.ValueType, hf.Params)
		for i := range params {
			params[i] = api.ValueTypeI32
		}
		nresults := hf.NResults
		if nresults == 0 {
			nresults = 1
		}
		results := make([]api.ValueType, nresults)
		for i := range results {
			results[i] = api.ValueTypeI32
		}
		builder = builder.NewFunctionBuilder().
			WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
				e.handleHostCall(ctx, mod, hf.Name, hf.Params, nresults, stack)
			}), params, results).
			Export(hf.Name)
	}
	if _, err := builder.Instantiate(ctx); err != nil {
		instanceLive.Store(false)
		return nil, fmt.Errorf("wasmengine: linking host module: %w", err)
	}

	compiled, err := rt.CompileModule(ctx, wasmBytes)
	if err != nil {
		instanceLive.Store(false)
		return nil, fmt.Errorf("wasmengine: compiling module: %w", err)
	}
	modCfg := wazero.NewModuleConfig()
	mod, err := rt.InstantiateModule(ctx, compiled, modCfg)
	if err != nil {
		instanceLive.Store(false)
		return nil, fmt.Errorf("wasmengine: instantiating module: %w", err)
	}
	e.mod = mod
	return e, nil
}

// handleHostCall runs on the wasm-executing goroutine whenever the applet
// calls a linked host function. It reports the call to whichever goroutine
// is waiting in Invoke/Resume, then parks holding the baton until that
// goroutine either resumes it or asks it to make a nested call.
func (e *Engine) handleHostCall(ctx context.Context, mod api.Module, name string, nparams, nresults int, stack []uint64) {
	args := make([]uint32, nparams)
	for i := 0; i < nparams; i++ {
		args[i] = uint32(stack[i])
	}
	pc := &pendingCall{
		name: name, args: args, nresults: nresults, mod: mod,
		resumeCh: make(chan uint32),
		nestedCh: make(chan nestedRequest),
	}
	e.pending = pc
	e.doneCh <- outcomeMsg{} // wake the waiting Invoke/Resume with a "Host" signal
	for {
		select {
		case result := <-pc.resumeCh:
			if nresults > 0 {
				stack[0] = uint64(result)
			}
			return
		case req := <-pc.nestedCh:
			results, err := mod.ExportedFunction(req.name).Call(ctx, req.args...)
			req.resultCh <- nestedResult{results: results, err: err}
		}
	}
}

// Invoke implements engine.Engine.
func (e *Engine) Invoke(ctx context.Context, name string, args []uint32, nresults int) (engine.Outcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pending != nil {
		return engine.Outcome{}, fmt.Errorf("wasmengine: instance already has a suspended call")
	}
	u64args := make([]uint64, len(args))
	for i, a := range args {
		u64args[i] = uint64(a)
	}
	go func() {
		results, err := e.mod.ExportedFunction(name).Call(ctx, u64args...)
		e.doneCh <- outcomeMsg{results: results, err: err}
	}()
	return e.awaitOutcome()
}

// Resume implements engine.Engine.
func (e *Engine) Resume(ctx context.Context, result uint32) (engine.Outcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	pc := e.pending
	if pc == nil {
		return engine.Outcome{}, fmt.Errorf("wasmengine: no suspended call to resume")
	}
	e.pending = nil
	pc.resumeCh <- result
	return e.awaitOutcome()
}

// awaitOutcome blocks for either the "host call happened" signal (pending
// is non-nil when this returns) or the top-level invocation's completion.
func (e *Engine) awaitOutcome() (engine.Outcome, error) {
	msg := <-e.doneCh
	if e.pending != nil {
		return engine.Outcome{Status: engine.StatusHost}, nil
	}
	if msg.err != nil {
		e.log.Warn("applet trapped", "error", msg.err)
		return engine.Outcome{Status: engine.StatusTrap}, fmt.Errorf("%w: %v", engine.ErrTrap, msg.err)
	}
	results := make([]uint32, len(msg.results))
	for i, r := range msg.results {
		results[i] = uint32(r)
	}
	return engine.Outcome{Status: engine.StatusDone, Results: results}, nil
}

// LastCall implements engine.Engine.
func (e *Engine) LastCall() (engine.Call, bool) {
	if e.pending == nil {
		return nil, false
	}
	return e.pending, true
}

// Memory implements engine.Engine.
func (e *Engine) Memory() *memview.View {
	mem := e.mod.Memory()
	buf, ok := mem.Read(0, mem.Size())
	if !ok {
		buf = nil
	}
	return memview.New(buf, nil)
}

// Close releases the engine and allows a new instance to be created.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	instanceLive.Store(false)
	return e.runtime.Close(context.Background())
}
