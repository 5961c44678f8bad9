// Package wasefire provides the main API for booting a Wasefire applet
// platform: one execution engine, one board, and the scheduler loop that
// ties them together.
package wasefire

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/wasefire/wfcore/internal/board"
	"github.com/wasefire/wfcore/internal/board/memboard"
	"github.com/wasefire/wfcore/internal/board/platformprotocol"
	"github.com/wasefire/wfcore/internal/board/uart"
	"github.com/wasefire/wfcore/internal/constants"
	"github.com/wasefire/wfcore/internal/dispatch"
	"github.com/wasefire/wfcore/internal/engine"
	"github.com/wasefire/wfcore/internal/engine/nativeengine"
	"github.com/wasefire/wfcore/internal/engine/wasmengine"
	"github.com/wasefire/wfcore/internal/event"
	"github.com/wasefire/wfcore/internal/logging"
	"github.com/wasefire/wfcore/internal/protocol"
	"github.com/wasefire/wfcore/internal/scheduler"
	"github.com/wasefire/wfcore/internal/transport/tcpsock"
	"github.com/wasefire/wfcore/internal/transport/unixsock"
	"github.com/wasefire/wfcore/internal/uerrors"
)

// EngineKind selects which execution engine variant backs a Platform.
type EngineKind int

const (
	// EngineInterpreted runs the applet through wazero (internal/engine/wasmengine).
	EngineInterpreted EngineKind = iota
	// EngineNative dlopens a precompiled shared object (internal/engine/nativeengine).
	EngineNative
)

// TransportKind selects the host protocol transport a Platform listens on.
type TransportKind int

const (
	// TransportNone disables the host protocol entirely; only the applet
	// can be driven, by injecting board events directly (test use).
	TransportNone TransportKind = iota
	// TransportUnix listens on a Unix domain socket (internal/transport/unixsock).
	TransportUnix
	// TransportTCP listens on a TCP socket (internal/transport/tcpsock).
	TransportTCP
)

// Params configures a Platform boot, mirroring the shape of the teacher's
// DeviceParams: one struct holding the applet payload plus every knob that
// used to be a separate constructor argument.
type Params struct {
	// Engine selects the execution engine variant.
	Engine EngineKind
	// WasmBytes is the applet module, required when Engine is EngineInterpreted.
	WasmBytes []byte
	// MemoryPages bounds the applet's linear memory for the interpreted
	// engine, in 64KiB pages (0 defaults to constants.DefaultMemoryPages).
	MemoryPages uint32
	// NativePluginPath is the applet shared object, required when Engine
	// is EngineNative.
	NativePluginPath string

	// Transport selects the host protocol transport.
	Transport TransportKind
	// TransportAddr is the listen path (TransportUnix) or address
	// (TransportTCP). Defaults to constants.DefaultUnixSocketPath or
	// constants.DefaultTCPAddress when empty.
	TransportAddr string

	// NumUart is the number of simulated UART peripherals the board exposes.
	NumUart int
	// FingerprintTemplateLength is the simulated fingerprint matcher's
	// template size in bytes.
	FingerprintTemplateLength int

	// Info is returned to the host by the PlatformInfo protocol operation.
	Info protocol.Info
	// Reboot is invoked by the PlatformReboot protocol operation. A nil
	// Reboot is a no-op, matching a simulator that has nothing to reset.
	Reboot func() error
}

// DefaultParams returns Params with the simulator's usual defaults: the
// interpreted engine, one UART, no fingerprint templates, no transport.
// Callers set WasmBytes (or switch to EngineNative) and a Transport before
// calling Boot.
func DefaultParams() Params {
	return Params{
		Engine:      EngineInterpreted,
		MemoryPages: constants.DefaultMemoryPages,
		NumUart:     1,
		Info:        protocol.Info{Version: "dev"},
	}
}

// Options carries cross-cutting knobs that configure the host process
// rather than the applet (spec.md's ambient-stack split between leaf
// libraries and the dispatcher/protocol boundary).
type Options struct {
	// Logger receives every component's log output; if nil, logging.Default() is used.
	Logger *logging.Logger
	// Observer, if set, receives every invocation and host-call observation
	// alongside the platform's own Metrics — wiring a RecordingObserver here
	// lets tests assert on what the scheduler did without reading Metrics.
	Observer Observer
}

// hostPlatform adapts Params' Info/Reboot into protocol.Platform.
type hostPlatform struct {
	info   protocol.Info
	reboot func() error
}

func (p *hostPlatform) Info() (protocol.Info, error) { return p.info, nil }

func (p *hostPlatform) Reboot() error {
	if p.reboot == nil {
		return nil
	}
	return p.reboot()
}

// Platform owns one booted applet instance: its engine, board, dispatch
// table, event registry, optional host protocol transport, and the
// scheduler loop driving all of it. It is the wasefire analogue of the
// teacher's Device.
type Platform struct {
	board     board.Board
	events    *event.Registry
	table     *dispatch.Table
	engine    engine.Engine
	scheduler *scheduler.Scheduler
	protocol  *protocol.Handler
	transport io.Closer

	metrics *Metrics
	log     *logging.Logger

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
}

// hostFuncs enumerates every applet-callable link name and its arity, for
// the interpreted engine's import linking (spec.md §4.4/§9 "linking
// host_funcs"). It must stay in sync with every dispatch.Register* call
// Boot makes below; the native engine doesn't need this since its applets
// call back in through dlopen'd symbols rather than wasm imports.
var hostFuncs = []wasmengine.HostFunc{
	{Name: "crypto.ec.generate", Params: 2, NResults: 1},
	{Name: "crypto.ec.public", Params: 3, NResults: 1},
	{Name: "crypto.ec.sign", Params: 5, NResults: 1},
	{Name: "crypto.ec.verify", Params: 5, NResults: 1},
	{Name: "crypto.ec.drop_private", Params: 2, NResults: 1},
	{Name: "crypto.ec.export_private", Params: 3, NResults: 1},
	{Name: "crypto.ec.import_private", Params: 3, NResults: 1},

	{Name: "crypto.ecdh.generate", Params: 2, NResults: 1},
	{Name: "crypto.ecdh.public", Params: 3, NResults: 1},
	{Name: "crypto.ecdh.shared", Params: 4, NResults: 1},
	{Name: "crypto.ecdh.drop_private", Params: 2, NResults: 1},
	{Name: "crypto.ecdh.drop_shared", Params: 2, NResults: 1},

	{Name: "crypto.ed25519.generate", Params: 1, NResults: 1},
	{Name: "crypto.ed25519.public", Params: 2, NResults: 1},
	{Name: "crypto.ed25519.sign", Params: 4, NResults: 1},
	{Name: "crypto.ed25519.verify", Params: 4, NResults: 1},
	{Name: "crypto.ed25519.drop_private", Params: 1, NResults: 1},

	{Name: "event.enable_button", Params: 3, NResults: 1},
	{Name: "event.disable_button", Params: 1, NResults: 1},
	{Name: "event.enable_timer", Params: 3, NResults: 1},
	{Name: "event.disable_timer", Params: 1, NResults: 1},

	{Name: "fingerprint.enroll", Params: 0, NResults: 1},
	{Name: "fingerprint.enroll.result", Params: 2, NResults: 1},
	{Name: "fingerprint.abort_enroll", Params: 0, NResults: 1},
	{Name: "fingerprint.identify", Params: 2, NResults: 1},
	{Name: "fingerprint.identify.result", Params: 2, NResults: 1},
	{Name: "fingerprint.abort_identify", Params: 0, NResults: 1},
	{Name: "fingerprint.delete_template", Params: 2, NResults: 1},
	{Name: "fingerprint.list_templates", Params: 2, NResults: 1},

	{Name: "platform.vendor", Params: 2, NResults: 1},
	{Name: "platform.protocol.enable", Params: 2, NResults: 1},
	{Name: "platform.protocol.disable", Params: 0, NResults: 1},
	{Name: "protocol.applet_request.read", Params: 2, NResults: 1},
	{Name: "protocol.applet_response.write", Params: 2, NResults: 1},

	{Name: "store.insert", Params: 3, NResults: 1},
	{Name: "store.find", Params: 3, NResults: 1},
	{Name: "store.remove", Params: 1, NResults: 1},

	{Name: "uart.start", Params: 1, NResults: 1},
	{Name: "uart.stop", Params: 1, NResults: 1},
	{Name: "uart.set_baudrate", Params: 2, NResults: 1},
	{Name: "uart.write", Params: 3, NResults: 1},
	{Name: "uart.read", Params: 3, NResults: 1},

	{Name: "usb_serial.read", Params: 2, NResults: 1},
	{Name: "usb_serial.write", Params: 2, NResults: 1},
	{Name: "usb_serial.set_events_enabled", Params: 1, NResults: 1},
}

// Boot wires a full Platform from params and starts its host protocol
// transport (if any), without yet running the applet — that happens on
// the first call to Run.
//
// Example:
//
//	params := wasefire.DefaultParams()
//	params.WasmBytes = appletBytes
//	platform, err := wasefire.Boot(context.Background(), params, nil)
func Boot(ctx context.Context, params Params, options *Options) (*Platform, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if options == nil {
		options = &Options{}
	}
	log := options.Logger
	if log == nil {
		log = logging.Default()
	}

	memoryPages := params.MemoryPages
	if memoryPages == 0 {
		memoryPages = constants.DefaultMemoryPages
	}

	b := memboard.New(params.NumUart, params.FingerprintTemplateLength)
	events := event.NewRegistry(log)
	table := dispatch.NewTable()

	uarts := make([]uart.Uart, params.NumUart)
	for i := range uarts {
		uarts[i] = b.Uart(i)
	}
	dispatch.RegisterStore(table, b.Store())
	dispatch.RegisterUart(table, uarts)
	dispatch.RegisterUSBSerial(table, b.USBSerial())
	dispatch.RegisterFingerprint(table, b.Fingerprint(), events)
	dispatch.RegisterEvent(table, events)
	dispatch.RegisterECDSA(table)
	dispatch.RegisterECDH(table)
	dispatch.RegisterEd25519(table)
	dispatch.RegisterPlatformProtocol(table, b.PlatformProtocol())

	bridge := protocol.NewAppletBridge(events)
	hostPlat := &hostPlatform{info: params.Info, reboot: params.Reboot}

	var transportPeer platformprotocol.PlatformProtocol = b.PlatformProtocol()
	var closer io.Closer
	switch params.Transport {
	case TransportUnix:
		path := params.TransportAddr
		if path == "" {
			path = constants.DefaultUnixSocketPath
		}
		pipe, err := unixsock.Listen(path, b.SignalProtocolReady, log)
		if err != nil {
			return nil, uerrors.Wrap("boot", uerrors.CodeIOError, err)
		}
		transportPeer, closer = pipe, pipe
	case TransportTCP:
		addr := params.TransportAddr
		if addr == "" {
			addr = constants.DefaultTCPAddress
		}
		pipe, _, err := tcpsock.Listen(addr, b.SignalProtocolReady, log)
		if err != nil {
			return nil, uerrors.Wrap("boot", uerrors.CodeIOError, err)
		}
		transportPeer, closer = pipe, pipe
	case TransportNone:
	default:
		return nil, uerrors.New("boot", uerrors.CodeInvalidParams, fmt.Sprintf("unknown transport kind %d", params.Transport))
	}

	handler := protocol.New(transportPeer, bridge, hostPlat, events, log)
	dispatch.RegisterAppletProtocol(table, bridge, handler, events)
	if params.Transport != TransportNone {
		if err := handler.Enable(); err != nil {
			closeIfSet(closer)
			return nil, uerrors.Wrap("boot", uerrors.CodeIOError, err)
		}
	}

	eng, err := bootEngine(ctx, params, memoryPages, log)
	if err != nil {
		closeIfSet(closer)
		return nil, uerrors.Wrap("boot", uerrors.CodeIOError, err)
	}

	metrics := newMetrics()
	obs := Observer(newMetricsObserver(metrics))
	if options.Observer != nil {
		obs = fanoutObserver{metricsObs: obs, userObs: options.Observer}
	}
	sched := scheduler.New(b, events, table, eng, log, handler, obs)

	return &Platform{
		board:     b,
		events:    events,
		table:     table,
		engine:    eng,
		scheduler: sched,
		protocol:  handler,
		transport: closer,
		metrics:   metrics,
		log:       log,
	}, nil
}

func closeIfSet(c io.Closer) {
	if c != nil {
		c.Close()
	}
}

func bootEngine(ctx context.Context, params Params, memoryPages uint32, log *logging.Logger) (engine.Engine, error) {
	switch params.Engine {
	case EngineInterpreted:
		if len(params.WasmBytes) == 0 {
			return nil, uerrors.New("boot", uerrors.CodeInvalidParams, "EngineInterpreted requires WasmBytes")
		}
		return wasmengine.New(ctx, params.WasmBytes, memoryPages, hostFuncs, log)
	case EngineNative:
		if params.NativePluginPath == "" {
			return nil, uerrors.New("boot", uerrors.CodeInvalidParams, "EngineNative requires NativePluginPath")
		}
		return nativeengine.New(params.NativePluginPath)
	default:
		return nil, uerrors.New("boot", uerrors.CodeInvalidParams, fmt.Sprintf("unknown engine kind %d", params.Engine))
	}
}

// Run boots the applet (init, then main) and services events until ctx is
// canceled, Shutdown is called, or the applet traps. It returns
// scheduler.ErrTrapped (wrapped) on a trap and ctx.Err() on cancellation,
// exactly as internal/scheduler.Scheduler.Run does — Platform adds only
// lifecycle bookkeeping and metrics around that call. Run may only be
// called once per Platform.
func (p *Platform) Run(ctx context.Context) error {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return uerrors.New("run", uerrors.CodeInvalidState, "platform already running")
	}
	p.started = true
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.mu.Unlock()
	defer cancel()

	p.metrics.markStarted()
	err := p.scheduler.Run(runCtx)

	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()
	p.metrics.markStopped()
	if isTrap(err) {
		p.metrics.traps.Add(1)
	}
	return err
}

// Shutdown cancels the platform's run context, if Run has started, and
// closes its transport listener, if one is open. It does not close the
// execution engine: the interpreted engine enforces a single
// process-wide live instance (internal/engine/wasmengine's instanceLive)
// that a future Boot would refuse to share until Close releases it
// separately.
func (p *Platform) Shutdown() error {
	p.mu.Lock()
	cancel := p.cancel
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return closeErr(p.transport)
}

// Close does what Shutdown does and additionally releases the execution
// engine, for callers that want a fully torn-down Platform (mainly
// tests — the simulator binary just exits the process instead).
func (p *Platform) Close() error {
	shutdownErr := p.Shutdown()
	engineErr := p.engine.Close()
	if shutdownErr != nil {
		return shutdownErr
	}
	return engineErr
}

func closeErr(c io.Closer) error {
	if c == nil {
		return nil
	}
	return c.Close()
}

// State is the platform's coarse lifecycle state.
type State string

const (
	StateCreated State = "created"
	StateRunning State = "running"
	StateStopped State = "stopped"
)

// State returns the platform's current lifecycle state.
func (p *Platform) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case !p.started:
		return StateCreated
	case p.stopped:
		return StateStopped
	default:
		return StateRunning
	}
}

// Metrics returns the platform's metrics instance.
func (p *Platform) Metrics() *Metrics { return p.metrics }

// MetricsSnapshot returns a point-in-time snapshot of the platform's metrics.
func (p *Platform) MetricsSnapshot() MetricsSnapshot { return p.metrics.Snapshot() }

func isTrap(err error) bool {
	for err != nil {
		if err == scheduler.ErrTrapped {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
