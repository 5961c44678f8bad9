// Package protocol implements the host protocol state machine (spec.md
// §4.7): Disabled → Accept → Ready → {Request, Process, Response} → Ready,
// with a Normal/Tunnel sub-state for forwarding a transport verbatim to one
// applet. Every operation is wrapped in a versioned envelope
// (internal/wire.Versions) so a device built against an older/newer
// service range rejects out-of-range tags with NotImplemented, grounded on
// crates/scheduler/src/protocol.rs and crates/protocol/src/lib.rs.
package protocol

import (
	"bytes"
	"fmt"

	"github.com/wasefire/wfcore/internal/abierr"
	"github.com/wasefire/wfcore/internal/board/platformprotocol"
	"github.com/wasefire/wfcore/internal/event"
	"github.com/wasefire/wfcore/internal/logging"
	"github.com/wasefire/wfcore/internal/wire"
)

// Op identifies one of the six host protocol services (spec.md §4.7).
type Op byte

const (
	OpApiVersion Op = iota
	OpAppletRequest
	OpAppletResponse
	OpPlatformReboot
	OpAppletTunnel
	OpPlatformInfo

	opCount
)

// Versions is the range of Op values this implementation understands. A
// request tag outside [Min, Max) is rejected with CodeNotImplemented,
// mirroring the upstream Versions::contains check in crates/protocol.
var Versions = wire.Versions{Min: 0, Max: uint32(opCount)}

func (o Op) supported() bool { return uint32(o) >= Versions.Min && uint32(o) < Versions.Max }

// Applet is the scheduler-side bridge a Handler delivers AppletRequest and
// AppletResponse traffic through, grounded on Scheduler::applet's
// put_request/get_response pair in crates/scheduler/src/protocol.rs.
type Applet interface {
	// PutRequest delivers request to the running applet's request slot.
	PutRequest(request []byte) error
	// PutResponse delivers a just-arrived applet response. Returns
	// ErrSuperseded if the applet had already moved on to a new request,
	// in which case the response is discarded rather than treated as an
	// error (spec.md §5 "Cancellation & timeouts").
	PutResponse(response []byte) error
	// GetResponse drains the applet's response slot, if one is ready.
	GetResponse() (response []byte, ok bool, err error)
}

// ErrSuperseded is returned by Applet.PutResponse when the response being
// delivered belongs to a request the applet has already been given a new
// one for.
var ErrSuperseded = fmt.Errorf("protocol: response superseded by a new request")

// Platform is the board-side reboot/info surface the PlatformReboot and
// PlatformInfo operations dispatch to.
type Platform interface {
	Reboot() error
	Info() (Info, error)
}

// Info is the device identification returned by PlatformInfo.
type Info struct {
	Version string
	Serial  []byte
}

// Mode distinguishes ordinary request/response framing from a raw
// byte-for-byte tunnel to one applet (spec.md §4.7 "Normal | Tunnel").
type Mode int

const (
	ModeNormal Mode = iota
	ModeTunnel
)

// State is the host protocol's Normal/Tunnel sub-state.
type State struct {
	Mode      Mode
	AppletID  uint32
	Delimiter []byte
}

// Handler owns the protocol state machine for one transport (spec.md §4.7:
// Disabled → Accept → Ready → {Request, Process, Response} → Ready).
// Enable/Disable toggle between Disabled and Accept/Ready; ProcessEvent
// drives a single Request→Process→Response cycle per board-reported event.
type Handler struct {
	transport platformprotocol.PlatformProtocol
	applet    Applet
	platform  Platform
	events    *event.Registry
	log       *logging.Logger

	enabled bool
	state   State
}

// New creates a Handler in the Disabled state.
func New(transport platformprotocol.PlatformProtocol, applet Applet, platform Platform, events *event.Registry, log *logging.Logger) *Handler {
	if log == nil {
		log = logging.Default()
	}
	return &Handler{transport: transport, applet: applet, platform: platform, events: events, log: log}
}

// Enable moves Disabled → Accept, arming the registry's protocol-event
// handler so Wait() reports incoming transport traffic.
func (h *Handler) Enable() error {
	h.enabled = true
	return h.events.Enable(event.Handler{Key: event.Key{Kind: event.KindProtocol}})
}

// Disable moves back to Disabled, tearing down the handler registration.
func (h *Handler) Disable() error {
	h.enabled = false
	return h.events.Disable(event.Key{Kind: event.KindProtocol})
}

// Enabled reports whether the handler is in Accept/Ready, as opposed to
// Disabled.
func (h *Handler) Enabled() bool { return h.enabled }

// ShouldProcess reports whether e is the protocol-readiness event this
// Handler reacts to (spec.md §4.7, mirroring should_process_event).
func (h *Handler) ShouldProcess(e event.Event) bool { return e.Kind == event.KindProtocol }

// ProcessEvent runs one Ready → Request → Process → Response → Ready cycle:
// it reads the pending request off the transport, routes it through the
// Normal/Tunnel sub-state, and writes a response back (spec.md §4.7,
// grounded on protocol::process_event).
func (h *Handler) ProcessEvent() {
	if !h.enabled {
		return
	}
	request, ok, err := h.transport.Read()
	if err != nil {
		h.log.Warn("failed to read platform protocol request", "error", err)
		return
	}
	if !ok {
		h.log.Warn("expected platform protocol request, but found none")
		return
	}

	if h.state.Mode == ModeTunnel {
		if bytes.Equal(request, h.state.Delimiter) {
			h.state = State{Mode: ModeNormal}
			h.reply(OpAppletTunnel, nil, nil)
			return
		}
		if err := h.applet.PutRequest(request); err != nil {
			h.log.Warn("failed to put tunneled request", "error", err)
			h.replyError(err)
		}
		return
	}

	op, body, err := decodeRequest(request)
	if err != nil {
		h.log.Warn("failed to deserialize platform protocol request", "error", err)
		h.replyError(err)
		return
	}
	if !op.supported() {
		h.replyError(abierr.Internal(abierr.CodeNotImplemented))
		return
	}

	result, resultErr := h.dispatch(op, body)
	h.reply(op, result, resultErr)
}

func (h *Handler) dispatch(op Op, body []byte) ([]byte, error) {
	switch op {
	case OpApiVersion:
		w := wire.NewWriter()
		w.PutVersions(Versions)
		return w.Bytes(), nil
	case OpAppletRequest:
		if err := h.applet.PutRequest(body); err != nil {
			return nil, err
		}
		return nil, nil
	case OpAppletResponse:
		response, ok, err := h.applet.GetResponse()
		if err != nil {
			return nil, err
		}
		w := wire.NewWriter()
		if ok {
			w.PutTag(1)
			w.PutBytes(response)
		} else {
			w.PutTag(0)
		}
		return w.Bytes(), nil
	case OpPlatformReboot:
		if h.platform == nil {
			return nil, abierr.Internal(abierr.CodeNotImplemented)
		}
		if err := h.platform.Reboot(); err != nil {
			return nil, err
		}
		return nil, nil
	case OpAppletTunnel:
		if h.state.Mode != ModeNormal {
			return nil, abierr.Internal(abierr.CodeBadState)
		}
		r := wire.NewReader(body)
		appletID, err := r.U32()
		if err != nil {
			return nil, fmt.Errorf("protocol: applet tunnel: %w", err)
		}
		delimiter, err := r.Bytes()
		if err != nil {
			return nil, fmt.Errorf("protocol: applet tunnel: %w", err)
		}
		h.state = State{Mode: ModeTunnel, AppletID: appletID, Delimiter: append([]byte(nil), delimiter...)}
		return nil, nil
	case OpPlatformInfo:
		if h.platform == nil {
			return nil, abierr.Internal(abierr.CodeNotImplemented)
		}
		info, err := h.platform.Info()
		if err != nil {
			return nil, err
		}
		w := wire.NewWriter()
		w.PutString(info.Version)
		w.PutBytes(info.Serial)
		return w.Bytes(), nil
	default:
		return nil, abierr.Internal(abierr.CodeNotImplemented)
	}
}

// PutResponse delivers the applet's response for the in-flight request,
// completing the Process → Response transition (spec.md §5 "Cancellation &
// timeouts": a late response for a superseded request is swallowed, not
// an error, mirroring put_response's InvalidState handling).
func (h *Handler) PutResponse(response []byte) error {
	if err := h.applet.PutResponse(response); err != nil {
		if err == ErrSuperseded {
			// The response was discarded because the applet already moved
			// on to a new request; tell the scheduler there's a fresh
			// protocol event to process instead of failing.
			h.events.Push(event.Event{Kind: event.KindProtocol})
			return nil
		}
		return err
	}
	if h.state.Mode != ModeTunnel {
		return nil
	}
	tunneled, ok, err := h.applet.GetResponse()
	if err != nil {
		return err
	}
	if !ok {
		h.log.Error("failed to read response back")
		return abierr.Internal(abierr.CodeBadState)
	}
	return h.transport.Write(tunneled)
}

func (h *Handler) reply(op Op, result []byte, err error) {
	w := wire.NewWriter()
	if err != nil {
		w.PutTag(1)
		encodeError(w, err)
	} else {
		w.PutTag(0)
		w.PutTag(byte(op))
		w.PutFixed(result)
	}
	if werr := h.transport.Write(w.Bytes()); werr != nil {
		h.log.Warn("failed to send platform protocol response", "error", werr)
	}
}

func (h *Handler) replyError(err error) { h.reply(0, nil, err) }

func encodeError(w *wire.Writer, err error) {
	if abiErr, ok := err.(abierr.Error); ok {
		w.PutTag(abiErr.Space())
		w.PutU32(uint32(abiErr.Code()))
		return
	}
	w.PutTag(uint8(abierr.SpaceInternal))
	w.PutU32(uint32(abierr.CodeGeneric))
}

// decodeRequest splits a raw request into its operation tag and remaining
// body.
func decodeRequest(data []byte) (Op, []byte, error) {
	r := wire.NewReader(data)
	tag, err := r.Tag()
	if err != nil {
		return 0, nil, fmt.Errorf("protocol: request tag: %w", err)
	}
	return Op(tag), data[1:], nil
}
