// Package usb implements the host protocol's USB transport state machine
// (spec.md §4.7 "USB transport"): Disabled → WaitRequest → ReceiveRequest →
// RequestReady → WaitResponse → SendResponse → WaitRequest, built on top of
// internal/packet's 64-byte framing and an abstract Endpoint so it runs
// against both a real USB bulk pair and the in-memory simulator, grounded
// on crates/protocol-usb/src/device.rs.
package usb

import (
	"errors"
	"fmt"

	"github.com/wasefire/wfcore/internal/constants"
	"github.com/wasefire/wfcore/internal/logging"
	"github.com/wasefire/wfcore/internal/packet"
)

// ErrInvalidState mirrors the upstream Code::InvalidState user error: the
// caller invoked Read/Write/Enable in a state that does not support it.
var ErrInvalidState = errors.New("usb: invalid state")

// Endpoint is the bulk IN/OUT pair a concrete USB stack exposes. Reads and
// writes always move exactly one constants.PacketSize packet.
type Endpoint interface {
	// ReadPacket returns the next available OUT packet, or ok=false if none
	// is pending yet.
	ReadPacket() (packet [constants.PacketSize]byte, ok bool, err error)
	// WritePacket sends one IN packet. Returns false if the endpoint would
	// block (the caller retries on the next poll), grounded on the
	// upstream UsbError::WouldBlock handling.
	WritePacket(packet [constants.PacketSize]byte) (sent bool, err error)
}

type phase int

const (
	phaseDisabled phase = iota
	phaseWaitRequest
	phaseReceiveRequest
	phaseRequestReady
	phaseWaitResponse
	phaseSendResponse
)

// Rpc drives one USB RPC endpoint pair through the protocol's
// request/response cycle (spec.md §4.7).
type Rpc struct {
	ep       Endpoint
	log      *logging.Logger
	phase    phase
	decoder  packet.Decoder
	request  []byte
	notified bool
	outgoing [][constants.PacketSize]byte
}

// New creates an Rpc in the Disabled state.
func New(ep Endpoint, log *logging.Logger) *Rpc {
	if log == nil {
		log = logging.Default()
	}
	return &Rpc{ep: ep, log: log, phase: phaseDisabled}
}

// Enable moves Disabled → WaitRequest. Any other state is a caller error.
func (r *Rpc) Enable() error {
	if r.phase != phaseDisabled {
		return fmt.Errorf("usb: enable: %w", ErrInvalidState)
	}
	r.phase = phaseWaitRequest
	return nil
}

// Reset returns to WaitRequest from any enabled state, mirroring the
// upstream UsbClass::reset hook fired on a USB bus reset. Disabled stays
// Disabled.
func (r *Rpc) Reset() {
	if r.phase != phaseDisabled {
		r.phase = phaseWaitRequest
		r.decoder.Reset()
	}
}

// Read drains a fully reassembled request, moving RequestReady →
// WaitResponse. Returns (nil, false, nil) while still receiving; errors
// with ErrInvalidState from WaitResponse or Disabled (spec.md: a second
// read before the first response is a caller error).
func (r *Rpc) Read() ([]byte, bool, error) {
	switch r.phase {
	case phaseRequestReady:
		request := r.request
		r.request = nil
		r.phase = phaseWaitResponse
		r.log.Debug("received a message", "bytes", len(request))
		return request, true, nil
	case phaseWaitRequest, phaseReceiveRequest, phaseSendResponse:
		return nil, false, nil
	default:
		return nil, false, fmt.Errorf("usb: read: %w", ErrInvalidState)
	}
}

// Write starts sending response, moving WaitResponse → SendResponse. Only
// valid from WaitResponse.
func (r *Rpc) Write(response []byte) error {
	if r.phase != phaseWaitResponse {
		return fmt.Errorf("usb: write: %w", ErrInvalidState)
	}
	r.outgoing = packet.Encode(response)
	r.log.Debug("sending a message", "bytes", len(response), "packets", len(r.outgoing))
	r.phase = phaseSendResponse
	r.pumpSend()
	return nil
}

// Poll drives the endpoint: it drains any pending OUT packet into the
// decoder and, while in SendResponse, keeps pushing queued IN packets.
// Callers invoke this once per scheduler tick, mirroring
// endpoint_out/endpoint_in_complete in the upstream UsbClass impl.
func (r *Rpc) Poll() {
	r.pumpReceive()
	r.pumpSend()
}

// Notify reports whether a newly completed request should raise a
// protocol-ready event, and clears the pending flag if so (spec.md
// "RequestReady fires exactly one event").
func (r *Rpc) Notify() bool {
	if r.phase == phaseRequestReady && !r.notified {
		r.notified = true
		return true
	}
	return false
}

func (r *Rpc) pumpReceive() {
	if r.phase == phaseDisabled {
		return
	}
	p, ok, err := r.ep.ReadPacket()
	if err != nil || !ok {
		return
	}
	if r.phase != phaseReceiveRequest {
		r.phase = phaseReceiveRequest
		r.decoder.Reset()
	}
	msg, done, err := r.decoder.Push(p)
	if err != nil {
		r.log.Warn("received invalid packet", "error", err)
		r.phase = phaseWaitRequest
		return
	}
	if done {
		r.log.Trace("received a message", "bytes", len(msg))
		r.request = msg
		r.notified = false
		r.phase = phaseRequestReady
		return
	}
	r.log.Trace("received a packet")
}

func (r *Rpc) pumpSend() {
	if r.phase == phaseDisabled || r.phase != phaseSendResponse {
		return
	}
	if len(r.outgoing) == 0 {
		r.phase = phaseWaitRequest
		return
	}
	next := r.outgoing[0]
	sent, err := r.ep.WritePacket(next)
	if err != nil {
		r.log.Warn("failed to send packet", "error", err)
		r.phase = phaseWaitRequest
		return
	}
	if !sent {
		r.log.Warn("failed to send packet, retrying later")
		return
	}
	r.outgoing = r.outgoing[1:]
	r.log.Trace("sent the next packet", "remaining", len(r.outgoing))
	if len(r.outgoing) == 0 {
		r.phase = phaseWaitRequest
	}
}
