// Package transport implements the stream-oriented host protocol
// transports (Unix domain socket, TCP) shared by internal/transport/unixsock
// and internal/transport/tcpsock: one accepted connection at a time, framed
// as a u32 little-endian length prefix followed by the payload, driving the
// Disabled → Accept → Ready → {Request, Process, Response} → Ready state
// machine from spec.md §4.7, grounded on
// crates/protocol-tokio/src/device.rs.
package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/wasefire/wfcore/internal/board/platformprotocol"
	"github.com/wasefire/wfcore/internal/logging"
)

// ErrInvalidState mirrors the upstream Code::InvalidState user error.
var ErrInvalidState = errors.New("transport: invalid state")

// maxFrame bounds a single request/response to guard against a
// misbehaving peer claiming an unbounded length prefix.
const maxFrame = 16 << 20

// state is the connection-independent half of the Rust State enum: Accept
// and Disabled don't carry a connection, Ready/Request/Process/Response
// only make sense while one is attached.
type state int

const (
	stateDisabled state = iota
	stateAccept
	stateReady
	stateRequest
	stateProcess
	stateResponse
)

// Listener is the subset of net.Listener a Pipe drives; unixsock and
// tcpsock each construct one over their respective net.Listen call.
type Listener interface {
	Accept() (net.Conn, error)
	Close() error
}

// Pipe manages one accepted connection at a time over a Listener,
// presenting the same Read/Write/Enable surface as
// board/platformprotocol.PlatformProtocol (spec.md §4.7).
type Pipe struct {
	listener Listener
	push     func()
	log      *logging.Logger

	mu       sync.Mutex
	state    state
	request  []byte
	response []byte
	notify   chan struct{}
	stop     chan struct{}
	conn     net.Conn
}

// New starts managing listener in a background goroutine. push is called
// (without the Pipe's lock held) whenever a complete request becomes
// available, so the caller can raise a scheduler event.
func New(listener Listener, push func(), log *logging.Logger) *Pipe {
	if log == nil {
		log = logging.Default()
	}
	p := &Pipe{
		listener: listener,
		push:     push,
		log:      log,
		notify:   make(chan struct{}, 1),
		stop:     make(chan struct{}),
	}
	go p.manageListener()
	return p
}

// Close stops the background goroutine and the listener.
func (p *Pipe) Close() error {
	close(p.stop)
	return p.listener.Close()
}

func (p *Pipe) wake() {
	select {
	case p.notify <- struct{}{}:
	default:
	}
}

// Enable moves Disabled → Accept.
func (p *Pipe) Enable() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != stateDisabled {
		return fmt.Errorf("transport: enable: %w", ErrInvalidState)
	}
	p.state = stateAccept
	p.wake()
	return nil
}

// Disable moves back to Disabled, dropping any active connection.
func (p *Pipe) Disable() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = stateDisabled
	if p.conn != nil {
		p.conn.Close()
		p.conn = nil
	}
	p.wake()
	return nil
}

// Read drains the in-flight request, moving Request → Process. Returns
// (nil, false, nil) while waiting for one; ErrInvalidState from Disabled or
// Process (spec.md: a second read before the first response is a caller
// error).
func (p *Pipe) Read() ([]byte, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch p.state {
	case stateDisabled, stateProcess:
		return nil, false, fmt.Errorf("transport: read: %w", ErrInvalidState)
	case stateAccept, stateReady, stateResponse:
		return nil, false, nil
	case stateRequest:
		request := p.request
		p.request = nil
		p.state = stateProcess
		p.wake()
		return request, true, nil
	default:
		return nil, false, nil
	}
}

// Write queues response, moving Process → Response. Only valid from
// Process.
func (p *Pipe) Write(response []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != stateProcess {
		return fmt.Errorf("transport: write: %w", ErrInvalidState)
	}
	p.response = append([]byte(nil), response...)
	p.state = stateResponse
	p.wake()
	return nil
}

// Vendor writes payload to the active connection out-of-band, bypassing
// the request/response framing (spec.md §4.6 "board/platformprotocol"). A
// no-op when no connection is attached.
func (p *Pipe) Vendor(payload []byte) error {
	p.mu.Lock()
	conn := p.conn
	p.mu.Unlock()
	if conn == nil {
		return nil
	}
	return writeFrame(conn, payload)
}

func (p *Pipe) manageListener() {
	for {
		p.mu.Lock()
		enabled := p.state != stateDisabled
		p.mu.Unlock()
		if !enabled {
			select {
			case <-p.notify:
				continue
			case <-p.stop:
				return
			}
		}

		conn, err := p.acceptOne()
		if err != nil {
			select {
			case <-p.stop:
				return
			default:
				p.log.Warn("accept failed", "error", err)
				continue
			}
		}
		if conn == nil {
			continue // disabled again before a connection arrived
		}

		p.mu.Lock()
		if p.state == stateAccept {
			p.state = stateReady
			p.conn = conn
		} else {
			conn.Close()
			p.mu.Unlock()
			continue
		}
		p.mu.Unlock()

		p.manageConnection(conn)

		p.mu.Lock()
		conn.Close()
		p.conn = nil
		if p.state != stateDisabled {
			p.state = stateAccept
		}
		p.mu.Unlock()
	}
}

// acceptOne blocks on listener.Accept() and does not return early if the
// pipe is disabled while waiting: net.Listener has no cancellable Accept,
// so disabling only takes effect once the next connection lands (Close
// unblocks it by closing the listener).
func (p *Pipe) acceptOne() (net.Conn, error) {
	return p.listener.Accept()
}

func (p *Pipe) manageConnection(conn net.Conn) {
	for {
		p.mu.Lock()
		st := p.state
		p.mu.Unlock()
		switch st {
		case stateDisabled, stateAccept:
			return
		case stateReady:
			request, err := readFrame(conn)
			if err != nil {
				p.log.Warn("connection closed while waiting for a request", "error", err)
				return
			}
			p.log.Debug("received a request", "bytes", len(request))
			p.mu.Lock()
			if p.state == stateReady {
				p.request = request
				p.state = stateRequest
			}
			p.mu.Unlock()
			if p.push != nil {
				p.push()
			}
		case stateRequest, stateProcess:
			select {
			case <-p.notify:
			case <-p.stop:
				return
			}
		case stateResponse:
			p.mu.Lock()
			response := p.response
			p.response = nil
			p.state = stateReady
			p.mu.Unlock()
			p.log.Debug("writing a response", "bytes", len(response))
			if err := writeFrame(conn, response); err != nil {
				p.log.Warn("failed to write response", "error", err)
				return
			}
		}
	}
}

func readFrame(conn net.Conn) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(conn, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	if n > maxFrame {
		return nil, fmt.Errorf("transport: frame too large (%d bytes)", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(conn, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

var _ platformprotocol.PlatformProtocol = (*Pipe)(nil)

func writeFrame(conn net.Conn, payload []byte) error {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := conn.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := conn.Write(payload)
	return err
}
