package protocol

import (
	"sync"

	"github.com/wasefire/wfcore/internal/event"
)

// AppletBridge implements Applet by holding the single running applet's
// request/response mailbox (spec.md §4.7 "AppletRequest"/"AppletResponse").
// PutRequest wakes the applet through the ordinary event path: the applet
// is expected to have enabled a Protocol handler once at boot (mirroring
// "pushes a Protocol event" in spec.md §4.7), then reads the pending bytes
// and writes its answer back through a pair of platform calls the
// dispatcher registers against this bridge.
//
// A response is accepted only if the applet is still answering the most
// recently deposited request: requestGen advances on every PutRequest,
// and readGen records which generation the applet last fetched via
// Pending. A response against a stale generation is superseded (spec.md §5
// "Cancellation & timeouts"), grounded on crates/scheduler/src/protocol.rs's
// generation-tagged request slot.
type AppletBridge struct {
	events *event.Registry

	mu         sync.Mutex
	requestGen uint64
	readGen    uint64
	request    []byte
	response   []byte
	haveResp   bool
}

// NewAppletBridge creates an empty bridge that wakes the applet through
// events.
func NewAppletBridge(events *event.Registry) *AppletBridge {
	return &AppletBridge{events: events}
}

// PutRequest implements Applet.
func (b *AppletBridge) PutRequest(request []byte) error {
	b.mu.Lock()
	b.requestGen++
	b.request = append([]byte(nil), request...)
	b.haveResp = false
	b.response = nil
	b.mu.Unlock()
	b.events.Push(event.Event{Kind: event.KindProtocol})
	return nil
}

// PutResponse implements Applet. It is called once the applet's
// "protocol.applet_response.write" call has copied its answer out of
// linear memory.
func (b *AppletBridge) PutResponse(response []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.readGen != b.requestGen {
		return ErrSuperseded
	}
	b.response = append([]byte(nil), response...)
	b.haveResp = true
	return nil
}

// GetResponse implements Applet.
func (b *AppletBridge) GetResponse() ([]byte, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.haveResp {
		return nil, false, nil
	}
	return b.response, true, nil
}

// Pending returns the current request bytes for the applet's
// "protocol.applet_request.read" call, and marks this generation as read
// so a subsequent PutResponse against it is accepted.
func (b *AppletBridge) Pending() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.readGen = b.requestGen
	return b.request
}

var _ Applet = (*AppletBridge)(nil)
