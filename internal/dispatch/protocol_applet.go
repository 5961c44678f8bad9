package dispatch

import (
	"github.com/wasefire/wfcore/internal/abierr"
	"github.com/wasefire/wfcore/internal/engine"
	"github.com/wasefire/wfcore/internal/event"
	"github.com/wasefire/wfcore/internal/protocol"
)

// RegisterAppletProtocol wires the applet's half of the host protocol
// request/response mailbox (spec.md §4.7): "platform.protocol.enable" and
// "platform.protocol.disable" subscribe the applet to the Protocol event
// AppletRequest deposits, and "protocol.applet_request.read" /
// "protocol.applet_response.write" let the applet fetch the pending
// request and hand its answer back through handler (so tunnel forwarding
// and superseded-response handling run the same path a normal transport
// read would).
func RegisterAppletProtocol(t *Table, bridge *protocol.AppletBridge, handler *protocol.Handler, reg *event.Registry) {
	t.Register("platform.protocol.enable", func(call engine.Call) (uint32, error) {
		args := call.Args()
		h := event.Handler{Key: event.Key{Kind: event.KindProtocol}, Func: args[0], Data: args[1]}
		if err := reg.Enable(h); err != nil {
			return 0, err
		}
		return 0, nil
	})

	t.Register("platform.protocol.disable", func(call engine.Call) (uint32, error) {
		if err := reg.Disable(event.Key{Kind: event.KindProtocol}); err != nil {
			return 0, err
		}
		return 0, nil
	})

	t.Register("protocol.applet_request.read", func(call engine.Call) (uint32, error) {
		args := call.Args()
		data := bridge.Pending()
		if data == nil {
			return 0, nil
		}
		if err := call.Memory().AllocCopy(args[0], args[1], data); err != nil {
			return 0, ErrTrap
		}
		return uint32(len(data)), nil
	})

	t.Register("protocol.applet_response.write", func(call engine.Call) (uint32, error) {
		args := call.Args()
		data, err := call.Memory().Get(args[0], args[1])
		if err != nil {
			return 0, ErrTrap
		}
		if werr := handler.PutResponse(data); werr != nil {
			return 0, abierr.Internal(abierr.CodeGeneric)
		}
		return 0, nil
	})
}
