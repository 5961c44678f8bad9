package dispatch

import (
	"github.com/wasefire/wfcore/internal/board/platformprotocol"
	"github.com/wasefire/wfcore/internal/engine"
)

// RegisterPlatformProtocol wires "platform.vendor", the applet-facing
// vendor pass-through (spec.md §4.6 "board/platformprotocol"). Normal
// request/response traffic runs through internal/protocol directly against
// p, outside of applet-initiated calls.
func RegisterPlatformProtocol(t *Table, p platformprotocol.PlatformProtocol) {
	t.Register("platform.vendor", func(call engine.Call) (uint32, error) {
		args := call.Args()
		payload, err := call.Memory().Get(args[0], args[1])
		if err != nil {
			return 0, ErrTrap
		}
		if err := p.Vendor(payload); err != nil {
			return 0, ErrTrap
		}
		return 0, nil
	})
}
