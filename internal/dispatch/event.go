package dispatch

import (
	"github.com/wasefire/wfcore/internal/engine"
	"github.com/wasefire/wfcore/internal/event"
)

// RegisterEvent wires "event.enable_button", "event.disable_button",
// "event.enable_timer", and "event.disable_timer" against reg (spec.md §4.5
// "Handler"). Button/timer are representative of the uniform
// enable(key)/disable(key) shape. These four are the only handler
// registrations the dispatcher wires: uart.go and usbserial.go register no
// event handlers, and fingerprint.go only pushes events into reg.
func RegisterEvent(t *Table, reg *event.Registry) {
	t.Register("event.enable_button", func(call engine.Call) (uint32, error) {
		args := call.Args()
		key := event.Key{Kind: event.KindButton, ID: args[0]}
		h := event.Handler{Key: key, Func: args[1], Data: args[2]}
		if err := reg.Enable(h); err != nil {
			return 0, err
		}
		return 0, nil
	})

	t.Register("event.disable_button", func(call engine.Call) (uint32, error) {
		args := call.Args()
		key := event.Key{Kind: event.KindButton, ID: args[0]}
		if err := reg.Disable(key); err != nil {
			return 0, err
		}
		return 0, nil
	})

	t.Register("event.enable_timer", func(call engine.Call) (uint32, error) {
		args := call.Args()
		key := event.Key{Kind: event.KindTimer, ID: args[0]}
		h := event.Handler{Key: key, Func: args[1], Data: args[2]}
		if err := reg.Enable(h); err != nil {
			return 0, err
		}
		return 0, nil
	})

	t.Register("event.disable_timer", func(call engine.Call) (uint32, error) {
		args := call.Args()
		key := event.Key{Kind: event.KindTimer, ID: args[0]}
		if err := reg.Disable(key); err != nil {
			return 0, err
		}
		return 0, nil
	})
}
