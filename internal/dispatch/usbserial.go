package dispatch

import (
	"github.com/wasefire/wfcore/internal/abierr"
	"github.com/wasefire/wfcore/internal/board/usbserial"
	"github.com/wasefire/wfcore/internal/engine"
)

// RegisterUSBSerial wires "usb_serial.read", "usb_serial.write", and
// "usb_serial.set_events_enabled" against s (spec.md §4.6
// "board/usbserial").
func RegisterUSBSerial(t *Table, s usbserial.USBSerial) {
	t.Register("usb_serial.read", func(call engine.Call) (uint32, error) {
		args := call.Args()
		buf, err := call.Memory().GetMut(args[0], args[1])
		if err != nil {
			return 0, ErrTrap
		}
		n, rerr := s.Read(buf)
		if rerr != nil {
			return 0, abierr.World(abierr.CodeGeneric)
		}
		return uint32(n), nil
	})

	t.Register("usb_serial.write", func(call engine.Call) (uint32, error) {
		args := call.Args()
		data, err := call.Memory().Get(args[0], args[1])
		if err != nil {
			return 0, ErrTrap
		}
		n, werr := s.Write(data)
		if werr != nil {
			return 0, abierr.World(abierr.CodeGeneric)
		}
		return uint32(n), nil
	})

	t.Register("usb_serial.set_events_enabled", func(call engine.Call) (uint32, error) {
		s.SetEventsEnabled(call.Args()[0] != 0)
		return 0, nil
	})
}
