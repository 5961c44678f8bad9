package dispatch

import (
	"fmt"

	"github.com/wasefire/wfcore/internal/abierr"
	"github.com/wasefire/wfcore/internal/board/uart"
	"github.com/wasefire/wfcore/internal/engine"
)

// RegisterUart wires "uart.start", "uart.stop", "uart.set_baudrate",
// "uart.read", and "uart.write" against the UARTs indexed by args[0]
// (spec.md §4.6 "board/uart").
func RegisterUart(t *Table, uarts []uart.Uart) {
	index := func(call engine.Call) (uart.Uart, error) {
		i := call.Args()[0]
		if int(i) >= len(uarts) {
			return nil, fmt.Errorf("%w: uart index %d out of range", ErrTrap, i)
		}
		return uarts[i], nil
	}

	t.Register("uart.start", func(call engine.Call) (uint32, error) {
		u, err := index(call)
		if err != nil {
			return 0, err
		}
		if err := u.Start(); err != nil {
			return 0, abierr.World(abierr.CodeGeneric)
		}
		return 0, nil
	})

	t.Register("uart.stop", func(call engine.Call) (uint32, error) {
		u, err := index(call)
		if err != nil {
			return 0, err
		}
		if err := u.Stop(); err != nil {
			return 0, abierr.World(abierr.CodeGeneric)
		}
		return 0, nil
	})

	t.Register("uart.set_baudrate", func(call engine.Call) (uint32, error) {
		u, err := index(call)
		if err != nil {
			return 0, err
		}
		if err := u.SetBaudrate(call.Args()[1]); err != nil {
			return 0, abierr.World(abierr.CodeGeneric)
		}
		return 0, nil
	})

	t.Register("uart.write", func(call engine.Call) (uint32, error) {
		u, err := index(call)
		if err != nil {
			return 0, err
		}
		args := call.Args()
		data, err := call.Memory().Get(args[1], args[2])
		if err != nil {
			return 0, ErrTrap
		}
		n, werr := u.Write(data)
		if werr != nil {
			return 0, abierr.World(abierr.CodeGeneric)
		}
		return uint32(n), nil
	})

	t.Register("uart.read", func(call engine.Call) (uint32, error) {
		u, err := index(call)
		if err != nil {
			return 0, err
		}
		args := call.Args()
		buf, err := call.Memory().GetMut(args[1], args[2])
		if err != nil {
			return 0, ErrTrap
		}
		n, rerr := u.Read(buf)
		if rerr != nil {
			return 0, abierr.World(abierr.CodeGeneric)
		}
		return uint32(n), nil
	})
}
