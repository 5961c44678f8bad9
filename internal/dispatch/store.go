package dispatch

import (
	"github.com/wasefire/wfcore/internal/abierr"
	"github.com/wasefire/wfcore/internal/board/store"
	"github.com/wasefire/wfcore/internal/engine"
)

// RegisterStore wires "store.insert", "store.find", and "store.remove"
// against s (spec.md §4.6 "board/store").
func RegisterStore(t *Table, s store.Store) {
	t.Register("store.insert", func(call engine.Call) (uint32, error) {
		args := call.Args()
		data, err := call.Memory().Get(args[1], args[2])
		if err != nil {
			return 0, ErrTrap
		}
		if err := s.Insert(uint16(args[0]), data); err != nil {
			return 0, abierr.Internal(abierr.CodeGeneric)
		}
		return 0, nil
	})

	t.Register("store.find", func(call engine.Call) (uint32, error) {
		args := call.Args()
		value, ok, err := s.Find(uint16(args[0]))
		if err != nil {
			return 0, abierr.Internal(abierr.CodeGeneric)
		}
		if !ok {
			return 0, nil
		}
		if err := call.Memory().AllocCopy(args[1], args[2], value); err != nil {
			return 0, ErrTrap
		}
		return 1, nil
	})

	t.Register("store.remove", func(call engine.Call) (uint32, error) {
		args := call.Args()
		if err := s.Remove(uint16(args[0])); err != nil {
			return 0, abierr.Internal(abierr.CodeGeneric)
		}
		return 0, nil
	})
}
