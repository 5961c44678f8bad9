package dispatch

import (
	"github.com/wasefire/wfcore/internal/board/crypto/ecdh"
	"github.com/wasefire/wfcore/internal/engine"
)

// RegisterECDH wires "crypto.ecdh.generate", "crypto.ecdh.public",
// "crypto.ecdh.shared", "crypto.ecdh.drop_private", and
// "crypto.ecdh.drop_shared" (spec.md §4.6 "board/crypto/ec" ECDH object).
// Every byte-buffer argument is a (ptr, len) pair sized by the curve
// carried in args[0], except drop_shared, whose shared-secret length is
// caller-supplied since it isn't tied to a curve argument there.
func RegisterECDH(t *Table) {
	t.Register("crypto.ecdh.generate", func(call engine.Call) (uint32, error) {
		curve := ecdh.Curve(call.Args()[0])
		args := call.Args()
		private, err := call.Memory().GetMut(args[1], uint32(curve.ByteLen()))
		if err != nil {
			return 0, ErrTrap
		}
		if err := ecdh.GenerateInto(curve, private); err != nil {
			return 0, err
		}
		return 0, nil
	})

	t.Register("crypto.ecdh.public", func(call engine.Call) (uint32, error) {
		curve := ecdh.Curve(call.Args()[0])
		args := call.Args()
		private, err := call.Memory().Get(args[1], uint32(curve.ByteLen()))
		if err != nil {
			return 0, ErrTrap
		}
		public, err := call.Memory().GetMut(args[2], uint32(curve.PublicLen()))
		if err != nil {
			return 0, ErrTrap
		}
		if err := ecdh.PublicFromPrivate(curve, private, public); err != nil {
			return 0, err
		}
		return 0, nil
	})

	t.Register("crypto.ecdh.shared", func(call engine.Call) (uint32, error) {
		curve := ecdh.Curve(call.Args()[0])
		args := call.Args()
		mem := call.Memory()
		private, err := mem.Get(args[1], uint32(curve.ByteLen()))
		if err != nil {
			return 0, ErrTrap
		}
		peerPublic, err := mem.Get(args[2], uint32(curve.PublicLen()))
		if err != nil {
			return 0, ErrTrap
		}
		shared, err := mem.GetMut(args[3], uint32(curve.ByteLen()))
		if err != nil {
			return 0, ErrTrap
		}
		if err := ecdh.SharedInto(curve, private, peerPublic, shared); err != nil {
			return 0, err
		}
		return 0, nil
	})

	t.Register("crypto.ecdh.drop_private", func(call engine.Call) (uint32, error) {
		curve := ecdh.Curve(call.Args()[0])
		args := call.Args()
		private, err := call.Memory().GetMut(args[1], uint32(curve.ByteLen()))
		if err != nil {
			return 0, ErrTrap
		}
		ecdh.DropPrivateBytes(private)
		return 0, nil
	})

	t.Register("crypto.ecdh.drop_shared", func(call engine.Call) (uint32, error) {
		args := call.Args()
		shared, err := call.Memory().GetMut(args[0], args[1])
		if err != nil {
			return 0, ErrTrap
		}
		ecdh.DropShared(shared)
		return 0, nil
	})
}
