package dispatch

import (
	"github.com/wasefire/wfcore/internal/board/crypto/ec"
	"github.com/wasefire/wfcore/internal/engine"
)

// RegisterECDSA wires "crypto.ec.generate", "crypto.ec.public",
// "crypto.ec.sign", "crypto.ec.verify", "crypto.ec.drop_private", and
// "crypto.ec.export_private"/"crypto.ec.import_private" (spec.md §4.6
// "board/crypto/ec"). Every byte-buffer argument is a (ptr, len) pair sized
// by the curve carried in args[0]. wrap/unwrap is the same operation as
// export/import here: ec.Key.ExportPrivate's doc comment notes the
// in-memory reference board has no separate wrapping key, so the wrapped
// form is the raw scalar, and export_private/import_private cover both
// names from spec.md's combined operation list.
func RegisterECDSA(t *Table) {
	t.Register("crypto.ec.generate", func(call engine.Call) (uint32, error) {
		curve := ec.Curve(call.Args()[0])
		args := call.Args()
		private, err := call.Memory().GetMut(args[1], uint32(curve.ByteLen()))
		if err != nil {
			return 0, ErrTrap
		}
		if err := ec.GenerateInto(curve, private); err != nil {
			return 0, err
		}
		return 0, nil
	})

	t.Register("crypto.ec.public", func(call engine.Call) (uint32, error) {
		curve := ec.Curve(call.Args()[0])
		args := call.Args()
		private, err := call.Memory().Get(args[1], uint32(curve.ByteLen()))
		if err != nil {
			return 0, ErrTrap
		}
		public, err := call.Memory().GetMut(args[2], uint32(2*curve.ByteLen()))
		if err != nil {
			return 0, ErrTrap
		}
		if err := ec.PublicFromPrivate(curve, private, public); err != nil {
			return 0, err
		}
		return 0, nil
	})

	t.Register("crypto.ec.sign", func(call engine.Call) (uint32, error) {
		curve := ec.Curve(call.Args()[0])
		n := uint32(curve.ByteLen())
		args := call.Args()
		mem := call.Memory()
		private, err := mem.Get(args[1], n)
		if err != nil {
			return 0, ErrTrap
		}
		digest, err := mem.Get(args[2], n)
		if err != nil {
			return 0, ErrTrap
		}
		r, err := mem.GetMut(args[3], n)
		if err != nil {
			return 0, ErrTrap
		}
		s, err := mem.GetMut(args[4], n)
		if err != nil {
			return 0, ErrTrap
		}
		if err := ec.SignInto(curve, private, digest, r, s); err != nil {
			return 0, err
		}
		return 0, nil
	})

	t.Register("crypto.ec.verify", func(call engine.Call) (uint32, error) {
		curve := ec.Curve(call.Args()[0])
		n := uint32(curve.ByteLen())
		args := call.Args()
		mem := call.Memory()
		public, err := mem.Get(args[1], 2*n)
		if err != nil {
			return 0, ErrTrap
		}
		digest, err := mem.Get(args[2], n)
		if err != nil {
			return 0, ErrTrap
		}
		r, err := mem.Get(args[3], n)
		if err != nil {
			return 0, ErrTrap
		}
		s, err := mem.Get(args[4], n)
		if err != nil {
			return 0, ErrTrap
		}
		valid, err := ec.Verify(curve, public[:n], public[n:], digest, r, s)
		if err != nil {
			return 0, err
		}
		if valid {
			return 1, nil
		}
		return 0, nil
	})

	t.Register("crypto.ec.drop_private", func(call engine.Call) (uint32, error) {
		curve := ec.Curve(call.Args()[0])
		args := call.Args()
		private, err := call.Memory().GetMut(args[1], uint32(curve.ByteLen()))
		if err != nil {
			return 0, ErrTrap
		}
		ec.DropPrivateBytes(private)
		return 0, nil
	})

	t.Register("crypto.ec.export_private", func(call engine.Call) (uint32, error) {
		curve := ec.Curve(call.Args()[0])
		n := uint32(curve.ByteLen())
		args := call.Args()
		mem := call.Memory()
		private, err := mem.Get(args[1], n)
		if err != nil {
			return 0, ErrTrap
		}
		wrapped, err := mem.GetMut(args[2], n)
		if err != nil {
			return 0, ErrTrap
		}
		key, err := ec.ImportPrivate(curve, private)
		if err != nil {
			return 0, err
		}
		copy(wrapped, key.ExportPrivate())
		return 0, nil
	})

	t.Register("crypto.ec.import_private", func(call engine.Call) (uint32, error) {
		curve := ec.Curve(call.Args()[0])
		n := uint32(curve.ByteLen())
		args := call.Args()
		mem := call.Memory()
		wrapped, err := mem.Get(args[1], n)
		if err != nil {
			return 0, ErrTrap
		}
		private, err := mem.GetMut(args[2], n)
		if err != nil {
			return 0, ErrTrap
		}
		key, err := ec.ImportPrivate(curve, wrapped)
		if err != nil {
			return 0, err
		}
		copy(private, key.ExportPrivate())
		return 0, nil
	})
}
