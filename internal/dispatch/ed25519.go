package dispatch

import (
	stded25519 "crypto/ed25519"

	"github.com/wasefire/wfcore/internal/board/crypto/ed25519"
	"github.com/wasefire/wfcore/internal/engine"
)

// RegisterEd25519 wires "crypto.ed25519.generate", "crypto.ed25519.public",
// "crypto.ed25519.sign", "crypto.ed25519.verify", and
// "crypto.ed25519.drop_private" (spec.md §4.6 "board/crypto/ec" Ed25519
// object). Sizes are the fixed Ed25519 constants rather than a curve
// argument, since Ed25519 has no curve selector.
func RegisterEd25519(t *Table) {
	t.Register("crypto.ed25519.generate", func(call engine.Call) (uint32, error) {
		args := call.Args()
		private, err := call.Memory().GetMut(args[0], stded25519.PrivateKeySize)
		if err != nil {
			return 0, ErrTrap
		}
		if err := ed25519.GenerateInto(private); err != nil {
			return 0, err
		}
		return 0, nil
	})

	t.Register("crypto.ed25519.public", func(call engine.Call) (uint32, error) {
		args := call.Args()
		mem := call.Memory()
		private, err := mem.Get(args[0], stded25519.PrivateKeySize)
		if err != nil {
			return 0, ErrTrap
		}
		public, err := mem.GetMut(args[1], stded25519.PublicKeySize)
		if err != nil {
			return 0, ErrTrap
		}
		if err := ed25519.PublicFromPrivate(private, public); err != nil {
			return 0, err
		}
		return 0, nil
	})

	t.Register("crypto.ed25519.sign", func(call engine.Call) (uint32, error) {
		args := call.Args()
		mem := call.Memory()
		private, err := mem.Get(args[0], stded25519.PrivateKeySize)
		if err != nil {
			return 0, ErrTrap
		}
		message, err := mem.Get(args[1], args[2])
		if err != nil {
			return 0, ErrTrap
		}
		signature, err := mem.GetMut(args[3], stded25519.SignatureSize)
		if err != nil {
			return 0, ErrTrap
		}
		if err := ed25519.SignInto(private, message, signature); err != nil {
			return 0, err
		}
		return 0, nil
	})

	t.Register("crypto.ed25519.verify", func(call engine.Call) (uint32, error) {
		args := call.Args()
		mem := call.Memory()
		public, err := mem.Get(args[0], stded25519.PublicKeySize)
		if err != nil {
			return 0, ErrTrap
		}
		message, err := mem.Get(args[1], args[2])
		if err != nil {
			return 0, ErrTrap
		}
		signature, err := mem.Get(args[3], stded25519.SignatureSize)
		if err != nil {
			return 0, ErrTrap
		}
		ok, err := ed25519.Verify(public, message, signature)
		if err != nil {
			return 0, err
		}
		if ok {
			return 1, nil
		}
		return 0, nil
	})

	t.Register("crypto.ed25519.drop_private", func(call engine.Call) (uint32, error) {
		args := call.Args()
		private, err := call.Memory().GetMut(args[0], stded25519.PrivateKeySize)
		if err != nil {
			return 0, ErrTrap
		}
		ed25519.DropPrivateBytes(private)
		return 0, nil
	})
}
