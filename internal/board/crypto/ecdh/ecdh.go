// Package ecdh implements the ECDH board interface for P-256/P-384 and
// X25519 (spec.md §4.6 "board/crypto/ec"), grounded on
// crates/board/src/crypto/ecdh.rs's Api trait.
package ecdh

import (
	"crypto/ecdh"
	"crypto/rand"

	"github.com/wasefire/wfcore/internal/abierr"
)

// Curve identifies which Diffie-Hellman curve a key pair belongs to.
type Curve int

const (
	P256 Curve = iota
	P384
	X25519
)

func (c Curve) curve() ecdh.Curve {
	switch c {
	case P384:
		return ecdh.P384()
	case X25519:
		return ecdh.X25519()
	default:
		return ecdh.P256()
	}
}

// ByteLen returns N: the byte length of a private scalar and of the shared
// secret it produces (equal for P-256, P-384, and X25519).
func (c Curve) ByteLen() int {
	switch c {
	case P384:
		return 48
	default:
		return 32
	}
}

// PublicLen returns the byte length of the uncompressed public key: 1 + 2N
// for the NIST curves' 0x04 prefix plus both coordinates, N for X25519.
func (c Curve) PublicLen() int {
	if c == X25519 {
		return 32
	}
	return 1 + 2*c.ByteLen()
}

// Key holds an ECDH private key.
type Key struct {
	Curve   Curve
	private *ecdh.PrivateKey
}

// Generate creates a fresh private key for curve.
func Generate(curve Curve) (*Key, error) {
	priv, err := curve.curve().GenerateKey(rand.Reader)
	if err != nil {
		return nil, abierr.Internal(abierr.CodeGeneric)
	}
	return &Key{Curve: curve, private: priv}, nil
}

// Public returns the uncompressed public key bytes.
func (k *Key) Public() []byte {
	return k.private.PublicKey().Bytes()
}

// Shared computes the ECDH shared secret with a peer's public key bytes.
func (k *Key) Shared(peerPublic []byte) ([]byte, error) {
	peer, err := k.Curve.curve().NewPublicKey(peerPublic)
	if err != nil {
		return nil, abierr.User(abierr.CodeGeneric)
	}
	secret, err := k.private.ECDH(peer)
	if err != nil {
		return nil, abierr.World(abierr.CodeGeneric)
	}
	return secret, nil
}

// DropPrivate drops the key, making further use a programming error caught
// by nil-dereference rather than silently succeeding.
func (k *Key) DropPrivate() {
	k.private = nil
}

// DropShared zeroizes a shared secret buffer in place.
func DropShared(shared []byte) {
	for i := range shared {
		shared[i] = 0
	}
}

// ExportPrivate returns the raw private scalar in big-endian.
func (k *Key) ExportPrivate() []byte {
	return k.private.Bytes()
}

// ImportPrivate rebuilds a Key from a previously exported private scalar.
func ImportPrivate(curve Curve, wrapped []byte) (*Key, error) {
	priv, err := curve.curve().NewPrivateKey(wrapped)
	if err != nil {
		return nil, abierr.User(abierr.CodeBadSize)
	}
	return &Key{Curve: curve, private: priv}, nil
}

// The functions below operate directly on caller-owned byte buffers,
// mirroring internal/board/crypto/ec's Into-style functions: the private
// scalar and shared secret live in the applet's own memory, not in a
// host-side object table.

// GenerateInto fills private (exactly curve.ByteLen() bytes) with a fresh
// private key.
func GenerateInto(curve Curve, private []byte) error {
	if len(private) != curve.ByteLen() {
		return abierr.User(abierr.CodeBadSize)
	}
	key, err := Generate(curve)
	if err != nil {
		return err
	}
	copy(private, key.ExportPrivate())
	return nil
}

// PublicFromPrivate fills public (exactly curve.PublicLen() bytes) with the
// public key of private.
func PublicFromPrivate(curve Curve, private, public []byte) error {
	if len(public) != curve.PublicLen() {
		return abierr.User(abierr.CodeBadSize)
	}
	key, err := ImportPrivate(curve, private)
	if err != nil {
		return err
	}
	copy(public, key.Public())
	return nil
}

// SharedInto fills shared (exactly curve.ByteLen() bytes) with the ECDH
// shared secret between private and peerPublic.
func SharedInto(curve Curve, private, peerPublic, shared []byte) error {
	key, err := ImportPrivate(curve, private)
	if err != nil {
		return err
	}
	secret, err := key.Shared(peerPublic)
	if err != nil {
		return err
	}
	if len(shared) != len(secret) {
		return abierr.User(abierr.CodeBadSize)
	}
	copy(shared, secret)
	return nil
}

// DropPrivateBytes zeroizes a private key buffer in place.
func DropPrivateBytes(private []byte) {
	for i := range private {
		private[i] = 0
	}
}
