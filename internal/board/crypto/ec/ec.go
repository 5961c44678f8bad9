// Package ec implements the ECDSA board interface for P-256 and P-384
// (spec.md §4.6 "board/crypto/ec"), grounded on
// crates/board/src/crypto/ecdsa.rs's Api trait. Go's standard crypto/ecdsa
// and crypto/elliptic packages are the idiomatic implementation: Go has no
// third-party elliptic-curve crate equivalent to the Rust ecosystem's
// RustCrypto crates in the retrieved examples, so stdlib is the ecosystem
// choice here, not a gap.
package ec

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"math/big"

	"github.com/wasefire/wfcore/internal/abierr"
)

// Curve identifies which NIST curve a key pair belongs to.
type Curve int

const (
	P256 Curve = iota
	P384
)

func (c Curve) ec() elliptic.Curve {
	if c == P384 {
		return elliptic.P384()
	}
	return elliptic.P256()
}

// ByteLen returns N: the byte length of a curve coordinate or scalar.
func (c Curve) ByteLen() int {
	return (c.ec().Params().BitSize + 7) / 8
}

// Key holds an ECDSA key pair's scalar, kept only in memory for the
// lifetime of an applet slot (spec.md §4.6 "drop_private ... zeroizes").
type Key struct {
	Curve   Curve
	private *ecdsa.PrivateKey
}

// Generate creates a fresh private key for curve.
func Generate(curve Curve) (*Key, error) {
	priv, err := ecdsa.GenerateKey(curve.ec(), rand.Reader)
	if err != nil {
		return nil, abierr.Internal(abierr.CodeGeneric)
	}
	return &Key{Curve: curve, private: priv}, nil
}

// Public returns the public key coordinates in big-endian.
func (k *Key) Public() (x, y []byte) {
	n := k.Curve.ByteLen()
	return leftPad(k.private.PublicKey.X.Bytes(), n), leftPad(k.private.PublicKey.Y.Bytes(), n)
}

// Sign produces the (r, s) signature of digest in big-endian.
func (k *Key) Sign(digest []byte) (r, s []byte, err error) {
	sigR, sigS, err := ecdsa.Sign(rand.Reader, k.private, digest)
	if err != nil {
		return nil, nil, abierr.World(abierr.CodeGeneric)
	}
	n := k.Curve.ByteLen()
	return leftPad(sigR.Bytes(), n), leftPad(sigS.Bytes(), n), nil
}

// Verify checks a (r, s) signature of digest against a public key given in
// big-endian coordinates.
func Verify(curve Curve, x, y, digest, r, s []byte) (bool, error) {
	pub := &ecdsa.PublicKey{Curve: curve.ec(), X: new(big.Int).SetBytes(x), Y: new(big.Int).SetBytes(y)}
	return ecdsa.Verify(pub, digest, new(big.Int).SetBytes(r), new(big.Int).SetBytes(s)), nil
}

// DropPrivate zeroizes the key's scalar. Only security relevant: it does
// not reclaim memory, it only prevents recovery from a later dump.
func (k *Key) DropPrivate() error {
	if k.private == nil {
		return errors.New("ec: key already dropped")
	}
	k.private.D.SetInt64(0)
	k.private = nil
	return nil
}

// ExportPrivate returns the wrapped (here: raw scalar) private key in
// big-endian, WRAPPED = N bytes (spec.md: "users cannot assume the wrapped
// key is the scalar"; the in-memory reference implementation has no
// wrapping key available, so it exports the scalar directly).
func (k *Key) ExportPrivate() []byte {
	return leftPad(k.private.D.Bytes(), k.Curve.ByteLen())
}

// ImportPrivate rebuilds a Key from a previously exported wrapped key.
func ImportPrivate(curve Curve, wrapped []byte) (*Key, error) {
	if len(wrapped) != curve.ByteLen() {
		return nil, abierr.User(abierr.CodeBadSize)
	}
	d := new(big.Int).SetBytes(wrapped)
	priv := new(ecdsa.PrivateKey)
	priv.Curve = curve.ec()
	priv.D = d
	priv.PublicKey.X, priv.PublicKey.Y = priv.Curve.ScalarBaseMult(d.Bytes())
	return &Key{Curve: curve, private: priv}, nil
}

// The functions below operate directly on caller-owned byte buffers,
// mirroring crates/board/src/crypto/ecdsa.rs's Api trait shape exactly;
// internal/dispatch wires link names to these rather than to the Key
// type, since the applet (not this board) owns the private key's storage.

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

// PublicFromPrivate fills public (exactly 2*curve.ByteLen() bytes) with the
// public key of private.
func PublicFromPrivate(curve Curve, private, public []byte) error {
	if len(public) != 2*curve.ByteLen() {
		return abierr.User(abierr.CodeBadSize)
	}
	key, err := ImportPrivate(curve, private)
	if err != nil {
		return err
	}
	x, y := key.Public()
	copy(public, x)
	copy(public[curve.ByteLen():], y)
	return nil
}

// SignInto fills r and s (each exactly curve.ByteLen() bytes) with the
// signature of digest under private.
func SignInto(curve Curve, private, digest, r, s []byte) error {
	key, err := ImportPrivate(curve, private)
	if err != nil {
		return err
	}
	sigR, sigS, err := key.Sign(digest)
	if err != nil {
		return err
	}
	copy(r, sigR)
	copy(s, sigS)
	return nil
}

// DropPrivateBytes zeroizes a private key buffer in place.
func DropPrivateBytes(private []byte) {
	for i := range private {
		private[i] = 0
	}
}

func leftPad(b []byte, n int) []byte {
	if len(b) >= n {
		return b[len(b)-n:]
	}
	out := make([]byte, n)
	copy(out[n-len(b):], b)
	return out
}
