// Package ed25519 implements the Ed25519 board interface (spec.md §4.6
// "board/crypto/ec"), grounded on crates/board/src/crypto/ed25519.rs's Api
// trait, on top of Go's standard crypto/ed25519.
package ed25519

import (
	stded25519 "crypto/ed25519"
	"crypto/rand"

	"github.com/wasefire/wfcore/internal/abierr"
)

// Key holds an Ed25519 key pair.
type Key struct {
	private stded25519.PrivateKey
}

// Generate creates a fresh key pair.
func Generate() (*Key, error) {
	_, priv, err := stded25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, abierr.Internal(abierr.CodeGeneric)
	}
	return &Key{private: priv}, nil
}

// Public returns the 32-byte public key.
func (k *Key) Public() []byte {
	return []byte(k.private.Public().(stded25519.PublicKey))
}

// Sign signs message, returning the 64-byte signature.
func (k *Key) Sign(message []byte) []byte {
	return stded25519.Sign(k.private, message)
}

// Verify checks a 64-byte signature of message against a 32-byte public key.
func Verify(public, message, signature []byte) (bool, error) {
	if len(public) != stded25519.PublicKeySize {
		return false, abierr.User(abierr.CodeBadSize)
	}
	return stded25519.Verify(stded25519.PublicKey(public), message, signature), nil
}

// DropPrivate zeroizes the private key material.
func (k *Key) DropPrivate() {
	for i := range k.private {
		k.private[i] = 0
	}
	k.private = nil
}

// ExportPrivate returns the raw 64-byte seed||public private key encoding.
func (k *Key) ExportPrivate() []byte {
	return []byte(k.private)
}

// ImportPrivate rebuilds a Key from a previously exported private key.
func ImportPrivate(wrapped []byte) (*Key, error) {
	if len(wrapped) != stded25519.PrivateKeySize {
		return nil, abierr.User(abierr.CodeBadSize)
	}
	priv := make(stded25519.PrivateKey, stded25519.PrivateKeySize)
	copy(priv, wrapped)
	return &Key{private: priv}, nil
}

// The functions below operate directly on caller-owned byte buffers,
// mirroring internal/board/crypto/ec's Into-style functions: the private
// key lives in the applet's own memory, not in a host-side object table.

// GenerateInto fills private (exactly 64 bytes) with a fresh key pair.
func GenerateInto(private []byte) error {
	if len(private) != stded25519.PrivateKeySize {
		return abierr.User(abierr.CodeBadSize)
	}
	key, err := Generate()
	if err != nil {
		return err
	}
	copy(private, key.ExportPrivate())
	return nil
}

// PublicFromPrivate fills public (exactly 32 bytes) with the public key of private.
func PublicFromPrivate(private, public []byte) error {
	if len(public) != stded25519.PublicKeySize {
		return abierr.User(abierr.CodeBadSize)
	}
	key, err := ImportPrivate(private)
	if err != nil {
		return err
	}
	copy(public, key.Public())
	return nil
}

// SignInto fills signature (exactly 64 bytes) with the signature of message under private.
func SignInto(private, message, signature []byte) error {
	if len(signature) != stded25519.SignatureSize {
		return abierr.User(abierr.CodeBadSize)
	}
	key, err := ImportPrivate(private)
	if err != nil {
		return err
	}
	copy(signature, key.Sign(message))
	return nil
}

// DropPrivateBytes zeroizes a private key buffer in place.
func DropPrivateBytes(private []byte) {
	for i := range private {
		private[i] = 0
	}
}
