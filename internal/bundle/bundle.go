// Package bundle parses the on-disk/on-wire bundle format (spec.md §4.9):
// a 4-byte magic followed by a tagged envelope, either a platform bundle
// (two firmware sides plus metadata) or an applet bundle (one of three
// code kinds plus metadata).
package bundle

import (
	"fmt"

	"github.com/wasefire/wfcore/internal/constants"
	"github.com/wasefire/wfcore/internal/wire"
)

const (
	tagPlatform0 = 0x00
	tagApplet0   = 0x01
)

const (
	appletTagWasm   = 0x00
	appletTagPulley = 0x01
	appletTagNative = 0x02
)

// Metadata is the common side-information every bundle variant carries.
type Metadata struct {
	Version string
}

func (m Metadata) encode(w *wire.Writer) { w.PutString(m.Version) }

func decodeMetadata(r *wire.Reader) (Metadata, error) {
	version, err := r.String()
	if err != nil {
		return Metadata{}, fmt.Errorf("bundle: metadata: %w", err)
	}
	return Metadata{Version: version}, nil
}

// Platform is a Platform0 bundle: two firmware sides plus metadata, used
// for A/B updates (spec.md §4.9).
type Platform struct {
	Metadata Metadata
	SideA    []byte
	SideB    []byte
}

// EncodePlatform serialises p as a complete bundle, magic included.
func EncodePlatform(p Platform) []byte {
	w := wire.NewWriter()
	w.PutFixed([]byte{constants.BundleMagic0, constants.BundleMagic1, constants.BundleMagic2, constants.BundleMagic3})
	w.PutTag(tagPlatform0)
	p.Metadata.encode(w)
	w.PutBytes(p.SideA)
	w.PutBytes(p.SideB)
	return w.Bytes()
}

// AppletKind discriminates the three applet code representations.
type AppletKind int

const (
	AppletWasm AppletKind = iota
	AppletPulley
	AppletNative
)

// Applet is an Applet0 bundle: one code kind plus metadata.
type Applet struct {
	Metadata Metadata
	Kind     AppletKind
	Data     []byte
}

// EncodeApplet serialises a as a complete bundle, magic included.
func EncodeApplet(a Applet) []byte {
	w := wire.NewWriter()
	w.PutFixed([]byte{constants.BundleMagic0, constants.BundleMagic1, constants.BundleMagic2, constants.BundleMagic3})
	w.PutTag(tagApplet0)
	a.Metadata.encode(w)
	switch a.Kind {
	case AppletPulley:
		w.PutTag(appletTagPulley)
	case AppletNative:
		w.PutTag(appletTagNative)
	default:
		w.PutTag(appletTagWasm)
	}
	w.PutBytes(a.Data)
	return w.Bytes()
}

// Bundle is the decoded result of Decode: exactly one of Platform or
// Applet is non-nil.
type Bundle struct {
	Platform *Platform
	Applet   *Applet
}

// Decode parses a complete bundle buffer, validating the magic first.
func Decode(data []byte) (Bundle, error) {
	r := wire.NewReader(data)
	magic, err := r.Fixed(4)
	if err != nil {
		return Bundle{}, fmt.Errorf("bundle: reading magic: %w", err)
	}
	if magic[0] != constants.BundleMagic0 || magic[1] != constants.BundleMagic1 ||
		magic[2] != constants.BundleMagic2 || magic[3] != constants.BundleMagic3 {
		return Bundle{}, fmt.Errorf("bundle: bad magic %x", magic)
	}
	tag, err := r.Tag()
	if err != nil {
		return Bundle{}, fmt.Errorf("bundle: reading envelope tag: %w", err)
	}
	switch tag {
	case tagPlatform0:
		p, err := decodePlatform(r)
		if err != nil {
			return Bundle{}, err
		}
		return Bundle{Platform: &p}, nil
	case tagApplet0:
		a, err := decodeApplet(r)
		if err != nil {
			return Bundle{}, err
		}
		return Bundle{Applet: &a}, nil
	default:
		return Bundle{}, fmt.Errorf("bundle: unknown envelope tag %#x", tag)
	}
}

func decodePlatform(r *wire.Reader) (Platform, error) {
	meta, err := decodeMetadata(r)
	if err != nil {
		return Platform{}, err
	}
	sideA, err := r.Bytes()
	if err != nil {
		return Platform{}, fmt.Errorf("bundle: side a: %w", err)
	}
	sideB, err := r.Bytes()
	if err != nil {
		return Platform{}, fmt.Errorf("bundle: side b: %w", err)
	}
	return Platform{Metadata: meta, SideA: append([]byte(nil), sideA...), SideB: append([]byte(nil), sideB...)}, nil
}

func decodeApplet(r *wire.Reader) (Applet, error) {
	meta, err := decodeMetadata(r)
	if err != nil {
		return Applet{}, err
	}
	kindTag, err := r.Tag()
	if err != nil {
		return Applet{}, fmt.Errorf("bundle: applet kind: %w", err)
	}
	var kind AppletKind
	switch kindTag {
	case appletTagWasm:
		kind = AppletWasm
	case appletTagPulley:
		kind = AppletPulley
	case appletTagNative:
		kind = AppletNative
	default:
		return Applet{}, fmt.Errorf("bundle: unknown applet kind %#x", kindTag)
	}
	data, err := r.Bytes()
	if err != nil {
		return Applet{}, fmt.Errorf("bundle: applet data: %w", err)
	}
	return Applet{Metadata: meta, Kind: kind, Data: append([]byte(nil), data...)}, nil
}
