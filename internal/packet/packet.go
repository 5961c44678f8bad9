// Package packet implements the 64-byte packet framing described in
// spec.md §3/§4.2: a variable-length message is split into a first packet,
// zero or more middle packets, and a last packet, each exactly 64 bytes.
package packet

import (
	"fmt"

	"github.com/wasefire/wfcore/internal/constants"
)

const (
	headerFirst     = 1 << 7
	headerLast      = 1 << 6
	headerHasFooter = 1 << 0
	headerReserved  = 0b0011_1110 // bits 1-5
)

// Encode splits message into the packets that reassemble it (spec.md §4.2).
// Total packet count is max(2, ceil(len/63)); empty and one-byte messages
// always produce exactly two packets.
func Encode(message []byte) [][constants.PacketSize]byte {
	total := Count(len(message))
	packets := make([][constants.PacketSize]byte, total)
	for i := 0; i < total; i++ {
		start := i * constants.PacketContentFull
		if start > len(message) {
			start = len(message)
		}
		end := start + constants.PacketContentFull
		if end > len(message) {
			end = len(message)
		}
		content := message[start:end]
		first := i == 0
		last := i == total-1
		packets[i] = buildPacket(first, last, content)
	}
	return packets
}

func ceilDiv(a, b int) int {
	if a == 0 {
		return 0
	}
	return (a + b - 1) / b
}

func buildPacket(first, last bool, content []byte) [constants.PacketSize]byte {
	var p [constants.PacketSize]byte
	var header byte
	if first {
		header |= headerFirst
	}
	if last {
		header |= headerLast
	}
	if len(content) < constants.PacketContentFull {
		header |= headerHasFooter
		copy(p[1:], content)
		p[constants.PacketSize-1] = byte(len(content))
		// bytes [1+len : 63) are already zero.
	} else {
		copy(p[1:], content)
	}
	p[0] = header
	return p
}

// Decoder reassembles packets into messages, tracking the in-progress
// buffer across calls to Push (spec.md §4.2 "Decoder state").
type Decoder struct {
	buf *[]byte
}

// Push feeds one packet to the decoder.
//
// Returns (message, true, nil) when packet completes a message. Returns
// (nil, false, err) when the packet is structurally invalid: the caller
// should log and drop it; the decoder has reset to the empty state.
// Returns (nil, false, nil) when the packet was valid but no message is
// complete yet.
func (d *Decoder) Push(p [constants.PacketSize]byte) ([]byte, bool, error) {
	header := p[0]
	first := header&headerFirst != 0
	last := header&headerLast != 0
	if first && last {
		d.buf = nil
		return nil, false, fmt.Errorf("packet: invalid header %#x: first and last both set", header)
	}
	if header&headerReserved != 0 {
		d.buf = nil
		return nil, false, fmt.Errorf("packet: invalid header %#x: reserved bits set", header)
	}
	content, err := packetContent(p)
	if err != nil {
		d.buf = nil
		return nil, false, err
	}
	switch {
	case first:
		if d.buf != nil {
			// Discard any in-progress buffer (spec.md: "discard any
			// in-progress buffer (warn)").
		}
		buf := append([]byte(nil), content...)
		d.buf = &buf
	case d.buf == nil:
		// Middle or last packet before any first: discard (debug log),
		// stay empty.
		return nil, false, nil
	default:
		*d.buf = append(*d.buf, content...)
	}
	if last {
		if d.buf == nil {
			return nil, false, nil
		}
		msg := *d.buf
		d.buf = nil
		return msg, true, nil
	}
	return nil, false, nil
}

// Reset clears any in-progress buffer.
func (d *Decoder) Reset() { d.buf = nil }

func packetContent(p [constants.PacketSize]byte) ([]byte, error) {
	header := p[0]
	if header&headerHasFooter != 0 {
		length := int(p[constants.PacketSize-1])
		if length > constants.PacketContentMax {
			return nil, fmt.Errorf("packet: invalid footer length %d", length)
		}
		for i := 1 + length; i < constants.PacketSize-1; i++ {
			if p[i] != 0 {
				return nil, fmt.Errorf("packet: non-zero padding at byte %d", i)
			}
		}
		return p[1 : 1+length], nil
	}
	return p[1:constants.PacketSize], nil
}

// Count returns max(2, ceil(len/63)), the number of packets Encode would
// produce for a message of the given length (spec.md §8 property 2/3).
func Count(length int) int {
	total := ceilDiv(length, constants.PacketContentFull)
	if total < 2 {
		total = 2
	}
	return total
}
