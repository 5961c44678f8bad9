// Package platformprotocol declares the board-side vendor pass-through and
// request/response transport consumed by internal/protocol (spec.md §4.6
// "board/platformprotocol"), grounded on crates/protocol-usb/src/device.rs.
package platformprotocol

// PlatformProtocol is the transport a board exposes for the host protocol
// state machine to read requests from and write responses to.
type PlatformProtocol interface {
	// Read returns the next complete request payload, or ok=false if none
	// is ready yet.
	Read() (payload []byte, ok bool, err error)
	// Write sends a complete response payload.
	Write(payload []byte) error
	// Vendor forwards an applet-defined vendor payload to the transport,
	// bypassing the request/response framing entirely.
	Vendor(payload []byte) error
}
