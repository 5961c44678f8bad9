// Package event implements the board event model: tagged events, their
// dedup/handler keys, and the handler registry (spec.md §3 "Event",
// "Handler").
package event

// Kind identifies the peripheral that produced an event.
type Kind int

const (
	KindButton Kind = iota
	KindTimer
	KindUart
	KindUsbSerial
	KindProtocol
	KindVendor
	KindFingerprintStep
	KindFingerprintEnroll
	KindFingerprintIdentify
)

// Direction distinguishes UART/USB-serial read vs write readiness events.
type Direction int

const (
	DirectionRead Direction = iota
	DirectionWrite
)

// Event is a tagged record identifying the source peripheral and its
// parameters (spec.md §3 "Event").
type Event struct {
	Kind Kind

	// ID identifies which instance of a peripheral (button id, timer id,
	// UART index, ...). Unused fields are zero.
	ID uint32

	// Direction is meaningful for KindUart and KindUsbSerial.
	Direction Direction

	// Pressed is meaningful for KindButton.
	Pressed bool

	// VendorKey carries the applet-defined key for KindVendor events.
	VendorKey uint32
}

// Key is the identity of an event for deduplication and handler lookup: the
// event with its payload stripped to what identifies the handler (spec.md
// §3 "Event": e.g. "(Uart, id, direction)").
type Key struct {
	Kind      Kind
	ID        uint32
	Direction Direction
	VendorKey uint32
}

// Key returns e's handler/dedup key.
func (e Event) Key() Key {
	return Key{Kind: e.Kind, ID: e.ID, Direction: e.Direction, VendorKey: e.VendorKey}
}

// InstID identifies the applet instance a handler belongs to. The core
// schedules at most one applet, but the handler registry is keyed by
// instance to keep the door open for the multi-applet redesign flagged in
// spec.md §9.
type InstID uint32

// Handler is an applet-supplied callback registered for an event key
// (spec.md §3 "Handler").
type Handler struct {
	Key      Key
	Instance InstID
	Func     uint32
	Data     uint32
}
