// Package constants holds the small fixed numbers the scheduler core is
// built around. They come from spec.md directly and are not configurable at
// runtime: changing them changes the wire format or the applet contract.
package constants

const (
	// PacketSize is the fixed size of a transport packet (spec.md §3/§4.2).
	PacketSize = 64

	// PacketContentMax is the content length carried by a packet that has a
	// footer (spec.md §3): bytes [1:1+len), len in [0, PacketContentMax].
	PacketContentMax = PacketSize - 2

	// PacketContentFull is the content length of a footer-less packet
	// (bytes [1:64) all used).
	PacketContentFull = PacketSize - 1

	// EventQueueCapacity is the bound on an applet's pending event queue
	// (spec.md §3 "Applet", §5 invariant (iii)).
	EventQueueCapacity = 5

	// HashSlotCount is the number of concurrent streaming hash/HMAC
	// contexts an applet may hold (spec.md §3 "Hash slot table").
	HashSlotCount = 4

	// StoreKeyMax bounds the fragment key address space (spec.md §4.6
	// "Store": "b < 4096").
	StoreKeyMax = 4096

	// DefaultMemoryPages is the default applet linear memory size in 64 KiB
	// wasm pages, mirroring WASEFIRE_MEMORY_PAGE_COUNT in the original
	// scheduler (crates/scheduler/src/lib.rs memory_size()).
	DefaultMemoryPages = 1

	// WasmPageSize is the size in bytes of one wasm linear memory page.
	WasmPageSize = 1 << 16

	// NativeMemorySize is the default fixed arena size for the native
	// execution engine (spec.md §3 "Execution engine" — "64 KiB
	// (configurable)").
	NativeMemorySize = 64 * 1024

	// Bundle magic bytes prefixing a bundle file (spec.md §6 "Bundle file
	// format").
	BundleMagic0 = 0x3a
	BundleMagic1 = 0x5e
	BundleMagic2 = 0xf1
	BundleMagic3 = 0x2e

	// USBVendorClass, USBVendorSubclass and the endpoint addresses describe
	// the custom USB interface (spec.md §6 "USB descriptor").
	USBVendorClass    = 0xff
	USBVendorSubclass = 0x58
	USBEndpointIn     = 0x81
	USBEndpointOut    = 0x01
	USBMaxPacketSize  = PacketSize

	// FragmentChunkSize bounds how many bytes of a fragment value internal/
	// fragment stores per key, so a realistic fragment exercises more than
	// one underlying store key (spec.md §4.8 "Store fragment").
	FragmentChunkSize = 32
)

// Host-tooling defaults from spec.md §6 "CLI surface".
const (
	DefaultUnixSocketPath = "/tmp/wasefire"
	DefaultTCPAddress     = "127.0.0.1:3457"
)
