package wasefire

import "github.com/wasefire/wfcore/internal/constants"

// Re-exported so callers configuring Params don't need to import
// internal/constants directly, the same re-export pattern the teacher uses
// for its own root-level defaults.
const (
	PacketSize            = constants.PacketSize
	EventQueueCapacity    = constants.EventQueueCapacity
	HashSlotCount         = constants.HashSlotCount
	StoreKeyMax           = constants.StoreKeyMax
	DefaultMemoryPages    = constants.DefaultMemoryPages
	WasmPageSize          = constants.WasmPageSize
	NativeMemorySize      = constants.NativeMemorySize
	DefaultUnixSocketPath = constants.DefaultUnixSocketPath
	DefaultTCPAddress     = constants.DefaultTCPAddress
)
