package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wasefire/wfcore/internal/memview"
)

// Buffer layout for the ECDSA P-256 (curve=0, N=32) tests below: private at
// [0,32), public at [32,96), digest at [96,128), r at [128,160), s at
// [160,192). The export/import test uses its own 96-byte buffer: private at
// [0,32), wrapped at [32,64), re-imported private at [64,96).
//
// Each dispatch call gets its own memview.View over the shared backing
// array, mirroring wasmengine.pendingCall.Memory()'s behavior of handing
// the engine a fresh borrow-tracking view on every host call.
func TestECDSAGenerateSignVerifyRoundTrip(t *testing.T) {
	table := NewTable()
	RegisterECDSA(table)
	buf := make([]byte, 256)
	view := func() *memview.View { return memview.New(buf, &bumpAllocator{next: 224}) }

	_, err := table.Dispatch(newCall("crypto.ec.generate", []uint32{0, 0}, view()))
	require.NoError(t, err)

	_, err = table.Dispatch(newCall("crypto.ec.public", []uint32{0, 0, 32}, view()))
	require.NoError(t, err)

	for i := range buf[96:128] {
		buf[96+i] = byte(i)
	}

	_, err = table.Dispatch(newCall("crypto.ec.sign", []uint32{0, 0, 96, 128, 160}, view()))
	require.NoError(t, err)

	result, err := table.Dispatch(newCall("crypto.ec.verify", []uint32{0, 32, 96, 128, 160}, view()))
	require.NoError(t, err)
	assert.Equal(t, int32(1), result)
}

func TestECDSADropPrivateZeroizes(t *testing.T) {
	table := NewTable()
	RegisterECDSA(table)
	buf := make([]byte, 64)
	view := func() *memview.View { return memview.New(buf, &bumpAllocator{next: 32}) }

	_, err := table.Dispatch(newCall("crypto.ec.generate", []uint32{0, 0}, view()))
	require.NoError(t, err)

	_, err = table.Dispatch(newCall("crypto.ec.drop_private", []uint32{0, 0}, view()))
	require.NoError(t, err)

	assert.Equal(t, make([]byte, 32), buf[0:32])
}

func TestECDSAExportImportPrivateRoundTrip(t *testing.T) {
	table := NewTable()
	RegisterECDSA(table)
	buf := make([]byte, 96)
	view := func() *memview.View { return memview.New(buf, &bumpAllocator{next: 64}) }

	_, err := table.Dispatch(newCall("crypto.ec.generate", []uint32{0, 0}, view()))
	require.NoError(t, err)

	_, err = table.Dispatch(newCall("crypto.ec.export_private", []uint32{0, 0, 32}, view()))
	require.NoError(t, err)

	_, err = table.Dispatch(newCall("crypto.ec.import_private", []uint32{0, 32, 64}, view()))
	require.NoError(t, err)

	assert.Equal(t, buf[0:32], buf[64:96])
}
