package fragment

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wasefire/wfcore/internal/board/memboard"
	"github.com/wasefire/wfcore/internal/flashstore"
)

func TestInsertFindRemoveRoundTrip(t *testing.T) {
	s := memboard.New(0, 0).Store()
	r := Range{A: 10, B: 20}
	data := []byte("hello world, this spans more than one chunk of thirty-two bytes")

	require.NoError(t, Insert(s, r, data))

	got, ok, err := Find(s, r)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, data, got)

	require.NoError(t, Remove(s, r))
	_, ok, err = Find(s, r)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInsertShrinksClearsExcessKeys(t *testing.T) {
	s := memboard.New(0, 0).Store()
	r := Range{A: 0, B: 8}

	require.NoError(t, Insert(s, r, make([]byte, 200))) // many chunks
	require.NoError(t, Insert(s, r, []byte("short")))    // one chunk

	got, ok, err := Find(s, r)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("short"), got)

	for key := uint16(1); key < r.B; key++ {
		_, present, err := s.Find(key)
		require.NoError(t, err)
		assert.False(t, present, "key %d should have been cleared", key)
	}
}

func TestInsertFindEmptyValue(t *testing.T) {
	s := memboard.New(0, 0).Store()
	r := Range{A: 0, B: 4}

	require.NoError(t, Insert(s, r, []byte{}))

	got, ok, err := Find(s, r)
	require.NoError(t, err)
	require.True(t, ok, "an inserted empty value must still be found, not reported absent")
	assert.Empty(t, got)
}

func TestInsertRejectsTooLargeValue(t *testing.T) {
	s := memboard.New(0, 0).Store()
	r := Range{A: 0, B: 1}
	err := Insert(s, r, make([]byte, 64))
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestInsertFindRemoveRoundTripOverFlashStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flash.bin")
	storage, err := flashstore.Open(path, 4, 256, 8, 2, 1000)
	require.NoError(t, err)
	defer storage.Close()
	s, err := flashstore.NewLogStore(storage)
	require.NoError(t, err)

	r := Range{A: 10, B: 20}
	data := []byte("hello world, this spans more than one chunk of thirty-two bytes")

	require.NoError(t, Insert(s, r, data))

	got, ok, err := Find(s, r)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, data, got)

	require.NoError(t, Remove(s, r))
	_, ok, err = Find(s, r)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRangeValidation(t *testing.T) {
	s := memboard.New(0, 0).Store()
	_, _, err := Find(s, Range{A: 5, B: 5})
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, _, err = Find(s, Range{A: 0, B: 5000})
	assert.ErrorIs(t, err, ErrInvalidRange)
}
