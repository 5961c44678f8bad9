package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVarintRoundTrip(t *testing.T) {
	for _, v := range []int64{0, 1, -1, 42, -42, 1 << 20, -(1 << 20), 1 << 40} {
		w := NewWriter()
		w.PutVarint(v)
		r := NewReader(w.Bytes())
		got, err := r.Varint()
		require.NoError(t, err)
		assert.Equal(t, v, got)
		assert.Equal(t, 0, r.Remaining())
	}
}

func TestUvarintRoundTrip(t *testing.T) {
	for _, v := range []uint64{0, 1, 127, 128, 1 << 20, 1 << 40} {
		w := NewWriter()
		w.PutUvarint(v)
		r := NewReader(w.Bytes())
		got, err := r.Uvarint()
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
}

func TestBytesAndStringRoundTrip(t *testing.T) {
	w := NewWriter()
	w.PutBytes([]byte("payload"))
	w.PutString("hello")
	r := NewReader(w.Bytes())

	b, err := r.Bytes()
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), b)

	s, err := r.String()
	require.NoError(t, err)
	assert.Equal(t, "hello", s)
}

func TestFixedAndTag(t *testing.T) {
	w := NewWriter()
	w.PutTag(0x02)
	w.PutFixed([]byte{1, 2, 3, 4})
	r := NewReader(w.Bytes())

	tag, err := r.Tag()
	require.NoError(t, err)
	assert.Equal(t, byte(0x02), tag)

	fixed, err := r.Fixed(4)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, fixed)
}

func TestVersionsRoundTrip(t *testing.T) {
	w := NewWriter()
	w.PutVersions(Versions{Min: 1, Max: 3})
	r := NewReader(w.Bytes())
	v, err := r.Versions()
	require.NoError(t, err)
	assert.Equal(t, Versions{Min: 1, Max: 3}, v)
}

func TestReaderInsufficientData(t *testing.T) {
	r := NewReader([]byte{0x05})
	_, err := r.Fixed(4)
	assert.ErrorIs(t, err, ErrInsufficientData)

	r2 := NewReader(nil)
	_, err = r2.Bytes()
	assert.ErrorIs(t, err, ErrInsufficientData)
}
