package abierr

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeOk(t *testing.T) {
	assert.Equal(t, int32(0), Encode(0, nil))
	assert.Equal(t, int32(0x7fffffff), Encode(0x7fffffff, nil))
}

func TestEncodeOkPanicsOnHighBit(t *testing.T) {
	assert.Panics(t, func() { Encode(0x80000000, nil) })
	assert.Panics(t, func() { Encode(math.MaxUint32, nil) })
}

func TestEncodeErr(t *testing.T) {
	err := User(CodeBadSize)
	assert.Equal(t, int32(^uint32(0x010003)), Encode(0, err))
}

func TestDecodeRoundTripOk(t *testing.T) {
	for _, v := range []uint32{0, 1, 42, 0x7fffffff} {
		got, err := Decode(Encode(v, nil))
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
}

func TestDecodeRoundTripErr(t *testing.T) {
	errs := []Error{
		New(SpaceGeneric, CodeGeneric),
		User(CodeBadSize),
		Internal(CodeNotImplemented),
		World(CodeNotFound),
		NewRaw(200, 0xbeef),
	}
	for _, e := range errs {
		_, got := Decode(Encode(0, e))
		require.Error(t, got)
		assert.Equal(t, e, got)
	}
}

func TestDecodeMalformed(t *testing.T) {
	// A negative i32 whose inverted bits are not tagged 0xff in the top
	// byte was not produced by Encode.
	_, err := Decode(int32(math.MinInt32)) // 0x80000000; inverted top byte is 0x7f
	require.Error(t, err)
	_, err = Decode(int32(0x00ffffff)) // positive, decodes as Ok
	require.NoError(t, err)
}

func TestSpaceAndCodeAccessors(t *testing.T) {
	e := New(SpaceUser, CodeBadAlign)
	assert.Equal(t, uint8(SpaceUser), e.Space())
	assert.Equal(t, uint16(CodeBadAlign), e.Code())
	assert.Equal(t, "User:BadAlign", e.String())
}

func TestUnknownSpaceAndCodeFormatting(t *testing.T) {
	e := NewRaw(0x81, 0xabcd)
	assert.Equal(t, "[81]:[abcd]", e.String())
}
