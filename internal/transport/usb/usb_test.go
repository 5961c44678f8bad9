package usb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wasefire/wfcore/internal/constants"
	"github.com/wasefire/wfcore/internal/packet"
)

type fakeEndpoint struct {
	in  [][constants.PacketSize]byte
	out [][constants.PacketSize]byte
}

func (e *fakeEndpoint) ReadPacket() ([constants.PacketSize]byte, bool, error) {
	if len(e.in) == 0 {
		return [constants.PacketSize]byte{}, false, nil
	}
	p := e.in[0]
	e.in = e.in[1:]
	return p, true, nil
}

func (e *fakeEndpoint) WritePacket(p [constants.PacketSize]byte) (bool, error) {
	e.out = append(e.out, p)
	return true, nil
}

func (e *fakeEndpoint) inject(message []byte) {
	e.in = append(e.in, packet.Encode(message)...)
}

func TestEnableFromDisabledOnly(t *testing.T) {
	ep := &fakeEndpoint{}
	r := New(ep, nil)
	require.NoError(t, r.Enable())
	assert.ErrorIs(t, r.Enable(), ErrInvalidState)
}

func TestReadBeforeEnabledErrors(t *testing.T) {
	ep := &fakeEndpoint{}
	r := New(ep, nil)
	_, _, err := r.Read()
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestFullRequestResponseCycle(t *testing.T) {
	ep := &fakeEndpoint{}
	r := New(ep, nil)
	require.NoError(t, r.Enable())

	ep.inject([]byte("hello usb transport"))
	for len(ep.in) > 0 {
		r.Poll()
	}

	assert.True(t, r.Notify())
	assert.False(t, r.Notify())

	request, ok, err := r.Read()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("hello usb transport"), request)

	_, _, err = r.Read()
	assert.ErrorIs(t, err, ErrInvalidState)

	require.NoError(t, r.Write([]byte("response bytes")))
	for len(ep.out) < packet.Count(len("response bytes")) {
		r.Poll()
	}

	decoder := packet.Decoder{}
	var got []byte
	for _, p := range ep.out {
		msg, done, err := decoder.Push(p)
		require.NoError(t, err)
		if done {
			got = msg
		}
	}
	assert.Equal(t, []byte("response bytes"), got)
}

func TestWriteBeforeReadErrors(t *testing.T) {
	ep := &fakeEndpoint{}
	r := New(ep, nil)
	require.NoError(t, r.Enable())
	assert.ErrorIs(t, r.Write([]byte("x")), ErrInvalidState)
}

func TestResetReturnsToWaitRequest(t *testing.T) {
	ep := &fakeEndpoint{}
	r := New(ep, nil)
	require.NoError(t, r.Enable())
	ep.inject([]byte("partial"))
	r.Poll()
	r.Reset()
	_, ok, err := r.Read()
	require.NoError(t, err)
	assert.False(t, ok)
}
