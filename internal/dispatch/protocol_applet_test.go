package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wasefire/wfcore/internal/abierr"
	"github.com/wasefire/wfcore/internal/board/memboard"
	"github.com/wasefire/wfcore/internal/event"
	"github.com/wasefire/wfcore/internal/memview"
	"github.com/wasefire/wfcore/internal/protocol"
)

func TestAppletProtocolEnableRegistersHandler(t *testing.T) {
	table := NewTable()
	reg := event.NewRegistry(nil)
	bridge := protocol.NewAppletBridge(reg)
	b := memboard.New(0, 0)
	handler := protocol.New(b.PlatformProtocol(), bridge, nil, reg, nil)
	RegisterAppletProtocol(table, bridge, handler, reg)

	mem := memview.New(make([]byte, 64), nil)
	_, err := table.Dispatch(newCall("platform.protocol.enable", []uint32{7, 8}, mem))
	require.NoError(t, err)

	_, ok := reg.Get(event.Key{Kind: event.KindProtocol})
	require.True(t, ok)
}

func TestAppletProtocolReadCopiesPendingRequest(t *testing.T) {
	table := NewTable()
	reg := event.NewRegistry(nil)
	bridge := protocol.NewAppletBridge(reg)
	require.NoError(t, reg.Enable(event.Handler{Key: event.Key{Kind: event.KindProtocol}}))
	b := memboard.New(0, 0)
	handler := protocol.New(b.PlatformProtocol(), bridge, nil, reg, nil)
	RegisterAppletProtocol(table, bridge, handler, reg)

	require.NoError(t, bridge.PutRequest([]byte("hi")))

	mem := memview.New(make([]byte, 64), &bumpAllocator{})
	result, err := table.Dispatch(newCall("protocol.applet_request.read", []uint32{40, 44}, mem))
	require.NoError(t, err)
	n, rerr := abierr.Decode(result)
	require.NoError(t, rerr)
	assert.Equal(t, uint32(2), n)
}

func TestAppletProtocolWriteDeliversResponse(t *testing.T) {
	table := NewTable()
	reg := event.NewRegistry(nil)
	bridge := protocol.NewAppletBridge(reg)
	require.NoError(t, reg.Enable(event.Handler{Key: event.Key{Kind: event.KindProtocol}}))
	b := memboard.New(0, 0)
	handler := protocol.New(b.PlatformProtocol(), bridge, nil, reg, nil)
	RegisterAppletProtocol(table, bridge, handler, reg)

	require.NoError(t, bridge.PutRequest([]byte("req")))
	_ = bridge.Pending()

	mem := memview.New([]byte("reply body data!"), nil)
	_, err := table.Dispatch(newCall("protocol.applet_response.write", []uint32{0, 6}, mem))
	require.NoError(t, err)

	got, ok, gerr := bridge.GetResponse()
	require.NoError(t, gerr)
	require.True(t, ok)
	assert.Equal(t, []byte("reply "), got)
}
