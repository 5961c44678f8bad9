package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wasefire/wfcore/internal/abierr"
	"github.com/wasefire/wfcore/internal/board/memboard"
	"github.com/wasefire/wfcore/internal/board/uart"
	"github.com/wasefire/wfcore/internal/engine"
	"github.com/wasefire/wfcore/internal/event"
	"github.com/wasefire/wfcore/internal/memview"
)

type bumpAllocator struct{ next uint32 }

func (a *bumpAllocator) Allocate(size, align uint32) (uint32, bool) {
	ptr := a.next
	a.next += size
	return ptr, true
}

type fakeCall struct {
	name string
	args []uint32
	mem  *memview.View
}

func (c *fakeCall) Name() string           { return c.name }
func (c *fakeCall) Args() []uint32         { return c.args }
func (c *fakeCall) NResults() int          { return 1 }
func (c *fakeCall) Memory() *memview.View  { return c.mem }
func (c *fakeCall) Instance() uint32       { return 0 }

func newCall(name string, args []uint32, mem *memview.View) engine.Call {
	return &fakeCall{name: name, args: args, mem: mem}
}

func TestDispatchUnknownNameTraps(t *testing.T) {
	table := NewTable()
	mem := memview.New(make([]byte, 64), &bumpAllocator{})
	_, err := table.Dispatch(newCall("nope", nil, mem))
	require.ErrorIs(t, err, ErrTrap)
}

func TestDispatchPacksAbiError(t *testing.T) {
	table := NewTable()
	table.Register("fail", func(call engine.Call) (uint32, error) {
		return 0, abierr.User(abierr.CodeNotFound)
	})
	mem := memview.New(make([]byte, 64), &bumpAllocator{})
	result, err := table.Dispatch(newCall("fail", nil, mem))
	require.NoError(t, err)
	assert.Less(t, result, int32(0))
}

func TestStoreInsertAndFind(t *testing.T) {
	table := NewTable()
	s := memboard.New(0, 0).Store()
	RegisterStore(table, s)

	buf := make([]byte, 64)
	copy(buf[0:5], "hello")
	mem := memview.New(buf, &bumpAllocator{next: 32})

	_, err := table.Dispatch(newCall("store.insert", []uint32{7, 0, 5}, mem))
	require.NoError(t, err)

	result, err := table.Dispatch(newCall("store.find", []uint32{7, 8, 12}, mem))
	require.NoError(t, err)
	assert.Equal(t, int32(1), result)
}

func TestStoreFindMissingReturnsZero(t *testing.T) {
	table := NewTable()
	s := memboard.New(0, 0).Store()
	RegisterStore(table, s)

	mem := memview.New(make([]byte, 64), &bumpAllocator{next: 16})
	result, err := table.Dispatch(newCall("store.find", []uint32{99, 0, 4}, mem))
	require.NoError(t, err)
	assert.Equal(t, int32(0), result)
}

func TestUartWrite(t *testing.T) {
	table := NewTable()
	b := memboard.New(1, 0)
	u := b.Uart(0)
	RegisterUart(table, []uart.Uart{u})

	buf := make([]byte, 64)
	copy(buf[0:3], "hey")
	mem := memview.New(buf, &bumpAllocator{next: 32})
	result, err := table.Dispatch(newCall("uart.write", []uint32{0, 0, 3}, mem))
	require.NoError(t, err)
	assert.Equal(t, int32(3), result)
}

func TestEventEnableDisableButton(t *testing.T) {
	table := NewTable()
	reg := event.NewRegistry(nil)
	RegisterEvent(table, reg)
	mem := memview.New(make([]byte, 64), &bumpAllocator{})

	_, err := table.Dispatch(newCall("event.enable_button", []uint32{1, 2, 3}, mem))
	require.NoError(t, err)
	_, ok := reg.Get(event.Key{Kind: event.KindButton, ID: 1})
	assert.True(t, ok)

	_, err = table.Dispatch(newCall("event.disable_button", []uint32{1}, mem))
	require.NoError(t, err)
	_, ok = reg.Get(event.Key{Kind: event.KindButton, ID: 1})
	assert.False(t, ok)
}

func TestEventDisableAbsentTraps(t *testing.T) {
	table := NewTable()
	reg := event.NewRegistry(nil)
	RegisterEvent(table, reg)
	mem := memview.New(make([]byte, 64), &bumpAllocator{})

	_, err := table.Dispatch(newCall("event.disable_button", []uint32{42}, mem))
	require.ErrorIs(t, err, ErrTrap)
}
