package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wasefire/wfcore/internal/constants"
)

func buttonEvent(id uint32, pressed bool) Event {
	return Event{Kind: KindButton, ID: id, Pressed: pressed}
}

func TestPushWithoutHandlerIsDropped(t *testing.T) {
	r := NewRegistry(nil)
	r.Push(buttonEvent(1, true))
	assert.Equal(t, 0, r.Len())
}

// TestEventDedup mirrors spec.md §8 property 5: pushing e1, e1, e2, e1 with
// a handler registered for both keys results in a queue of [e1, e2].
func TestEventDedup(t *testing.T) {
	r := NewRegistry(nil)
	e1 := buttonEvent(1, true)
	e2 := buttonEvent(2, false)
	require.NoError(t, r.Enable(Handler{Key: e1.Key(), Func: 1, Data: 0}))
	require.NoError(t, r.Enable(Handler{Key: e2.Key(), Func: 2, Data: 0}))

	r.Push(e1)
	r.Push(e1) // duplicate, merged
	r.Push(e2)
	r.Push(e1) // third copy, still a duplicate of what's queued

	require.Equal(t, 2, r.Len())
	action, got := r.Pop()
	require.Equal(t, ActionHandle, action)
	assert.Equal(t, e1, got)
	action, got = r.Pop()
	require.Equal(t, ActionHandle, action)
	assert.Equal(t, e2, got)
	action, _ = r.Pop()
	assert.Equal(t, ActionWait, action)
}

func TestQueueCapacity(t *testing.T) {
	r := NewRegistry(nil)
	for i := uint32(0); i < constants.EventQueueCapacity+3; i++ {
		e := buttonEvent(i, true)
		require.NoError(t, r.Enable(Handler{Key: e.Key()}))
		r.Push(e)
	}
	assert.Equal(t, constants.EventQueueCapacity, r.Len())
}

// TestHandlerBijection mirrors spec.md §8 property 6.
func TestHandlerBijection(t *testing.T) {
	r := NewRegistry(nil)
	e := buttonEvent(1, true)
	h := Handler{Key: e.Key(), Func: 7, Data: 9}
	require.NoError(t, r.Enable(h))
	r.Push(e)
	require.Equal(t, 1, r.Len())

	require.NoError(t, r.Disable(h.Key))
	_, ok := r.Get(h.Key)
	assert.False(t, ok)
	assert.Equal(t, 0, r.Len())
}

func TestEnableDuplicateTraps(t *testing.T) {
	r := NewRegistry(nil)
	h := Handler{Key: buttonEvent(1, true).Key()}
	require.NoError(t, r.Enable(h))
	err := r.Enable(h)
	require.ErrorIs(t, err, ErrTrap)
}

func TestDisableAbsentTraps(t *testing.T) {
	r := NewRegistry(nil)
	err := r.Disable(buttonEvent(1, true).Key())
	require.ErrorIs(t, err, ErrTrap)
}

func TestPopPrioritizesReply(t *testing.T) {
	r := NewRegistry(nil)
	e := buttonEvent(1, true)
	require.NoError(t, r.Enable(Handler{Key: e.Key()}))
	r.Push(e)
	r.SetDone()
	action, _ := r.Pop()
	assert.Equal(t, ActionReply, action)
	action, got := r.Pop()
	assert.Equal(t, ActionHandle, action)
	assert.Equal(t, e, got)
}
