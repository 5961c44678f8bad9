package nativeengine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wasefire/wfcore/internal/engine"
)

type fakeApplet struct {
	results []uint32
	err     error
	panics  bool
}

func (f fakeApplet) Call(name string, args []uint32) ([]uint32, error) {
	if f.panics {
		panic("applet exploded")
	}
	return f.results, f.err
}

func TestNewRejectsWhenInstanceAlreadyLive(t *testing.T) {
	instanceLive.Store(true)
	defer instanceLive.Store(false)

	_, err := New("/nonexistent.so")
	require.ErrorIs(t, err, engine.ErrAlreadyRunning)
}

func TestInvokeReturnsResults(t *testing.T) {
	e := &Engine{applet: fakeApplet{results: []uint32{7, 9}}, mem: make([]byte, 1024)}
	outcome, err := e.Invoke(context.Background(), "applet_main", nil, 2)
	require.NoError(t, err)
	assert.Equal(t, engine.StatusDone, outcome.Status)
	assert.Equal(t, []uint32{7, 9}, outcome.Results)
}

func TestInvokeTrapsOnError(t *testing.T) {
	e := &Engine{applet: fakeApplet{err: errors.New("boom")}, mem: make([]byte, 1024)}
	outcome, err := e.Invoke(context.Background(), "applet_main", nil, 0)
	assert.Equal(t, engine.StatusTrap, outcome.Status)
	require.ErrorIs(t, err, engine.ErrTrap)
}

func TestInvokeRecoversFromPanic(t *testing.T) {
	e := &Engine{applet: fakeApplet{panics: true}, mem: make([]byte, 1024)}
	outcome, err := e.Invoke(context.Background(), "applet_main", nil, 0)
	assert.Equal(t, engine.StatusTrap, outcome.Status)
	require.ErrorIs(t, err, engine.ErrTrap)
}

func TestResumeAlwaysErrors(t *testing.T) {
	e := &Engine{applet: fakeApplet{}, mem: make([]byte, 1024)}
	_, err := e.Resume(context.Background(), 0)
	assert.Error(t, err)
	_, ok := e.LastCall()
	assert.False(t, ok)
}

func TestBumpAllocatorAlignment(t *testing.T) {
	e := &Engine{applet: fakeApplet{}, mem: make([]byte, 64)}
	alloc := &bumpAllocator{e: e}

	ptr, ok := alloc.Allocate(3, 1)
	require.True(t, ok)
	assert.Equal(t, uint32(0), ptr)

	ptr, ok = alloc.Allocate(4, 4)
	require.True(t, ok)
	assert.Equal(t, uint32(4), ptr, "must round up to the requested alignment")
}

func TestBumpAllocatorOutOfMemory(t *testing.T) {
	e := &Engine{applet: fakeApplet{}, mem: make([]byte, 8)}
	alloc := &bumpAllocator{e: e}

	_, ok := alloc.Allocate(9, 1)
	assert.False(t, ok)
}
