package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wasefire/wfcore/internal/dispatch"
	"github.com/wasefire/wfcore/internal/engine"
	"github.com/wasefire/wfcore/internal/event"
	"github.com/wasefire/wfcore/internal/memview"
)

type fakeBoard struct {
	ch chan event.Event
}

func newFakeBoard() *fakeBoard { return &fakeBoard{ch: make(chan event.Event, 8)} }

func (b *fakeBoard) Events() <-chan event.Event { return b.ch }

func (b *fakeBoard) Wait(ctx context.Context) (event.Event, error) {
	select {
	case e := <-b.ch:
		return e, nil
	case <-ctx.Done():
		return event.Event{}, ctx.Err()
	}
}

type fakeCall struct {
	name string
	args []uint32
}

func (c *fakeCall) Name() string          { return c.name }
func (c *fakeCall) Args() []uint32        { return c.args }
func (c *fakeCall) NResults() int         { return 1 }
func (c *fakeCall) Memory() *memview.View { return memview.New(make([]byte, 16), nil) }
func (c *fakeCall) Instance() uint32      { return 0 }

type fakeEngine struct {
	invokeResults []engine.Outcome
	resumeResults []engine.Outcome
	invokeCalls   []string
	invokeArgs    [][]uint32
	pendingCall   engine.Call
}

func (e *fakeEngine) Invoke(ctx context.Context, name string, args []uint32, nresults int) (engine.Outcome, error) {
	e.invokeCalls = append(e.invokeCalls, name)
	e.invokeArgs = append(e.invokeArgs, args)
	if len(e.invokeResults) == 0 {
		return engine.Outcome{Status: engine.StatusDone}, nil
	}
	o := e.invokeResults[0]
	e.invokeResults = e.invokeResults[1:]
	return o, nil
}

func (e *fakeEngine) Resume(ctx context.Context, result uint32) (engine.Outcome, error) {
	if len(e.resumeResults) == 0 {
		return engine.Outcome{Status: engine.StatusDone}, nil
	}
	o := e.resumeResults[0]
	e.resumeResults = e.resumeResults[1:]
	return o, nil
}

func (e *fakeEngine) LastCall() (engine.Call, bool) {
	if e.pendingCall == nil {
		return nil, false
	}
	return e.pendingCall, true
}

func (e *fakeEngine) Memory() *memview.View { return memview.New(make([]byte, 16), nil) }
func (e *fakeEngine) Close() error          { return nil }

var _ engine.Engine = (*fakeEngine)(nil)

func TestRunExecutesInitThenMainThenStopsOnCancel(t *testing.T) {
	b := newFakeBoard()
	reg := event.NewRegistry(nil)
	table := dispatch.NewTable()
	eng := &fakeEngine{invokeResults: []engine.Outcome{
		{Status: engine.StatusDone}, // init
		{Status: engine.StatusDone}, // main
	}}
	s := New(b, reg, table, eng, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"init", "main"}, eng.invokeCalls)
}

func TestRunDispatchesHostCallDuringInit(t *testing.T) {
	b := newFakeBoard()
	reg := event.NewRegistry(nil)
	table := dispatch.NewTable()
	called := false
	table.Register("test.hostcall", func(call engine.Call) (uint32, error) {
		called = true
		return 0, nil
	})
	eng := &fakeEngine{
		pendingCall: &fakeCall{name: "test.hostcall"},
		invokeResults: []engine.Outcome{
			{Status: engine.StatusHost}, // init suspends on a host call
			{Status: engine.StatusDone}, // main
		},
		resumeResults: []engine.Outcome{
			{Status: engine.StatusDone}, // init's resume finishes it
		},
	}
	s := New(b, reg, table, eng, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, called)
}

func TestRunReturnsErrTrappedOnEngineTrapStatus(t *testing.T) {
	b := newFakeBoard()
	reg := event.NewRegistry(nil)
	table := dispatch.NewTable()
	eng := &fakeEngine{invokeResults: []engine.Outcome{{Status: engine.StatusTrap}}}
	s := New(b, reg, table, eng, nil, nil, nil)

	err := s.Run(context.Background())
	assert.ErrorIs(t, err, ErrTrapped)
}

func TestRunReturnsErrTrappedWhenHostCallFails(t *testing.T) {
	b := newFakeBoard()
	reg := event.NewRegistry(nil)
	table := dispatch.NewTable()
	// "unknown.call" isn't registered: dispatch.Table.Dispatch traps.
	eng := &fakeEngine{
		pendingCall:   &fakeCall{name: "unknown.call"},
		invokeResults: []engine.Outcome{{Status: engine.StatusHost}},
	}
	s := New(b, reg, table, eng, nil, nil, nil)

	err := s.Run(context.Background())
	assert.ErrorIs(t, err, ErrTrapped)
	assert.ErrorIs(t, err, dispatch.ErrTrap)
}

func TestHandleDispatchesRegisteredCallbackWithPayload(t *testing.T) {
	b := newFakeBoard()
	reg := event.NewRegistry(nil)
	table := dispatch.NewTable()
	eng := &fakeEngine{}
	s := New(b, reg, table, eng, nil, nil, nil)

	key := event.Key{Kind: event.KindButton, ID: 3}
	require.NoError(t, reg.Enable(event.Handler{Key: key, Func: 11, Data: 22}))

	err := s.handle(context.Background(), event.Event{Kind: event.KindButton, ID: 3, Pressed: true})
	require.NoError(t, err)
	require.Equal(t, []string{CallbackExport}, eng.invokeCalls)
	assert.Equal(t, []uint32{11, 22, 1}, eng.invokeArgs[0])
}

func TestHandleSkipsEventWithNoHandler(t *testing.T) {
	b := newFakeBoard()
	reg := event.NewRegistry(nil)
	table := dispatch.NewTable()
	eng := &fakeEngine{}
	s := New(b, reg, table, eng, nil, nil, nil)

	err := s.handle(context.Background(), event.Event{Kind: event.KindTimer, ID: 9})
	require.NoError(t, err)
	assert.Empty(t, eng.invokeCalls)
}

func TestFlushBoardEventsDrainsWithoutBlocking(t *testing.T) {
	b := newFakeBoard()
	reg := event.NewRegistry(nil)
	table := dispatch.NewTable()
	eng := &fakeEngine{}
	s := New(b, reg, table, eng, nil, nil, nil)

	key1 := event.Key{Kind: event.KindTimer, ID: 1}
	key2 := event.Key{Kind: event.KindTimer, ID: 2}
	require.NoError(t, reg.Enable(event.Handler{Key: key1}))
	require.NoError(t, reg.Enable(event.Handler{Key: key2}))

	b.ch <- event.Event{Kind: event.KindTimer, ID: 1}
	b.ch <- event.Event{Kind: event.KindTimer, ID: 2}

	s.flushBoardEvents()
	assert.Equal(t, 2, reg.Len())
}

func TestProcessEventWaitsOnBoardWhenQueueEmpty(t *testing.T) {
	b := newFakeBoard()
	reg := event.NewRegistry(nil)
	table := dispatch.NewTable()
	eng := &fakeEngine{}
	s := New(b, reg, table, eng, nil, nil, nil)

	key := event.Key{Kind: event.KindTimer, ID: 5}
	require.NoError(t, reg.Enable(event.Handler{Key: key, Func: 1, Data: 2}))
	b.ch <- event.Event{Kind: event.KindTimer, ID: 5}

	err := s.processEvent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []uint32{1, 2}, eng.invokeArgs[0])
}

type fakeProtocol struct{ calls int }

func (p *fakeProtocol) ProcessEvent() { p.calls++ }

func TestFlushBoardEventsRoutesProtocolEventsToHandlerInsteadOfQueue(t *testing.T) {
	b := newFakeBoard()
	reg := event.NewRegistry(nil)
	table := dispatch.NewTable()
	eng := &fakeEngine{}
	proto := &fakeProtocol{}
	s := New(b, reg, table, eng, nil, proto, nil)

	b.ch <- event.Event{Kind: event.KindProtocol}
	s.flushBoardEvents()

	assert.Equal(t, 1, proto.calls)
	assert.Equal(t, 0, reg.Len())
}

type recordingObserver struct {
	invokes   []string
	hostCalls []string
}

func (o *recordingObserver) ObserveInvoke(name string, latency time.Duration, err error) {
	o.invokes = append(o.invokes, name)
}

func (o *recordingObserver) ObserveHostCall(name string, err error) {
	o.hostCalls = append(o.hostCalls, name)
}

func TestRunReportsInvokeAndHostCallsToObserver(t *testing.T) {
	b := newFakeBoard()
	reg := event.NewRegistry(nil)
	table := dispatch.NewTable()
	table.Register("test.hostcall", func(call engine.Call) (uint32, error) { return 0, nil })
	eng := &fakeEngine{
		pendingCall: &fakeCall{name: "test.hostcall"},
		invokeResults: []engine.Outcome{
			{Status: engine.StatusHost},
			{Status: engine.StatusDone},
		},
		resumeResults: []engine.Outcome{
			{Status: engine.StatusDone},
		},
	}
	obs := &recordingObserver{}
	s := New(b, reg, table, eng, nil, nil, obs)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, s.Run(ctx), context.Canceled)

	assert.Equal(t, []string{"init", "main"}, obs.invokes)
	assert.Equal(t, []string{"test.hostcall"}, obs.hostCalls)
}

func TestProcessEventPropagatesWaitCancellation(t *testing.T) {
	b := newFakeBoard()
	reg := event.NewRegistry(nil)
	table := dispatch.NewTable()
	eng := &fakeEngine{}
	s := New(b, reg, table, eng, nil, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := s.processEvent(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled))
}
