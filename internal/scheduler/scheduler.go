// Package scheduler drives one applet instance end to end: boot (init then
// main), then an event-service loop that drains board events into the
// applet's handler queue and dispatches platform calls made along the way
// (spec.md §4.5, §4.6). Grounded on crates/scheduler/src/lib.rs's
// flush_events/process_event/process_applet triad, generalized from the
// teacher's internal/queue/runner.go Runner.ioLoop polling shape: pin down
// one control loop, poll a source of readiness, dispatch, repeat until the
// context is cancelled.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wasefire/wfcore/internal/board"
	"github.com/wasefire/wfcore/internal/dispatch"
	"github.com/wasefire/wfcore/internal/engine"
	"github.com/wasefire/wfcore/internal/event"
	"github.com/wasefire/wfcore/internal/logging"
)

// ErrTrapped wraps whatever caused the applet to trap; Run returns it and
// the platform is expected to stop, matching spec.md §9's guidance that a
// trap exits the platform until the multi-applet redesign lands.
var ErrTrapped = errors.New("scheduler: applet trapped")

// CallbackExport is the applet-exported trampoline the scheduler invokes to
// deliver a registered event handler. Args are packed as
// (func, data, ...payload), mirroring spec.md §4.5's "invoking the
// applet's registered func(data, ...payload...)" through "the engine's
// invoke on the trampoline" — the exact export name isn't specified
// upstream, so this is the scheduler's own convention.
const CallbackExport = "cb"

// protocolProcessor is the host protocol handler's Go-side event hook.
// Board-reported Protocol readiness is consumed here directly rather than
// through the applet's handler table: it drives internal/protocol.Handler's
// own Request→Process→Response cycle, which is what eventually deposits an
// applet-visible Protocol event of its own via AppletBridge.PutRequest.
type protocolProcessor interface {
	ProcessEvent()
}

// Observer receives instrumentation callbacks from the control loop,
// mirroring the teacher's pluggable I/O-path Observer (root metrics.go)
// generalized from per-block-op counters to per-invocation/per-host-call
// ones. A nil Observer passed to New is replaced with noopObserver.
type Observer interface {
	// ObserveInvoke is called after every top-level engine.Invoke
	// (init, main, or a callback trampoline) finishes, traps, or errors.
	ObserveInvoke(name string, latency time.Duration, err error)
	// ObserveHostCall is called after every platform call dispatched
	// through the dispatch table while draining a host-status outcome.
	ObserveHostCall(name string, err error)
}

type noopObserver struct{}

func (noopObserver) ObserveInvoke(string, time.Duration, error) {}
func (noopObserver) ObserveHostCall(string, error)               {}

// Scheduler owns the control loop for a single applet instance.
type Scheduler struct {
	board    board.Board
	events   *event.Registry
	table    *dispatch.Table
	engine   engine.Engine
	log      *logging.Logger
	protocol protocolProcessor
	observer Observer
}

// New creates a Scheduler. If log is nil, logging.Default() is used. proto
// may be nil if no host protocol transport is wired in. obs may be nil,
// in which case instrumentation is a no-op.
func New(b board.Board, events *event.Registry, table *dispatch.Table, eng engine.Engine, log *logging.Logger, proto protocolProcessor, obs Observer) *Scheduler {
	if log == nil {
		log = logging.Default()
	}
	if obs == nil {
		obs = noopObserver{}
	}
	return &Scheduler{board: b, events: events, table: table, engine: eng, log: log, protocol: proto, observer: obs}
}

// Run boots the applet and services events until ctx is done or the applet
// traps. It returns ctx.Err() on cancellation and ErrTrapped on a trap.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Debug("executing init")
	if err := s.invoke(ctx, "init", nil, 0); err != nil {
		return err
	}
	if action, _ := s.events.Pop(); action != event.ActionReply {
		return fmt.Errorf("scheduler: init left an unexpected pending event action")
	}

	s.log.Debug("executing main")
	if err := s.invoke(ctx, "main", nil, 0); err != nil {
		return err
	}

	s.log.Debug("returned from main, servicing callbacks only")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		s.flushBoardEvents()
		if err := s.processEvent(ctx); err != nil {
			return err
		}
	}
}

// flushBoardEvents drains whatever the board already has buffered without
// blocking (spec.md §5's ISR-fed lock-free queue, stood in for by a Go
// channel).
func (s *Scheduler) flushBoardEvents() {
	for {
		select {
		case e := <-s.board.Events():
			s.routeBoardEvent(e)
		default:
			return
		}
	}
}

// routeBoardEvent delivers a board-reported event to the right consumer:
// Protocol readiness drives the host protocol handler directly (it is not
// an applet-visible event), everything else is queued for the applet as
// usual.
func (s *Scheduler) routeBoardEvent(e event.Event) {
	if e.Kind == event.KindProtocol && s.protocol != nil {
		s.protocol.ProcessEvent()
		return
	}
	s.events.Push(e)
}

// processEvent handles exactly one step: dispatch a ready event, consume a
// pending callback-return signal, or block on the board for the next event
// when the queue is empty (spec.md §4.5 "ActionWait").
func (s *Scheduler) processEvent(ctx context.Context) error {
	for {
		action, e := s.events.Pop()
		switch action {
		case event.ActionHandle:
			return s.handle(ctx, e)
		case event.ActionReply:
			return nil
		case event.ActionWait:
			waited, err := s.board.Wait(ctx)
			if err != nil {
				return err
			}
			s.routeBoardEvent(waited)
		default:
			return fmt.Errorf("scheduler: unknown pop action %v", action)
		}
	}
}

// handle invokes the applet's registered callback for e.
func (s *Scheduler) handle(ctx context.Context, e event.Event) error {
	h, ok := s.events.Get(e.Key())
	if !ok {
		// The handler was disabled between push and pop; registry.Disable
		// already purges matching queued events, so this shouldn't happen,
		// but there's nothing to deliver to if it does.
		s.log.Warn("dropping event with no handler at dispatch time", "key", fmt.Sprintf("%+v", e.Key()))
		return nil
	}
	args := append([]uint32{h.Func, h.Data}, payload(e)...)
	s.log.Trace("dispatching event", "key", fmt.Sprintf("%+v", e.Key()))
	return s.invoke(ctx, CallbackExport, args, 0)
}

// payload packs the fields of e relevant to its Kind into callback args,
// beyond the (func, data) pair every callback gets.
func payload(e event.Event) []uint32 {
	switch e.Kind {
	case event.KindButton:
		if e.Pressed {
			return []uint32{1}
		}
		return []uint32{0}
	case event.KindUart, event.KindUsbSerial:
		return []uint32{uint32(e.Direction)}
	case event.KindVendor:
		return []uint32{e.VendorKey}
	case event.KindFingerprintStep, event.KindFingerprintEnroll, event.KindFingerprintIdentify:
		return []uint32{e.ID}
	default:
		return nil
	}
}

// invoke runs name through the engine and drives any chained host calls to
// completion.
func (s *Scheduler) invoke(ctx context.Context, name string, args []uint32, nresults int) error {
	start := time.Now()
	outcome, err := s.engine.Invoke(ctx, name, args, nresults)
	err = s.drive(ctx, outcome, err)
	s.observer.ObserveInvoke(name, time.Since(start), err)
	return err
}

// drive processes engine outcomes, dispatching host calls through the
// platform-call table and resuming the engine, until the invocation
// finishes (Done), traps, or fails outright.
func (s *Scheduler) drive(ctx context.Context, outcome engine.Outcome, err error) error {
	for {
		if err != nil {
			if errors.Is(err, engine.ErrTrap) {
				s.log.Error("applet trapped", "err", err)
				return fmt.Errorf("%w: %w", ErrTrapped, err)
			}
			return err
		}
		switch outcome.Status {
		case engine.StatusDone:
			s.events.SetDone()
			return nil
		case engine.StatusTrap:
			s.log.Error("applet trapped")
			return ErrTrapped
		case engine.StatusHost:
			call, ok := s.engine.LastCall()
			if !ok {
				return fmt.Errorf("scheduler: host status without a pending call")
			}
			result, derr := s.table.Dispatch(call)
			s.observer.ObserveHostCall(call.Name(), derr)
			if derr != nil {
				s.log.Error("applet trapped calling host", "name", call.Name(), "err", derr)
				return fmt.Errorf("%w: %w", ErrTrapped, derr)
			}
			outcome, err = s.engine.Resume(ctx, uint32(result))
		default:
			return fmt.Errorf("scheduler: unknown engine outcome status %v", outcome.Status)
		}
	}
}
