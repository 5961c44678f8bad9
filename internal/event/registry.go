package event

import (
	"errors"
	"fmt"

	"github.com/wasefire/wfcore/internal/constants"
	"github.com/wasefire/wfcore/internal/logging"
)

// ErrTrap is returned by Enable/Disable when the applet misuses the handler
// registry (spec.md §3 "Handler": "registering a duplicate key is a trap,
// unregistering an absent key is a trap").
var ErrTrap = errors.New("event: trap")

// Action is the scheduler's next step after asking the registry to pop
// (spec.md §4.5 "Pop policy").
type Action int

const (
	// ActionHandle means the event Pop returns alongside it should be
	// dispatched.
	ActionHandle Action = iota
	// ActionReply means the engine signalled it finished a callback and
	// control should be handed back to the applet (wasm-only).
	ActionReply
	// ActionWait means the queue is empty; the caller should block on the
	// board's wait_event() and push the result.
	ActionWait
)

// Registry owns one applet's pending event queue and handler table
// (spec.md §3 "Applet": "one bounded event queue (capacity 5); one handler
// registry indexed by event key").
type Registry struct {
	queue    []Event
	handlers map[Key]Handler
	done     bool // wasm-only: the engine just returned from a callback
	log      *logging.Logger
}

// NewRegistry creates an empty registry. If log is nil, logging.Default()
// is used.
func NewRegistry(log *logging.Logger) *Registry {
	if log == nil {
		log = logging.Default()
	}
	return &Registry{handlers: make(map[Key]Handler), log: log}
}

// Push applies spec.md §4.5's push policy in order: no handler → drop; a
// duplicate of an already-queued event → drop; queue full → drop; else
// enqueue.
func (r *Registry) Push(e Event) {
	key := e.Key()
	if _, ok := r.handlers[key]; !ok {
		r.log.Trace("discarding event with no handler", "event", fmt.Sprintf("%+v", e))
		return
	}
	for _, queued := range r.queue {
		if queued == e {
			r.log.Trace("merging duplicate event", "event", fmt.Sprintf("%+v", e))
			return
		}
	}
	if len(r.queue) >= constants.EventQueueCapacity {
		r.log.Warn("dropping event, queue full", "event", fmt.Sprintf("%+v", e))
		return
	}
	r.log.Debug("pushing event", "event", fmt.Sprintf("%+v", e))
	r.queue = append(r.queue, e)
}

// Pop returns the next action per spec.md §4.5's pop policy: a pending
// "done return from callback" signal takes priority and yields ActionReply;
// otherwise the head of the queue is dequeued, or ActionWait if empty.
func (r *Registry) Pop() (Action, Event) {
	if r.done {
		r.done = false
		return ActionReply, Event{}
	}
	if len(r.queue) == 0 {
		return ActionWait, Event{}
	}
	e := r.queue[0]
	r.queue = r.queue[1:]
	return ActionHandle, e
}

// SetDone records that the wasm engine just returned from a callback, so
// the next Pop yields ActionReply.
func (r *Registry) SetDone() { r.done = true }

// Len returns the number of events currently queued.
func (r *Registry) Len() int { return len(r.queue) }

// Enable registers a new handler. Traps if the key is already registered.
func (r *Registry) Enable(h Handler) error {
	if _, exists := r.handlers[h.Key]; exists {
		r.log.Warn("tried to overwrite existing handler", "key", fmt.Sprintf("%+v", h.Key))
		return ErrTrap
	}
	r.handlers[h.Key] = h
	return nil
}

// Disable removes the handler for key and any events queued under it
// (spec.md §5 invariant (iv)). Traps if no handler is registered for key.
func (r *Registry) Disable(key Key) error {
	if _, exists := r.handlers[key]; !exists {
		r.log.Warn("tried to remove non-existing handler", "key", fmt.Sprintf("%+v", key))
		return ErrTrap
	}
	delete(r.handlers, key)
	kept := r.queue[:0]
	for _, e := range r.queue {
		if e.Key() != key {
			kept = append(kept, e)
		}
	}
	r.queue = kept
	return nil
}

// Get returns the handler registered for key, if any.
func (r *Registry) Get(key Key) (Handler, bool) {
	h, ok := r.handlers[key]
	return h, ok
}
