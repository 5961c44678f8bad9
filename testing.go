package wasefire

import (
	"sync"
	"time"
)

// InvokeRecord is one observed top-level engine invocation.
type InvokeRecord struct {
	Name    string
	Latency time.Duration
	Err     error
}

// HostCallRecord is one observed host-function dispatch.
type HostCallRecord struct {
	Name string
	Err  error
}

// RecordingObserver is a test double implementing Observer, for callers
// passing it to Boot through Options.Observer who want to assert on what the
// scheduler invoked without standing up a real Metrics snapshot — the same
// role the teacher's MockBackend plays for Backend-consuming tests, adapted
// from a byte-tracking mock backend to a call-tracking observer.
type RecordingObserver struct {
	mu        sync.Mutex
	invokes   []InvokeRecord
	hostCalls []HostCallRecord
}

// NewRecordingObserver returns a RecordingObserver ready to use.
func NewRecordingObserver() *RecordingObserver {
	return &RecordingObserver{}
}

// ObserveInvoke implements Observer.
func (r *RecordingObserver) ObserveInvoke(name string, latency time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invokes = append(r.invokes, InvokeRecord{Name: name, Latency: latency, Err: err})
}

// ObserveHostCall implements Observer.
func (r *RecordingObserver) ObserveHostCall(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hostCalls = append(r.hostCalls, HostCallRecord{Name: name, Err: err})
}

// Invokes returns a copy of every recorded invocation, in order.
func (r *RecordingObserver) Invokes() []InvokeRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]InvokeRecord, len(r.invokes))
	copy(out, r.invokes)
	return out
}

// HostCalls returns a copy of every recorded host call, in order.
func (r *RecordingObserver) HostCalls() []HostCallRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]HostCallRecord, len(r.hostCalls))
	copy(out, r.hostCalls)
	return out
}

// InvokeCount returns how many invocations named name were observed.
func (r *RecordingObserver) InvokeCount(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, rec := range r.invokes {
		if rec.Name == name {
			n++
		}
	}
	return n
}

// HostCallCount returns how many host calls named name were observed.
func (r *RecordingObserver) HostCallCount(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, rec := range r.hostCalls {
		if rec.Name == name {
			n++
		}
	}
	return n
}

// Reset clears every recorded call.
func (r *RecordingObserver) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invokes = nil
	r.hostCalls = nil
}

var _ Observer = (*RecordingObserver)(nil)
