package wasefire

import (
	"sync/atomic"
	"time"
)

// latencyBuckets defines the invocation-latency histogram buckets in
// nanoseconds, the same logarithmic spacing the teacher's root metrics.go
// uses for per-I/O-op latency, applied here to per-invocation latency
// (init/main/callback trampolines) instead.
var latencyBuckets = []uint64{
	1_000,          // 1us
	10_000,         // 10us
	100_000,        // 100us
	1_000_000,      // 1ms
	10_000_000,     // 10ms
	100_000_000,    // 100ms
	1_000_000_000,  // 1s
	10_000_000_000, // 10s
}

const numLatencyBuckets = 8

// Metrics tracks a Platform's lifecycle and scheduling statistics. Unlike
// the teacher's per-block-op Metrics (reads/writes/discards/flushes with
// byte counts), there is one unit of work here: an engine invocation
// (init, main, or one callback dispatch), plus the host calls it makes
// along the way — spec.md has no I/O surface to count bytes against.
type Metrics struct {
	Invocations   atomic.Uint64 // Total top-level engine.Invoke calls
	InvokeErrors  atomic.Uint64 // Invocations that returned a non-nil error
	HostCalls     atomic.Uint64 // Total dispatch.Table.Dispatch calls
	HostCallErrs  atomic.Uint64 // Host calls that returned a non-nil error
	traps         atomic.Uint64 // Invocations that ended in scheduler.ErrTrapped

	totalLatencyNs atomic.Uint64
	latencyBuckets [numLatencyBuckets]atomic.Uint64

	StartTime atomic.Int64 // Platform run start (UnixNano), 0 if never run
	StopTime  atomic.Int64 // Platform run stop (UnixNano), 0 while running
}

func newMetrics() *Metrics { return &Metrics{} }

func (m *Metrics) markStarted() { m.StartTime.Store(time.Now().UnixNano()) }
func (m *Metrics) markStopped() { m.StopTime.Store(time.Now().UnixNano()) }

func (m *Metrics) recordInvoke(latency time.Duration, err error) {
	m.Invocations.Add(1)
	if err != nil {
		m.InvokeErrors.Add(1)
	}
	ns := uint64(latency.Nanoseconds())
	m.totalLatencyNs.Add(ns)
	for i, bucket := range latencyBuckets {
		if ns <= bucket {
			m.latencyBuckets[i].Add(1)
		}
	}
}

func (m *Metrics) recordHostCall(err error) {
	m.HostCalls.Add(1)
	if err != nil {
		m.HostCallErrs.Add(1)
	}
}

// Reset clears every counter, for reuse across table-driven tests the way
// the teacher's Metrics.Reset supports.
func (m *Metrics) Reset() {
	m.Invocations.Store(0)
	m.InvokeErrors.Store(0)
	m.HostCalls.Store(0)
	m.HostCallErrs.Store(0)
	m.traps.Store(0)
	m.totalLatencyNs.Store(0)
	for i := range m.latencyBuckets {
		m.latencyBuckets[i].Store(0)
	}
	m.StartTime.Store(0)
	m.StopTime.Store(0)
}

// MetricsSnapshot is a point-in-time read of a Platform's Metrics.
type MetricsSnapshot struct {
	Invocations  uint64
	InvokeErrors uint64
	HostCalls    uint64
	HostCallErrs uint64
	Traps        uint64

	AvgLatencyNs uint64
	UptimeNs     uint64
	Running      bool

	LatencyHistogram [numLatencyBuckets]uint64
}

// Snapshot returns a point-in-time snapshot of the platform's metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		Invocations:  m.Invocations.Load(),
		InvokeErrors: m.InvokeErrors.Load(),
		HostCalls:    m.HostCalls.Load(),
		HostCallErrs: m.HostCallErrs.Load(),
		Traps:        m.traps.Load(),
	}
	if snap.Invocations > 0 {
		snap.AvgLatencyNs = m.totalLatencyNs.Load() / snap.Invocations
	}
	for i := range m.latencyBuckets {
		snap.LatencyHistogram[i] = m.latencyBuckets[i].Load()
	}

	start := m.StartTime.Load()
	stop := m.StopTime.Load()
	switch {
	case start == 0:
	case stop > 0:
		snap.UptimeNs = uint64(stop - start)
	default:
		snap.Running = true
		snap.UptimeNs = uint64(time.Now().UnixNano() - start)
	}
	return snap
}

// Observer is the scheduler-facing instrumentation hook every Platform
// wires in automatically (internal/scheduler.Observer, satisfied
// structurally so internal/scheduler never imports this package).
// NewMetricsObserver mirrors the teacher's pluggable root Observer
// (metrics.go's Observer/MetricsObserver/NoOpObserver triad), generalized
// from per-I/O-op callbacks to per-invocation/per-host-call ones.
type Observer interface {
	ObserveInvoke(name string, latency time.Duration, err error)
	ObserveHostCall(name string, err error)
}

// NoOpObserver discards every observation.
type NoOpObserver struct{}

func (NoOpObserver) ObserveInvoke(string, time.Duration, error) {}
func (NoOpObserver) ObserveHostCall(string, error)               {}

// metricsObserver implements Observer by recording into a *Metrics.
type metricsObserver struct{ metrics *Metrics }

func newMetricsObserver(m *Metrics) *metricsObserver { return &metricsObserver{metrics: m} }

func (o *metricsObserver) ObserveInvoke(name string, latency time.Duration, err error) {
	o.metrics.recordInvoke(latency, err)
}

func (o *metricsObserver) ObserveHostCall(name string, err error) {
	o.metrics.recordHostCall(err)
}

// fanoutObserver forwards every observation to the platform's own metrics
// observer and a caller-supplied Observer (e.g. a RecordingObserver in tests).
type fanoutObserver struct {
	metricsObs Observer
	userObs    Observer
}

func (f fanoutObserver) ObserveInvoke(name string, latency time.Duration, err error) {
	f.metricsObs.ObserveInvoke(name, latency, err)
	f.userObs.ObserveInvoke(name, latency, err)
}

func (f fanoutObserver) ObserveHostCall(name string, err error) {
	f.metricsObs.ObserveHostCall(name, err)
	f.userObs.ObserveHostCall(name, err)
}

var (
	_ Observer = (*metricsObserver)(nil)
	_ Observer = NoOpObserver{}
	_ Observer = fanoutObserver{}
)
