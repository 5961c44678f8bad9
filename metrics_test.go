package wasefire

import (
	"errors"
	"testing"
	"time"
)

func TestMetricsRecordsInvocationsAndErrors(t *testing.T) {
	m := newMetrics()

	m.recordInvoke(1*time.Millisecond, nil)
	m.recordInvoke(2*time.Millisecond, errors.New("boom"))

	snap := m.Snapshot()
	if snap.Invocations != 2 {
		t.Errorf("expected 2 invocations, got %d", snap.Invocations)
	}
	if snap.InvokeErrors != 1 {
		t.Errorf("expected 1 invoke error, got %d", snap.InvokeErrors)
	}
	if snap.AvgLatencyNs == 0 {
		t.Error("expected a non-zero average latency")
	}
}

func TestMetricsRecordsHostCalls(t *testing.T) {
	m := newMetrics()

	m.recordHostCall(nil)
	m.recordHostCall(nil)
	m.recordHostCall(errors.New("trap"))

	snap := m.Snapshot()
	if snap.HostCalls != 3 {
		t.Errorf("expected 3 host calls, got %d", snap.HostCalls)
	}
	if snap.HostCallErrs != 1 {
		t.Errorf("expected 1 host call error, got %d", snap.HostCallErrs)
	}
}

func TestMetricsUptimeTracksStartAndStop(t *testing.T) {
	m := newMetrics()
	m.markStarted()
	time.Sleep(5 * time.Millisecond)

	snap := m.Snapshot()
	if !snap.Running {
		t.Error("expected Running to be true before markStopped")
	}
	if snap.UptimeNs < uint64(5*time.Millisecond) {
		t.Errorf("expected uptime >= 5ms, got %d ns", snap.UptimeNs)
	}

	m.markStopped()
	time.Sleep(5 * time.Millisecond)
	snap2 := m.Snapshot()
	if snap2.Running {
		t.Error("expected Running to be false after markStopped")
	}
	if snap2.UptimeNs > snap.UptimeNs+10*uint64(time.Millisecond) {
		t.Errorf("uptime grew after stop: %d -> %d", snap.UptimeNs, snap2.UptimeNs)
	}
}

func TestMetricsReset(t *testing.T) {
	m := newMetrics()
	m.recordInvoke(time.Millisecond, nil)
	m.recordHostCall(nil)
	m.markStarted()

	m.Reset()

	snap := m.Snapshot()
	if snap.Invocations != 0 || snap.HostCalls != 0 || snap.UptimeNs != 0 {
		t.Errorf("expected zeroed snapshot after reset, got %+v", snap)
	}
}

func TestNoOpObserverDoesNotPanic(t *testing.T) {
	var obs Observer = NoOpObserver{}
	obs.ObserveInvoke("init", time.Millisecond, nil)
	obs.ObserveHostCall("store.insert", nil)
}

func TestMetricsObserverForwardsToMetrics(t *testing.T) {
	m := newMetrics()
	obs := newMetricsObserver(m)

	obs.ObserveInvoke("main", time.Millisecond, nil)
	obs.ObserveHostCall("uart.write", errors.New("trap"))

	snap := m.Snapshot()
	if snap.Invocations != 1 {
		t.Errorf("expected 1 invocation, got %d", snap.Invocations)
	}
	if snap.HostCalls != 1 || snap.HostCallErrs != 1 {
		t.Errorf("expected 1 host call with 1 error, got %+v", snap)
	}
}
