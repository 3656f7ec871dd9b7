package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestNewRegistersAllCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(mfs) != 3 {
		t.Errorf("got %d registered metric families, want 3", len(mfs))
	}

	if c.InFlight == nil || c.GateDecisions == nil || c.AggregateBuildSeconds == nil {
		t.Fatal("Collector has unset fields")
	}
}

func TestRecordGateDecisionIncrements(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.RecordGateDecision("captured")
	c.RecordGateDecision("captured")
	c.RecordGateDecision("droppedDuplicate")

	var m dto.Metric
	if err := c.GateDecisions.WithLabelValues("captured").Write(&m); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got := m.GetCounter().GetValue(); got != 2 {
		t.Errorf("captured count = %v, want 2", got)
	}
}

func TestSetInFlight(t *testing.T) {
	c := New(prometheus.NewRegistry())
	c.SetInFlight(4)

	var m dto.Metric
	if err := c.InFlight.Write(&m); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got := m.GetGauge().GetValue(); got != 4 {
		t.Errorf("InFlight = %v, want 4", got)
	}
}

func TestNilCollectorMethodsAreNoOps(t *testing.T) {
	var c *Collector
	c.RecordGateDecision("x")
	c.SetInFlight(1)
	c.ObserveAggregateBuild(0.5)
}

func TestNewWithNilRegistrySkipsRegistration(t *testing.T) {
	c := New(nil)
	if c == nil {
		t.Fatal("New(nil) returned nil")
	}
	// Must not panic even though nothing was registered.
	c.SetInFlight(1)
}
