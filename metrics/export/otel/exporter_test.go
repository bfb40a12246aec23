package otel

import (
	"errors"
	"testing"

	tenantauth "github.com/luminalhq/tenantauth"
	"go.opentelemetry.io/otel/metric/noop"
)

type stubSource struct{}

func (stubSource) MetricsSnapshot() tenantauth.MetricsSnapshot {
	return tenantauth.MetricsSnapshot{Counters: map[string]uint64{}}
}

func (stubSource) AuditDropped() uint64 { return 0 }

func TestNewOTelExporterValidation(t *testing.T) {
	if _, err := NewOTelExporterFromSource(nil, stubSource{}); !errors.Is(err, ErrNilMeter) {
		t.Fatalf("err = %v, want ErrNilMeter", err)
	}

	meter := noop.NewMeterProvider().Meter("test")
	if _, err := NewOTelExporterFromSource(meter, nil); !errors.Is(err, ErrNilSource) {
		t.Fatalf("err = %v, want ErrNilSource", err)
	}
}

func TestNewOTelExporterRegistersAndCloses(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")

	exp, err := NewOTelExporterFromSource(meter, stubSource{})
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	if len(exp.counters) != len(tenantauth.MetricIDs()) {
		t.Fatalf("registered %d counters, want %d", len(exp.counters), len(tenantauth.MetricIDs()))
	}
	if err := exp.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}

func TestCloseNilSafe(t *testing.T) {
	var exp *OTelExporter
	if err := exp.Close(); err != nil {
		t.Fatalf("Close on nil exporter: %v", err)
	}
}
