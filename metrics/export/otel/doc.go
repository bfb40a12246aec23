// Package otel provides OpenTelemetry bindings for tenantauth counters.
//
// [NewOTelExporter] registers an Int64ObservableCounter per engine
// counter; a single callback reads [tenantauth.Engine.MetricsSnapshot]
// on each collection cycle. Callers supply the Meter; the package never
// owns a MeterProvider.
package otel
