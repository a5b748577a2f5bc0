// Package otel provides OpenTelemetry metric exporter bindings for the
// engine's counters.
//
// [NewOTelExporter] registers an Int64ObservableCounter per engine metric;
// a single callback reads a metrics snapshot on each collection cycle.
// Callers own the MeterProvider and supply the Meter.
package otel
