// Package prometheus renders the engine's counters in Prometheus text
// exposition format.
//
// [NewPrometheusExporter] accepts an engine and exposes an http.Handler.
// Counter names are prefixed dashauth_*_total. Nothing is registered in a
// global registry; callers mount the Handler where they like.
package prometheus
