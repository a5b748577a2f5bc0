// Package internaldefs holds the metric name definitions shared by the
// Prometheus and OTel exporters so both surfaces always agree.
package internaldefs
