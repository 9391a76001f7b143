// Package metrics defines interfaces for recording central-system metrics.
// Sinks like the Prometheus sink in infra/metrics record protocol traffic,
// connectivity and transaction activity and can be combined with
// NewMultiSink. A collector bridges the internal event bus to a sink.
package metrics
