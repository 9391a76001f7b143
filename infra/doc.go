// Package infra holds the technical adapters: the MQTT transport, metrics
// sinks and the in-memory store. These packages depend only on the
// interfaces defined under core.
package infra
