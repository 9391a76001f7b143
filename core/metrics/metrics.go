package metrics

import (
	"time"

	"github.com/kilianp07/csms/core/model"
)

// Config defines settings for the metrics subsystem.
type Config struct {
	PrometheusEnabled bool   `json:"prometheus_enabled"`
	PrometheusPort    string `json:"prometheus_port"`
	InfluxEnabled     bool   `json:"influx_enabled"`
	InfluxURL         string `json:"influx_url"`
	InfluxToken       string `json:"influx_token"`
	InfluxOrg         string `json:"influx_org"`
	InfluxBucket      string `json:"influx_bucket"`
}

// MessageEvent describes one handled inbound protocol message.
type MessageEvent struct {
	ChargePointID string
	Action        string
	// Outcome is "result", "call_error" or "dropped".
	Outcome string
	Time    time.Time
}

// CallEvent describes the round trip of one central-system-initiated call.
type CallEvent struct {
	ChargePointID string
	Action        string
	Acknowledged  bool
	TimedOut      bool
	Latency       time.Duration
	Time          time.Time
}

// TransactionEvent describes a transaction opening or closing.
type TransactionEvent struct {
	ChargePointID string
	ConnectorID   int
	TransactionID string
	Started       bool
	EnergyWh      float64
	Time          time.Time
}

// MetricsSink records handled protocol messages. Optional recorder
// interfaces extend it for sinks that support more event types.
type MetricsSink interface {
	RecordMessage(ev MessageEvent) error
}

// CallRecorder records outbound call round trips.
type CallRecorder interface {
	RecordCall(ev CallEvent) error
}

// TransactionRecorder records transaction lifecycle events.
type TransactionRecorder interface {
	RecordTransaction(ev TransactionEvent) error
}

// MeterRecorder records energy meter samples reported by stations.
type MeterRecorder interface {
	RecordMeterValues(samples []model.MeterValueSample) error
}

// ConnectedRecorder records the number of currently bound sessions.
type ConnectedRecorder interface {
	RecordConnected(n int) error
}

// NopSink discards all records.
type NopSink struct{}

func (NopSink) RecordMessage(MessageEvent) error { return nil }
