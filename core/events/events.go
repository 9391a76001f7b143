package events

import (
	"time"

	"github.com/kilianp07/csms/core/ocpp"
)

// Event is the union of bus event payloads.
type Event any

// ConnectionKind distinguishes connection lifecycle transitions.
type ConnectionKind string

const (
	Connected    ConnectionKind = "connected"
	Superseded   ConnectionKind = "superseded"
	Disconnected ConnectionKind = "disconnected"
	// TimedOut marks a station dropped by the heartbeat sweep.
	TimedOut ConnectionKind = "timed_out"
)

// ConnectionEvent is published on every station connect/disconnect.
type ConnectionEvent struct {
	ChargePointID string
	Kind          ConnectionKind
	Timestamp     time.Time
}

// TransactionEvent is published when a transaction opens or closes.
type TransactionEvent struct {
	ChargePointID string
	ConnectorID   int
	TransactionID string
	Started       bool
	EnergyWh      float64
}

// CallEvent reports the outcome of a central-system-initiated call.
type CallEvent struct {
	ChargePointID string
	Action        ocpp.Action
	Acknowledged  bool
	TimedOut      bool
	Latency       time.Duration
}
