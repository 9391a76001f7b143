package model

import "time"

// MeterValueSample is one measurand reading reported through MeterValues.
// Samples are append-only; they are never mutated after insert.
type MeterValueSample struct {
	TransactionID string    `json:"transaction_id"`
	ChargePointID string    `json:"charge_point_id"`
	ConnectorID   int       `json:"connector_id"`
	Timestamp     time.Time `json:"timestamp"`
	Measurand     string    `json:"measurand"`
	Value         float64   `json:"value"`
	Unit          string    `json:"unit"`
	Phase         string    `json:"phase,omitempty"`
	Location      string    `json:"location,omitempty"`
}
