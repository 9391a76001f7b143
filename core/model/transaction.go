package model

import "time"

// TransactionStatus describes the lifecycle of a charging transaction.
type TransactionStatus string

const (
	TxActive    TransactionStatus = "Active"
	TxCompleted TransactionStatus = "Completed"
	TxStopped   TransactionStatus = "Stopped"
	TxFailed    TransactionStatus = "Failed"
)

// Transaction records one charging session from authorized start to metered
// stop. References to the charge point and connector are plain identifiers
// resolved through the store, never object pointers.
type Transaction struct {
	ID            string            `json:"transaction_id"`
	ChargePointID string            `json:"charge_point_id"`
	ConnectorID   int               `json:"connector_id"`
	IdTag         string            `json:"id_tag"`
	MeterStart    float64           `json:"meter_start"`
	MeterStop     float64           `json:"meter_stop"`
	StartTime     time.Time         `json:"start_time"`
	StopTime      *time.Time        `json:"stop_time,omitempty"`
	StopReason    string            `json:"stop_reason,omitempty"`
	Status        TransactionStatus `json:"status"`
	// EnergyWh is the energy delivered, derived on close as meterStop-meterStart.
	EnergyWh float64 `json:"energy_wh"`
	// RateHint stores an externally supplied tariff rate, if any. Cost
	// computation itself happens outside this core.
	RateHint float64 `json:"rate_hint,omitempty"`
}

// Active reports whether the transaction is still open. An open transaction
// has no stop time by definition.
func (t Transaction) Active() bool { return t.Status == TxActive }

// EnergyKWh returns the delivered energy converted from Wh.
func (t Transaction) EnergyKWh() float64 { return t.EnergyWh / 1000 }
