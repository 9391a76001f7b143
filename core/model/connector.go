package model

// ConnectorStatus enumerates the OCPP 1.6 connector states reported through
// StatusNotification. The station is authoritative for its own hardware
// state, so the central system stores these verbatim.
type ConnectorStatus string

const (
	StatusAvailable     ConnectorStatus = "Available"
	StatusPreparing     ConnectorStatus = "Preparing"
	StatusCharging      ConnectorStatus = "Charging"
	StatusSuspendedEVSE ConnectorStatus = "SuspendedEVSE"
	StatusSuspendedEV   ConnectorStatus = "SuspendedEV"
	StatusFinishing     ConnectorStatus = "Finishing"
	StatusReserved      ConnectorStatus = "Reserved"
	StatusUnavailable   ConnectorStatus = "Unavailable"
	StatusFaulted       ConnectorStatus = "Faulted"
)

// NoError is the OCPP sentinel error code meaning the connector reports no
// fault.
const NoError = "NoError"

// Valid reports whether s is one of the recognized connector states.
func (s ConnectorStatus) Valid() bool {
	switch s {
	case StatusAvailable, StatusPreparing, StatusCharging, StatusSuspendedEVSE,
		StatusSuspendedEV, StatusFinishing, StatusReserved, StatusUnavailable,
		StatusFaulted:
		return true
	}
	return false
}

// Connector is one physical socket on a charge point, identified by the pair
// (charge point ID, connector number starting at 1). Connector 0 addresses
// the charge point itself in StatusNotification and is never stored here.
type Connector struct {
	ChargePointID string          `json:"charge_point_id"`
	ID            int             `json:"connector_id"`
	Type          string          `json:"type"`
	MaxPowerKW    float64         `json:"max_power_kw"`
	MaxVoltage    float64         `json:"max_voltage"`
	MaxAmperage   float64         `json:"max_amperage"`
	Status        ConnectorStatus `json:"status"`
	ErrorCode     string          `json:"error_code"`
	// TransactionID references the active transaction, empty when idle.
	TransactionID string `json:"transaction_id,omitempty"`
}

// Occupied reports whether an active transaction is bound to the connector.
func (c Connector) Occupied() bool { return c.TransactionID != "" }
