package model

import "time"

// ChargePoint represents a physical charging station known to the central
// system. Identity fields are reported by the station in its BootNotification;
// runtime fields track connectivity as observed by the session layer.
type ChargePoint struct {
	ID              string    `json:"charge_point_id"`
	Vendor          string    `json:"vendor"`
	Model           string    `json:"model"`
	SerialNumber    string    `json:"serial_number"`
	FirmwareVersion string    `json:"firmware_version"`
	ProtocolVersion string    `json:"protocol_version"`
	ConnectorCount  int       `json:"connector_count"`
	MaxPowerKW      float64   `json:"max_power_kw"`
	Location        string    `json:"location"`
	Online          bool      `json:"online"`
	LastSeen        time.Time `json:"last_seen"`
	Status          string    `json:"status"`
	ErrorCode       string    `json:"error_code"`
	VendorErrorCode string    `json:"vendor_error_code"`
}

// IsStale reports whether the station has not been heard from within the
// given tolerance window.
func (cp ChargePoint) IsStale(now time.Time, window time.Duration) bool {
	return now.Sub(cp.LastSeen) > window
}
