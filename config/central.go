package config

import (
	"fmt"
	"time"

	"github.com/kilianp07/csms/core/central"
	"github.com/kilianp07/csms/core/session"
)

// CentralConfig holds the protocol timing knobs as plain seconds, the way
// they are written in config files.
type CentralConfig struct {
	HeartbeatIntervalSeconds     int     `json:"heartbeat_interval_seconds"`
	ToleranceFactor              float64 `json:"tolerance_factor"`
	SweepIntervalSeconds         int     `json:"sweep_interval_seconds"`
	CommandTimeoutSeconds        int     `json:"command_timeout_seconds"`
	FirmwareTimeoutSeconds       int     `json:"firmware_timeout_seconds"`
	FailTransactionsOnDisconnect bool    `json:"fail_transactions_on_disconnect"`
}

// SetDefaults applies sane defaults.
func (c *CentralConfig) SetDefaults() {
	if c.HeartbeatIntervalSeconds <= 0 {
		c.HeartbeatIntervalSeconds = 60
	}
	if c.ToleranceFactor <= 0 {
		c.ToleranceFactor = 1.5
	}
	if c.SweepIntervalSeconds <= 0 {
		c.SweepIntervalSeconds = 5
	}
	if c.CommandTimeoutSeconds <= 0 {
		c.CommandTimeoutSeconds = 30
	}
	if c.FirmwareTimeoutSeconds <= 0 {
		c.FirmwareTimeoutSeconds = 300
	}
}

// Validate checks mandatory fields.
func (c CentralConfig) Validate() error {
	if c.ToleranceFactor < 1 {
		return fmt.Errorf("tolerance_factor must be >= 1, got %v", c.ToleranceFactor)
	}
	if c.SweepIntervalSeconds > c.HeartbeatIntervalSeconds {
		return fmt.Errorf("sweep_interval_seconds (%d) must not exceed heartbeat_interval_seconds (%d)",
			c.SweepIntervalSeconds, c.HeartbeatIntervalSeconds)
	}
	return nil
}

// Central converts the file representation into the coordinator's config.
func (c CentralConfig) Central() central.Config {
	return central.Config{
		Session: session.Config{
			HeartbeatInterval: time.Duration(c.HeartbeatIntervalSeconds) * time.Second,
			ToleranceFactor:   c.ToleranceFactor,
			SweepInterval:     time.Duration(c.SweepIntervalSeconds) * time.Second,
		},
		CommandTimeout:               time.Duration(c.CommandTimeoutSeconds) * time.Second,
		FirmwareTimeout:              time.Duration(c.FirmwareTimeoutSeconds) * time.Second,
		FailTransactionsOnDisconnect: c.FailTransactionsOnDisconnect,
	}
}
