package central

import (
	"time"

	"github.com/kilianp07/csms/core/session"
)

// Config tunes the central system's session liveness and outbound command
// timeouts.
type Config struct {
	Session session.Config
	// CommandTimeout bounds interactive commands (remote start/stop,
	// configuration).
	CommandTimeout time.Duration
	// FirmwareTimeout bounds UpdateFirmware acknowledgements, which can be
	// slow on constrained stations.
	FirmwareTimeout time.Duration
	// FailTransactionsOnDisconnect administratively fails a station's
	// active transactions when its session drops. Off by default: stations
	// normally reconnect and retransmit their StopTransaction.
	FailTransactionsOnDisconnect bool
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	c.Session.SetDefaults()
	if c.CommandTimeout <= 0 {
		c.CommandTimeout = 30 * time.Second
	}
	if c.FirmwareTimeout <= 0 {
		c.FirmwareTimeout = 5 * time.Minute
	}
}
