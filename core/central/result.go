package central

import "encoding/json"

// Command API error strings surfaced as data, never as Go errors, across the
// API boundary.
const (
	ErrorNotConnected     = "NotConnected"
	ErrorTimeout          = "Timeout"
	ErrorConnectionClosed = "ConnectionClosed"
)

// CommandResult is the uniform outcome of a central-system-initiated
// command. Station rejections land in Status with Success=false; transport
// and timeout failures land in Error.
type CommandResult struct {
	Success bool            `json:"success"`
	Status  string          `json:"status,omitempty"`
	Error   string          `json:"error,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func notConnected() CommandResult {
	return CommandResult{Error: ErrorNotConnected}
}
