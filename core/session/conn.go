package session

// Conn is one framed, ordered, reliable bidirectional channel to a station.
// The transport behind it (websocket, MQTT, in-memory pipe) is out of scope
// for the session layer; implementations live in infra.
type Conn interface {
	// ReadFrame blocks until the next inbound frame arrives. It returns an
	// error when the channel is closed or broken; the session treats any
	// read error as a disconnect.
	ReadFrame() ([]byte, error)
	WriteFrame(frame []byte) error
	Close() error
}
