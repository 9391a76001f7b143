package mqtt

import (
	"errors"
	"sync"
)

// ErrConnClosed is returned by reads and writes after Close.
var ErrConnClosed = errors.New("mqtt connection closed")

// stationConn is one station's framed channel over the shared MQTT client.
// Frames arriving on the station's up topic are queued into inbound; writes
// publish to the station's down topic.
type stationConn struct {
	stationID string
	inbound   chan []byte
	publish   func(frame []byte) error

	closeOnce sync.Once
	closed    chan struct{}
	onClose   func()
}

func newStationConn(stationID string, buffer int, publish func([]byte) error, onClose func()) *stationConn {
	if buffer <= 0 {
		buffer = 64
	}
	return &stationConn{
		stationID: stationID,
		inbound:   make(chan []byte, buffer),
		publish:   publish,
		closed:    make(chan struct{}),
		onClose:   onClose,
	}
}

// deliver queues one inbound frame. It reports false when the connection is
// closed or the queue is full; a full queue drops the frame rather than
// stalling deliveries to other stations.
func (c *stationConn) deliver(frame []byte) bool {
	select {
	case <-c.closed:
		return false
	default:
	}
	select {
	case c.inbound <- frame:
		return true
	case <-c.closed:
		return false
	default:
		return false
	}
}

func (c *stationConn) ReadFrame() ([]byte, error) {
	// Drain queued frames before reporting the close.
	select {
	case frame := <-c.inbound:
		return frame, nil
	default:
	}
	select {
	case frame := <-c.inbound:
		return frame, nil
	case <-c.closed:
		return nil, ErrConnClosed
	}
}

func (c *stationConn) WriteFrame(frame []byte) error {
	select {
	case <-c.closed:
		return ErrConnClosed
	default:
	}
	return c.publish(frame)
}

func (c *stationConn) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		if c.onClose != nil {
			c.onClose()
		}
	})
	return nil
}
