// Package session owns the per-connection protocol machinery: the read loop
// decoding and dispatching inbound frames, the registry of outstanding
// outbound calls, and heartbeat liveness tracking. One session maps to one
// physical connection; binding sessions to station IDs is the central
// registry's job.
package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/csms/core/logger"
	"github.com/kilianp07/csms/core/ocpp"
)

// State is the session lifecycle phase.
type State int32

const (
	StateConnecting State = iota
	StateActive
	StateClosing
	StateClosed
)

// recentCallCap bounds the duplicate-detection window for inbound call IDs.
const recentCallCap = 256

// Config tunes session liveness and call timeouts. Zero values fall back to
// the defaults applied in New.
type Config struct {
	// HeartbeatInterval is assigned to stations in the BootNotification
	// reply and drives the liveness window, in seconds on the wire.
	HeartbeatInterval time.Duration `json:"heartbeat_interval"`
	// ToleranceFactor stretches the liveness window: a station is dropped
	// after HeartbeatInterval*ToleranceFactor without any inbound message.
	ToleranceFactor float64 `json:"tolerance_factor"`
	// SweepInterval is the period of the timeout sweeper.
	SweepInterval time.Duration `json:"sweep_interval"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 60 * time.Second
	}
	if c.ToleranceFactor <= 0 {
		c.ToleranceFactor = 1.5
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = 5 * time.Second
	}
}

// Handler processes one inbound Call and returns the reply payload. A
// returned error becomes a CallError "InternalError"; business rejections
// (blocked token, concurrent transaction) belong in the payload itself.
type Handler interface {
	HandleCall(ctx context.Context, chargePointID string, req ocpp.Request) (any, error)
}

// Session drives one station connection. The read loop processes inbound
// frames strictly in arrival order; outbound calls from other goroutines
// suspend on the pending-call registry until the read loop delivers the
// reply.
type Session struct {
	id      string
	conn    Conn
	handler Handler
	pending *PendingCalls
	cfg     Config
	log     logger.Logger

	state      atomic.Int32
	lastSeen   atomic.Int64
	hbInterval atomic.Int64

	writeMu sync.Mutex

	closeOnce   sync.Once
	closedCh    chan struct{}
	closeReason error
	onClosed    func(reason error)

	seenMu    sync.Mutex
	seen      map[string]struct{}
	seenOrder []string
}

// New creates a session in the Connecting state for an already-established
// connection.
func New(id string, conn Conn, handler Handler, cfg Config, log logger.Logger) *Session {
	cfg.SetDefaults()
	s := &Session{
		id:       id,
		conn:     conn,
		handler:  handler,
		pending:  NewPendingCalls(log),
		cfg:      cfg,
		log:      log,
		closedCh: make(chan struct{}),
		seen:     make(map[string]struct{}, recentCallCap),
	}
	s.hbInterval.Store(int64(cfg.HeartbeatInterval))
	s.touch()
	return s
}

// ID returns the station identifier bound to this session.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle phase.
func (s *Session) State() State { return State(s.state.Load()) }

// LastSeen returns the time of the last inbound frame.
func (s *Session) LastSeen() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

// HeartbeatInterval returns the interval currently assigned to the station.
func (s *Session) HeartbeatInterval() time.Duration {
	return time.Duration(s.hbInterval.Load())
}

// SetHeartbeatInterval adjusts the liveness window, typically after the
// interval has been negotiated in the BootNotification reply.
func (s *Session) SetHeartbeatInterval(d time.Duration) {
	if d > 0 {
		s.hbInterval.Store(int64(d))
	}
}

// OnClosed registers a callback invoked exactly once with the close reason.
// Must be set before Run.
func (s *Session) OnClosed(fn func(reason error)) { s.onClosed = fn }

// Pending exposes the pending-call registry, mainly for tests and metrics.
func (s *Session) Pending() *PendingCalls { return s.pending }

// CloseReason returns the error the session closed with, nil while open.
func (s *Session) CloseReason() error {
	select {
	case <-s.closedCh:
		return s.closeReason
	default:
		return nil
	}
}

// Done is closed when the session reaches Closed.
func (s *Session) Done() <-chan struct{} { return s.closedCh }

func (s *Session) touch() {
	s.lastSeen.Store(time.Now().UnixNano())
}

// Run processes inbound frames until the connection fails, the context is
// canceled or the session is closed. Inbound Calls are handled inline so one
// station's messages are never reordered.
func (s *Session) Run(ctx context.Context) {
	s.state.Store(int32(StateActive))
	s.touch()
	go s.sweep()
	go func() {
		select {
		case <-ctx.Done():
			s.Close(ErrConnectionClosed)
		case <-s.closedCh:
		}
	}()

	for {
		raw, err := s.conn.ReadFrame()
		if err != nil {
			if s.State() == StateActive {
				s.log.Infof("read loop ended for %s: %v", s.id, err)
			}
			s.Close(ErrConnectionClosed)
			return
		}
		s.handleFrame(ctx, raw)
		select {
		case <-s.closedCh:
			return
		default:
		}
	}
}

func (s *Session) handleFrame(ctx context.Context, raw []byte) {
	f, err := ocpp.Decode(raw)
	if err != nil {
		// Transport-level garbage: a client this broken gets disconnected.
		s.log.Errorf("malformed frame from %s: %v", s.id, err)
		s.Close(ErrConnectionClosed)
		return
	}
	s.touch()

	if f.IsReply() {
		s.pending.Resolve(f)
		return
	}

	if s.alreadyProcessed(f.ID) {
		s.writeError(f.ID, ocpp.ErrCodeProtocolError, "already processed")
		return
	}

	req, err := ocpp.DecodeRequest(f)
	if err != nil {
		var de *ocpp.DecodeError
		code := ocpp.ErrCodeGenericError
		if errors.As(err, &de) {
			switch de.Kind {
			case ocpp.UnknownAction:
				code = ocpp.ErrCodeNotImplemented
			case ocpp.SchemaViolation:
				code = ocpp.ErrCodeFormationViolation
			}
		}
		s.log.Warnf("rejecting %s call %s from %s: %v", f.Action, f.ID, s.id, err)
		s.writeError(f.ID, code, err.Error())
		return
	}

	payload, err := s.handler.HandleCall(ctx, s.id, req)
	if err != nil {
		s.log.Errorf("handler failed for %s %s: %v", s.id, f.Action, err)
		s.writeError(f.ID, ocpp.ErrCodeInternalError, "internal error")
		return
	}
	out, err := ocpp.EncodeResult(f.ID, payload)
	if err != nil {
		s.log.Errorf("encode result for %s %s: %v", s.id, f.Action, err)
		s.writeError(f.ID, ocpp.ErrCodeInternalError, "internal error")
		return
	}
	if err := s.write(out); err != nil {
		// Best-effort reply; the socket may already be gone.
		s.log.Warnf("write result to %s: %v", s.id, err)
	}
}

// alreadyProcessed records the call ID and reports whether it was seen
// before, within a bounded window of recent calls.
func (s *Session) alreadyProcessed(id string) bool {
	s.seenMu.Lock()
	defer s.seenMu.Unlock()
	if _, ok := s.seen[id]; ok {
		return true
	}
	s.seen[id] = struct{}{}
	s.seenOrder = append(s.seenOrder, id)
	if len(s.seenOrder) > recentCallCap {
		oldest := s.seenOrder[0]
		s.seenOrder = s.seenOrder[1:]
		delete(s.seen, oldest)
	}
	return false
}

// SendCall issues a central-system-initiated call and suspends the calling
// goroutine until the station replies, the timeout fires or the session
// closes. The read loop is never blocked by a SendCall in flight.
func (s *Session) SendCall(ctx context.Context, action ocpp.Action, payload any, timeout time.Duration) (*ocpp.Frame, error) {
	if s.State() != StateActive {
		return nil, ErrNotActive
	}
	id := uuid.NewString()
	raw, err := ocpp.EncodeCall(id, action, payload)
	if err != nil {
		return nil, err
	}
	ch := s.pending.Register(id, action, timeout)
	if err := s.write(raw); err != nil {
		s.pending.Forget(id)
		return nil, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case out := <-ch:
		return out.Frame, out.Err
	case <-timer.C:
		s.pending.Forget(id)
		return nil, ErrCallTimeout
	case <-ctx.Done():
		s.pending.Forget(id)
		return nil, ctx.Err()
	}
}

func (s *Session) write(frame []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteFrame(frame)
}

func (s *Session) writeError(id string, code ocpp.ErrorCode, description string) {
	out, err := ocpp.EncodeError(id, code, description)
	if err != nil {
		s.log.Errorf("encode call error: %v", err)
		return
	}
	if err := s.write(out); err != nil {
		s.log.Warnf("write call error to %s: %v", s.id, err)
	}
}

// sweep periodically evicts timed-out pending calls and enforces the
// heartbeat liveness window.
func (s *Session) sweep() {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.closedCh:
			return
		case now := <-ticker.C:
			s.pending.Sweep(now)
			window := time.Duration(float64(s.HeartbeatInterval()) * s.cfg.ToleranceFactor)
			if now.Sub(s.LastSeen()) > window {
				s.log.Warnf("station %s silent for more than %s, closing", s.id, window)
				s.Close(ErrHeartbeatTimeout)
				return
			}
		}
	}
}

// Close transitions the session to Closed, flushes outstanding calls with
// ErrConnectionClosed and fires the OnClosed callback exactly once. Safe to
// call from any goroutine.
func (s *Session) Close(reason error) {
	s.closeOnce.Do(func() {
		s.state.Store(int32(StateClosing))
		s.closeReason = reason
		close(s.closedCh)
		_ = s.conn.Close()
		s.pending.Flush(ErrConnectionClosed)
		s.state.Store(int32(StateClosed))
		if s.onClosed != nil {
			s.onClosed(reason)
		}
	})
}
