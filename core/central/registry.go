// Package central ties the protocol core together: it binds live sessions to
// station identifiers, applies inbound notifications to charge point state,
// and exposes the command API consumed by external tooling. The registry is
// the single source of truth for which station is connected where; all other
// state is read through the persistence store.
package central

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/kilianp07/csms/core/events"
	"github.com/kilianp07/csms/core/logger"
	"github.com/kilianp07/csms/core/metrics"
	"github.com/kilianp07/csms/core/session"
	"github.com/kilianp07/csms/core/store"
	"github.com/kilianp07/csms/core/transaction"
	"github.com/kilianp07/csms/internal/eventbus"
)

// ErrInvalidStationID rejects connection attempts with malformed
// identifiers.
var ErrInvalidStationID = errors.New("invalid station identifier")

var stationIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,50}$`)

// ValidStationID reports whether id is an acceptable station identifier:
// alphanumeric, hyphen and underscore, at most 50 characters.
func ValidStationID(id string) bool { return stationIDPattern.MatchString(id) }

// Registry maps station IDs to live sessions and routes commands to them.
// The session map is the only structure here mutated by multiple goroutines;
// everything else goes through the store.
type Registry struct {
	cfg     Config
	store   store.Store
	tx      *transaction.Manager
	handler *Handler
	bus     eventbus.EventBus
	sink    metrics.MetricsSink
	log     logger.Logger

	mu       sync.Mutex
	sessions map[string]*session.Session
}

// NewRegistry wires the registry with its collaborators. bus and sink are
// optional; pass nil to disable events or metrics.
func NewRegistry(cfg Config, st store.Store, tx *transaction.Manager, bus eventbus.EventBus, sink metrics.MetricsSink, log logger.Logger) *Registry {
	cfg.SetDefaults()
	if sink == nil {
		sink = metrics.NopSink{}
	}
	r := &Registry{
		cfg:      cfg,
		store:    st,
		tx:       tx,
		bus:      bus,
		sink:     sink,
		log:      log,
		sessions: make(map[string]*session.Session),
	}
	r.handler = NewHandler(st, tx, cfg.Session.HeartbeatInterval, sink, log)
	return r
}

// Connect creates a session for a new connection, binds it to the station ID
// (superseding any prior session for the same ID) and starts its read loop.
func (r *Registry) Connect(ctx context.Context, stationID string, conn session.Conn) (*session.Session, error) {
	if !ValidStationID(stationID) {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: %q", ErrInvalidStationID, stationID)
	}

	s := session.New(stationID, conn, r.handler, r.cfg.Session, r.log)
	s.OnClosed(func(reason error) { r.onSessionClosed(s, reason) })

	r.mu.Lock()
	old := r.sessions[stationID]
	r.sessions[stationID] = s
	n := len(r.sessions)
	r.mu.Unlock()

	if old != nil {
		r.log.Warnf("station %s reconnected, superseding previous session", stationID)
		r.publish(events.ConnectionEvent{ChargePointID: stationID, Kind: events.Superseded, Timestamp: time.Now()})
		old.Close(session.ErrSuperseded)
	}

	if err := r.store.SetOnline(ctx, stationID, true); err != nil && !errors.Is(err, store.ErrNotFound) {
		r.log.Errorf("mark %s online: %v", stationID, err)
	}
	r.publish(events.ConnectionEvent{ChargePointID: stationID, Kind: events.Connected, Timestamp: time.Now()})
	r.recordConnected(n)
	r.log.Infof("station %s connected", stationID)

	go s.Run(ctx)
	return s, nil
}

// onSessionClosed unbinds a session if it is still the bound one. A stale
// close racing a newer reconnect must not unbind the replacement.
func (r *Registry) onSessionClosed(s *session.Session, reason error) {
	id := s.ID()
	r.mu.Lock()
	unbound := r.sessions[id] == s
	if unbound {
		delete(r.sessions, id)
	}
	n := len(r.sessions)
	r.mu.Unlock()
	if !unbound {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.store.SetOnline(ctx, id, false); err != nil && !errors.Is(err, store.ErrNotFound) {
		r.log.Errorf("mark %s offline: %v", id, err)
	}

	kind := events.Disconnected
	if errors.Is(reason, session.ErrHeartbeatTimeout) {
		kind = events.TimedOut
	}
	r.publish(events.ConnectionEvent{ChargePointID: id, Kind: kind, Timestamp: time.Now()})
	r.recordConnected(n)
	r.log.Infof("station %s disconnected: %v", id, reason)

	if r.cfg.FailTransactionsOnDisconnect {
		if err := r.tx.FailActiveFor(ctx, id, "ConnectionLost"); err != nil {
			r.log.Errorf("fail transactions for %s: %v", id, err)
		}
	}
}

// Lookup returns the live session bound to the station, or nil.
func (r *Registry) Lookup(stationID string) *session.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[stationID]
}

// Connected returns the number of bound sessions.
func (r *Registry) Connected() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// IsOnline reports whether the station has a bound session.
func (r *Registry) IsOnline(stationID string) bool { return r.Lookup(stationID) != nil }

// Shutdown closes every bound session and waits for them to finish.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	sessions := make([]*session.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()
	for _, s := range sessions {
		s.Close(session.ErrConnectionClosed)
		<-s.Done()
	}
}

func (r *Registry) publish(ev events.Event) {
	if r.bus != nil {
		r.bus.Publish(ev)
	}
}

func (r *Registry) recordConnected(n int) {
	if rec, ok := r.sink.(metrics.ConnectedRecorder); ok {
		if err := rec.RecordConnected(n); err != nil {
			r.log.Errorf("connected metric: %v", err)
		}
	}
}
