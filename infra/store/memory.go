// Package store provides the in-memory persistence backend used by tests and
// standalone runs. It implements the full core store surface behind a single
// RWMutex; all reads return copies, never references into the maps.
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kilianp07/csms/core/model"
	corestore "github.com/kilianp07/csms/core/store"
)

type connectorKey struct {
	chargePointID string
	connectorID   int
}

// MemoryStore keeps all records in process memory.
type MemoryStore struct {
	mu           sync.RWMutex
	chargePoints map[string]model.ChargePoint
	connectors   map[connectorKey]model.Connector
	transactions map[string]model.Transaction
	tokens       map[string]model.AuthorizationToken
	samples      []model.MeterValueSample
}

var _ corestore.Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		chargePoints: make(map[string]model.ChargePoint),
		connectors:   make(map[connectorKey]model.Connector),
		transactions: make(map[string]model.Transaction),
		tokens:       make(map[string]model.AuthorizationToken),
	}
}

func (s *MemoryStore) UpsertChargePoint(_ context.Context, cp model.ChargePoint) error {
	s.mu.Lock()
	s.chargePoints[cp.ID] = cp
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) GetChargePoint(_ context.Context, id string) (model.ChargePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp, ok := s.chargePoints[id]
	if !ok {
		return model.ChargePoint{}, fmt.Errorf("charge point %s: %w", id, corestore.ErrNotFound)
	}
	return cp, nil
}

func (s *MemoryStore) ListChargePoints(_ context.Context) ([]model.ChargePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.ChargePoint, 0, len(s.chargePoints))
	for _, cp := range s.chargePoints {
		out = append(out, cp)
	}
	return out, nil
}

func (s *MemoryStore) SetOnline(_ context.Context, id string, online bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp, ok := s.chargePoints[id]
	if !ok {
		return fmt.Errorf("charge point %s: %w", id, corestore.ErrNotFound)
	}
	cp.Online = online
	if online {
		cp.LastSeen = time.Now()
	}
	s.chargePoints[id] = cp
	return nil
}

func (s *MemoryStore) UpsertConnector(_ context.Context, c model.Connector) error {
	s.mu.Lock()
	s.connectors[connectorKey{c.ChargePointID, c.ID}] = c
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) GetConnector(_ context.Context, chargePointID string, connectorID int) (model.Connector, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.connectors[connectorKey{chargePointID, connectorID}]
	if !ok {
		return model.Connector{}, fmt.Errorf("connector %s:%d: %w", chargePointID, connectorID, corestore.ErrNotFound)
	}
	return c, nil
}

func (s *MemoryStore) ListConnectors(_ context.Context, chargePointID string) ([]model.Connector, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Connector
	for k, c := range s.connectors {
		if k.chargePointID == chargePointID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *MemoryStore) CreateTransaction(_ context.Context, tx model.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.transactions[tx.ID]; ok {
		return fmt.Errorf("transaction %s already exists", tx.ID)
	}
	s.transactions[tx.ID] = tx
	return nil
}

func (s *MemoryStore) GetTransaction(_ context.Context, id string) (model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, ok := s.transactions[id]
	if !ok {
		return model.Transaction{}, fmt.Errorf("transaction %s: %w", id, corestore.ErrNotFound)
	}
	return tx, nil
}

func (s *MemoryStore) UpdateTransaction(_ context.Context, tx model.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.transactions[tx.ID]; !ok {
		return fmt.Errorf("transaction %s: %w", tx.ID, corestore.ErrNotFound)
	}
	s.transactions[tx.ID] = tx
	return nil
}

func (s *MemoryStore) ActiveTransaction(_ context.Context, chargePointID string, connectorID int) (model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, tx := range s.transactions {
		if tx.ChargePointID == chargePointID && tx.ConnectorID == connectorID && tx.Active() {
			return tx, nil
		}
	}
	return model.Transaction{}, fmt.Errorf("active transaction on %s:%d: %w", chargePointID, connectorID, corestore.ErrNotFound)
}

func (s *MemoryStore) GetToken(_ context.Context, idTag string) (model.AuthorizationToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tok, ok := s.tokens[idTag]
	if !ok {
		return model.AuthorizationToken{}, fmt.Errorf("token %s: %w", idTag, corestore.ErrNotFound)
	}
	return tok, nil
}

func (s *MemoryStore) TouchToken(_ context.Context, idTag string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok, ok := s.tokens[idTag]
	if !ok {
		return fmt.Errorf("token %s: %w", idTag, corestore.ErrNotFound)
	}
	tok.LastUsed = time.Now()
	s.tokens[idTag] = tok
	return nil
}

// PutToken seeds or replaces an authorization token. Token provisioning is
// not part of the protocol surface, so this lives outside the core store
// interface.
func (s *MemoryStore) PutToken(tok model.AuthorizationToken) {
	s.mu.Lock()
	s.tokens[tok.IdTag] = tok
	s.mu.Unlock()
}

func (s *MemoryStore) AppendMeterValues(_ context.Context, samples []model.MeterValueSample) error {
	s.mu.Lock()
	s.samples = append(s.samples, samples...)
	s.mu.Unlock()
	return nil
}

// MeterValues returns a snapshot of all appended samples, for tests and the
// status API.
func (s *MemoryStore) MeterValues() []model.MeterValueSample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.MeterValueSample, len(s.samples))
	copy(out, s.samples)
	return out
}
