// Package transaction implements authorization checks and the transaction
// lifecycle: opening on an accepted StartTransaction, accumulating meter
// samples, and closing with energy derivation on StopTransaction.
package transaction

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/csms/core/events"
	"github.com/kilianp07/csms/core/logger"
	"github.com/kilianp07/csms/core/model"
	"github.com/kilianp07/csms/core/store"
	"github.com/kilianp07/csms/internal/eventbus"
)

// ErrNotActive reports a StopTransaction for a transaction that is not open,
// typically a station retransmit. Callers reply normally and log it.
var ErrNotActive = errors.New("transaction not active")

// ErrUnknownTransaction reports a stop for a transaction ID never issued.
var ErrUnknownTransaction = errors.New("unknown transaction")

// Manager brokers authorization and owns the transaction lifecycle. The
// start-path mutex guarantees at most one Active transaction per connector
// even when two starts race.
type Manager struct {
	store store.Store
	log   logger.Logger
	bus   eventbus.EventBus

	startMu sync.Mutex
}

// NewManager creates a Manager. The event bus is optional.
func NewManager(st store.Store, bus eventbus.EventBus, log logger.Logger) *Manager {
	return &Manager{store: st, bus: bus, log: log}
}

// Authorize resolves an id tag to a decision. Absent tokens are Invalid;
// stored Blocked/Expired states and a passed expiry date map directly. The
// token's lastUsed is refreshed only when the decision is Accepted.
func (m *Manager) Authorize(ctx context.Context, idTag string) (model.AuthorizationStatus, error) {
	tok, err := m.store.GetToken(ctx, idTag)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.AuthInvalid, nil
		}
		return model.AuthInvalid, fmt.Errorf("read token %s: %w", idTag, err)
	}
	decision := tok.Decide(time.Now())
	if decision == model.AuthAccepted {
		if err := m.store.TouchToken(ctx, idTag); err != nil {
			return model.AuthAccepted, fmt.Errorf("touch token %s: %w", idTag, err)
		}
	}
	return decision, nil
}

// Start authorizes the token and opens a transaction on the connector. A
// transaction ID is returned in every case so the protocol reply stays
// well-formed, but it refers to a stored transaction only when the decision
// is Accepted. A connector that already has an Active transaction yields
// ConcurrentTx.
func (m *Manager) Start(ctx context.Context, chargePointID string, connectorID int, idTag string, meterStart float64, ts time.Time) (string, model.AuthorizationStatus, error) {
	txID := uuid.NewString()
	decision, err := m.Authorize(ctx, idTag)
	if err != nil {
		return txID, decision, err
	}
	if decision != model.AuthAccepted {
		m.log.Infof("start on %s:%d rejected for %s: %s", chargePointID, connectorID, idTag, decision)
		return txID, decision, nil
	}

	m.startMu.Lock()
	defer m.startMu.Unlock()

	if _, err := m.store.ActiveTransaction(ctx, chargePointID, connectorID); err == nil {
		m.log.Warnf("start on %s:%d rejected: connector busy", chargePointID, connectorID)
		return txID, model.AuthConcurrentTx, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return txID, model.AuthInvalid, fmt.Errorf("active transaction lookup: %w", err)
	}

	tx := model.Transaction{
		ID:            txID,
		ChargePointID: chargePointID,
		ConnectorID:   connectorID,
		IdTag:         idTag,
		MeterStart:    meterStart,
		StartTime:     ts,
		Status:        model.TxActive,
	}
	if err := m.store.CreateTransaction(ctx, tx); err != nil {
		return txID, model.AuthAccepted, fmt.Errorf("create transaction: %w", err)
	}
	if err := m.bindConnector(ctx, chargePointID, connectorID, txID); err != nil {
		return txID, model.AuthAccepted, err
	}

	m.publish(events.TransactionEvent{
		ChargePointID: chargePointID,
		ConnectorID:   connectorID,
		TransactionID: txID,
		Started:       true,
	})
	m.log.Infof("transaction %s started on %s:%d", txID, chargePointID, connectorID)
	return txID, model.AuthAccepted, nil
}

// Stop closes an Active transaction, derives the delivered energy and
// unbinds the connector. Stopping a transaction that is unknown or already
// closed returns ErrUnknownTransaction/ErrNotActive without mutating
// anything, so retransmits are harmless.
func (m *Manager) Stop(ctx context.Context, txID string, meterStop float64, ts time.Time, reason string) error {
	tx, err := m.store.GetTransaction(ctx, txID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			m.log.Warnf("stop for unknown transaction %s", txID)
			return ErrUnknownTransaction
		}
		return fmt.Errorf("read transaction %s: %w", txID, err)
	}
	if !tx.Active() {
		m.log.Warnf("stop for %s ignored: status %s, likely a retransmit", txID, tx.Status)
		return ErrNotActive
	}

	energy := meterStop - tx.MeterStart
	if energy < 0 {
		energy = 0
	}
	tx.MeterStop = meterStop
	tx.StopTime = &ts
	tx.StopReason = reason
	tx.Status = model.TxCompleted
	tx.EnergyWh = energy
	if err := m.store.UpdateTransaction(ctx, tx); err != nil {
		return fmt.Errorf("close transaction %s: %w", txID, err)
	}
	// The connector keeps its reported status; only the transaction
	// reference is cleared. Status follows the next StatusNotification.
	if err := m.unbindConnector(ctx, tx.ChargePointID, tx.ConnectorID, txID); err != nil {
		return err
	}

	m.publish(events.TransactionEvent{
		ChargePointID: tx.ChargePointID,
		ConnectorID:   tx.ConnectorID,
		TransactionID: txID,
		EnergyWh:      energy,
	})
	m.log.Infof("transaction %s completed, %.0f Wh delivered", txID, energy)
	return nil
}

// RecordMeterValues appends samples, attributing them to the given
// transaction or, when absent, to the connector's Active transaction.
// Samples that cannot be attributed are dropped with a warning; no orphan
// rows are written.
func (m *Manager) RecordMeterValues(ctx context.Context, chargePointID string, connectorID int, txID *string, samples []model.MeterValueSample) error {
	if len(samples) == 0 {
		return nil
	}
	id := ""
	if txID != nil {
		id = *txID
	} else {
		tx, err := m.store.ActiveTransaction(ctx, chargePointID, connectorID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				m.log.Warnf("dropping %d meter samples for %s:%d: no active transaction", len(samples), chargePointID, connectorID)
				return nil
			}
			return fmt.Errorf("active transaction lookup: %w", err)
		}
		id = tx.ID
	}
	for i := range samples {
		samples[i].TransactionID = id
		samples[i].ChargePointID = chargePointID
		samples[i].ConnectorID = connectorID
	}
	if err := m.store.AppendMeterValues(ctx, samples); err != nil {
		return fmt.Errorf("append meter values: %w", err)
	}
	return nil
}

// FailActiveFor administratively closes every Active transaction of a
// station, marking them Failed. Used when a faulted or vanished station is
// not expected to deliver a StopTransaction.
func (m *Manager) FailActiveFor(ctx context.Context, chargePointID string, reason string) error {
	connectors, err := m.store.ListConnectors(ctx, chargePointID)
	if err != nil {
		return fmt.Errorf("list connectors: %w", err)
	}
	for _, c := range connectors {
		if !c.Occupied() {
			continue
		}
		tx, err := m.store.GetTransaction(ctx, c.TransactionID)
		if err != nil || !tx.Active() {
			continue
		}
		now := time.Now()
		tx.StopTime = &now
		tx.StopReason = reason
		tx.Status = model.TxFailed
		if err := m.store.UpdateTransaction(ctx, tx); err != nil {
			return fmt.Errorf("fail transaction %s: %w", tx.ID, err)
		}
		if err := m.unbindConnector(ctx, chargePointID, c.ID, tx.ID); err != nil {
			return err
		}
		m.log.Warnf("transaction %s on %s:%d marked failed: %s", tx.ID, chargePointID, c.ID, reason)
	}
	return nil
}

func (m *Manager) bindConnector(ctx context.Context, chargePointID string, connectorID int, txID string) error {
	c, err := m.store.GetConnector(ctx, chargePointID, connectorID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("read connector %s:%d: %w", chargePointID, connectorID, err)
		}
		c = model.Connector{ChargePointID: chargePointID, ID: connectorID, Status: model.StatusAvailable}
	}
	c.TransactionID = txID
	if err := m.store.UpsertConnector(ctx, c); err != nil {
		return fmt.Errorf("bind connector %s:%d: %w", chargePointID, connectorID, err)
	}
	return nil
}

func (m *Manager) unbindConnector(ctx context.Context, chargePointID string, connectorID int, txID string) error {
	c, err := m.store.GetConnector(ctx, chargePointID, connectorID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("read connector %s:%d: %w", chargePointID, connectorID, err)
	}
	// Guard against a newer transaction having rebound the connector.
	if c.TransactionID != txID {
		return nil
	}
	c.TransactionID = ""
	if err := m.store.UpsertConnector(ctx, c); err != nil {
		return fmt.Errorf("unbind connector %s:%d: %w", chargePointID, connectorID, err)
	}
	return nil
}

func (m *Manager) publish(ev events.TransactionEvent) {
	if m.bus != nil {
		m.bus.Publish(ev)
	}
}
