// Package store defines the persistence interfaces the central system
// depends on. Implementations may be relational, document-based or
// in-memory; the core only needs upsert-by-key, read-by-key, append and
// status-update operations. Cross-session status queries go through these
// snapshot reads, never through live session state.
package store

import (
	"context"
	"errors"

	"github.com/kilianp07/csms/core/model"
)

// ErrNotFound is returned when a keyed read matches nothing.
var ErrNotFound = errors.New("store: not found")

// ChargePointStore persists charge point and connector records.
type ChargePointStore interface {
	UpsertChargePoint(ctx context.Context, cp model.ChargePoint) error
	GetChargePoint(ctx context.Context, id string) (model.ChargePoint, error)
	ListChargePoints(ctx context.Context) ([]model.ChargePoint, error)
	// SetOnline updates only the connectivity fields of a charge point.
	SetOnline(ctx context.Context, id string, online bool) error

	UpsertConnector(ctx context.Context, c model.Connector) error
	GetConnector(ctx context.Context, chargePointID string, connectorID int) (model.Connector, error)
	ListConnectors(ctx context.Context, chargePointID string) ([]model.Connector, error)
}

// TransactionStore persists charging transactions.
type TransactionStore interface {
	CreateTransaction(ctx context.Context, tx model.Transaction) error
	GetTransaction(ctx context.Context, id string) (model.Transaction, error)
	UpdateTransaction(ctx context.Context, tx model.Transaction) error
	// ActiveTransaction returns the open transaction bound to a connector,
	// or ErrNotFound when the connector is idle.
	ActiveTransaction(ctx context.Context, chargePointID string, connectorID int) (model.Transaction, error)
}

// TokenStore reads authorization tokens and records their usage.
type TokenStore interface {
	GetToken(ctx context.Context, idTag string) (model.AuthorizationToken, error)
	TouchToken(ctx context.Context, idTag string) error
}

// MeterValueStore appends meter samples. Samples are immutable after insert.
type MeterValueStore interface {
	AppendMeterValues(ctx context.Context, samples []model.MeterValueSample) error
}

// Store aggregates the persistence surface consumed by the central system.
type Store interface {
	ChargePointStore
	TransactionStore
	TokenStore
	MeterValueStore
}
