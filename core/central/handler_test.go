package central

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/csms/core/model"
	"github.com/kilianp07/csms/core/ocpp"
	"github.com/kilianp07/csms/core/store"
	"github.com/kilianp07/csms/core/transaction"
	memstore "github.com/kilianp07/csms/infra/store"
)

func newHandler(t *testing.T) (*Handler, *memstore.MemoryStore) {
	t.Helper()
	st := memstore.NewMemoryStore()
	st.PutToken(model.AuthorizationToken{IdTag: "CARD001", Status: model.AuthAccepted})
	st.PutToken(model.AuthorizationToken{IdTag: "CARD004", Status: model.AuthBlocked})
	tx := transaction.NewManager(st, nil, nopLogger{})
	return NewHandler(st, tx, 60*time.Second, nil, nopLogger{}), st
}

func TestBootNotificationCreatesChargePoint(t *testing.T) {
	h, st := newHandler(t)
	ctx := context.Background()

	payload, err := h.HandleCall(ctx, "CP1", &ocpp.BootNotificationRequest{
		ChargePointVendor: "ABB", ChargePointModel: "Terra", FirmwareVersion: "1.4.2",
	})
	require.NoError(t, err)
	resp, ok := payload.(ocpp.BootNotificationResponse)
	require.True(t, ok)
	assert.Equal(t, ocpp.RegistrationAccepted, resp.Status)
	assert.Equal(t, 60, resp.Interval)
	assert.False(t, resp.CurrentTime.IsZero())

	cp, err := st.GetChargePoint(ctx, "CP1")
	require.NoError(t, err)
	assert.True(t, cp.Online)
	assert.Equal(t, string(model.StatusAvailable), cp.Status)
	assert.Equal(t, "ABB", cp.Vendor)
	assert.Equal(t, "1.4.2", cp.FirmwareVersion)
}

func TestBootNotificationUpdatesExisting(t *testing.T) {
	h, st := newHandler(t)
	ctx := context.Background()

	_, err := h.HandleCall(ctx, "CP1", &ocpp.BootNotificationRequest{ChargePointVendor: "ABB", ChargePointModel: "Terra"})
	require.NoError(t, err)
	_, err = h.HandleCall(ctx, "CP1", &ocpp.BootNotificationRequest{ChargePointVendor: "ABB", ChargePointModel: "Terra", FirmwareVersion: "2.0.0"})
	require.NoError(t, err)

	cp, err := st.GetChargePoint(ctx, "CP1")
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", cp.FirmwareVersion)
	cps, err := st.ListChargePoints(ctx)
	require.NoError(t, err)
	assert.Len(t, cps, 1)
}

func TestHeartbeatRepliesServerTime(t *testing.T) {
	h, _ := newHandler(t)
	payload, err := h.HandleCall(context.Background(), "CP1", &ocpp.HeartbeatRequest{})
	require.NoError(t, err)
	resp := payload.(ocpp.HeartbeatResponse)
	assert.WithinDuration(t, time.Now().UTC(), resp.CurrentTime, time.Second)
}

func TestStatusNotificationUpsertsConnector(t *testing.T) {
	h, st := newHandler(t)
	ctx := context.Background()

	_, err := h.HandleCall(ctx, "CP1", &ocpp.StatusNotificationRequest{
		ConnectorId: 1, Status: "Available", ErrorCode: model.NoError,
	})
	require.NoError(t, err)

	c, err := st.GetConnector(ctx, "CP1", 1)
	require.NoError(t, err)
	assert.Equal(t, model.StatusAvailable, c.Status)
	assert.Empty(t, c.ErrorCode)

	// A fault stores the error code; a later NoError clears it.
	_, err = h.HandleCall(ctx, "CP1", &ocpp.StatusNotificationRequest{
		ConnectorId: 1, Status: "Faulted", ErrorCode: "GroundFailure",
	})
	require.NoError(t, err)
	c, err = st.GetConnector(ctx, "CP1", 1)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFaulted, c.Status)
	assert.Equal(t, "GroundFailure", c.ErrorCode)

	_, err = h.HandleCall(ctx, "CP1", &ocpp.StatusNotificationRequest{
		ConnectorId: 1, Status: "Available", ErrorCode: model.NoError,
	})
	require.NoError(t, err)
	c, err = st.GetConnector(ctx, "CP1", 1)
	require.NoError(t, err)
	assert.Empty(t, c.ErrorCode)
}

func TestStatusNotificationConnectorZeroTargetsChargePoint(t *testing.T) {
	h, st := newHandler(t)
	ctx := context.Background()

	_, err := h.HandleCall(ctx, "CP1", &ocpp.StatusNotificationRequest{
		ConnectorId: 0, Status: "Unavailable", ErrorCode: "InternalError",
	})
	require.NoError(t, err)

	cp, err := st.GetChargePoint(ctx, "CP1")
	require.NoError(t, err)
	assert.Equal(t, "Unavailable", cp.Status)
	assert.Equal(t, "InternalError", cp.ErrorCode)
	_, err = st.GetConnector(ctx, "CP1", 0)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestAuthorizeReplies(t *testing.T) {
	h, _ := newHandler(t)
	ctx := context.Background()

	payload, err := h.HandleCall(ctx, "CP1", &ocpp.AuthorizeRequest{IdTag: "CARD001"})
	require.NoError(t, err)
	assert.Equal(t, "Accepted", payload.(ocpp.AuthorizeResponse).IdTagInfo.Status)

	payload, err = h.HandleCall(ctx, "CP1", &ocpp.AuthorizeRequest{IdTag: "CARD004"})
	require.NoError(t, err)
	assert.Equal(t, "Blocked", payload.(ocpp.AuthorizeResponse).IdTagInfo.Status)

	payload, err = h.HandleCall(ctx, "CP1", &ocpp.AuthorizeRequest{IdTag: "GHOST"})
	require.NoError(t, err)
	assert.Equal(t, "Invalid", payload.(ocpp.AuthorizeResponse).IdTagInfo.Status)
}

// TestNormalChargingSession walks the full protocol flow of one charging
// session: boot, connector status, start, meter values, stop.
func TestNormalChargingSession(t *testing.T) {
	h, st := newHandler(t)
	ctx := context.Background()

	_, err := h.HandleCall(ctx, "CP1", &ocpp.BootNotificationRequest{ChargePointVendor: "ABB", ChargePointModel: "Terra"})
	require.NoError(t, err)
	_, err = h.HandleCall(ctx, "CP1", &ocpp.StatusNotificationRequest{ConnectorId: 1, Status: "Available", ErrorCode: model.NoError})
	require.NoError(t, err)

	payload, err := h.HandleCall(ctx, "CP1", &ocpp.StartTransactionRequest{
		ConnectorId: 1, IdTag: "CARD001", MeterStart: 1000, Timestamp: time.Now(),
	})
	require.NoError(t, err)
	startResp := payload.(ocpp.StartTransactionResponse)
	require.Equal(t, "Accepted", startResp.IdTagInfo.Status)
	txID := startResp.TransactionId

	_, err = h.HandleCall(ctx, "CP1", &ocpp.MeterValuesRequest{
		ConnectorId: 1,
		MeterValue: []ocpp.MeterValue{{
			Timestamp: time.Now(),
			SampledValue: []ocpp.SampledValue{
				{Value: "2500", Measurand: "Energy.Active.Import.Register", Unit: "Wh"},
				{Value: "7.2", Measurand: "Power.Active.Import", Unit: "kW"},
			},
		}},
	})
	require.NoError(t, err)
	samples := st.MeterValues()
	require.Len(t, samples, 2)
	assert.Equal(t, txID, samples[0].TransactionID)

	payload, err = h.HandleCall(ctx, "CP1", &ocpp.StopTransactionRequest{
		TransactionId: txID, MeterStop: 5500, Timestamp: time.Now(), Reason: "Local",
	})
	require.NoError(t, err)
	_ = payload.(ocpp.StopTransactionResponse)

	tx, err := st.GetTransaction(ctx, txID)
	require.NoError(t, err)
	assert.Equal(t, model.TxCompleted, tx.Status)
	assert.InDelta(t, 4.5, tx.EnergyKWh(), 1e-9)
}

func TestStartTransactionBlockedTokenCreatesNothing(t *testing.T) {
	h, st := newHandler(t)
	ctx := context.Background()

	payload, err := h.HandleCall(ctx, "CP1", &ocpp.StartTransactionRequest{
		ConnectorId: 1, IdTag: "CARD004", MeterStart: 1000, Timestamp: time.Now(),
	})
	require.NoError(t, err)
	resp := payload.(ocpp.StartTransactionResponse)
	assert.Equal(t, "Blocked", resp.IdTagInfo.Status)
	assert.NotEmpty(t, resp.TransactionId)

	_, err = st.ActiveTransaction(ctx, "CP1", 1)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestStopRetransmitAnsweredNormally(t *testing.T) {
	h, _ := newHandler(t)
	ctx := context.Background()

	payload, err := h.HandleCall(ctx, "CP1", &ocpp.StartTransactionRequest{
		ConnectorId: 1, IdTag: "CARD001", MeterStart: 1000, Timestamp: time.Now(),
	})
	require.NoError(t, err)
	txID := payload.(ocpp.StartTransactionResponse).TransactionId

	stop := &ocpp.StopTransactionRequest{TransactionId: txID, MeterStop: 2000, Timestamp: time.Now()}
	_, err = h.HandleCall(ctx, "CP1", stop)
	require.NoError(t, err)
	// Retransmit: still a normal reply, no internal error.
	_, err = h.HandleCall(ctx, "CP1", stop)
	require.NoError(t, err)
}

type failingStore struct {
	*memstore.MemoryStore
	fail bool
}

func (f *failingStore) UpsertChargePoint(ctx context.Context, cp model.ChargePoint) error {
	if f.fail {
		return errors.New("store down")
	}
	return f.MemoryStore.UpsertChargePoint(ctx, cp)
}

func TestPersistenceFailureIsReportedAndRecoverable(t *testing.T) {
	st := &failingStore{MemoryStore: memstore.NewMemoryStore(), fail: true}
	tx := transaction.NewManager(st, nil, nopLogger{})
	h := NewHandler(st, tx, 60*time.Second, nil, nopLogger{})
	ctx := context.Background()

	boot := &ocpp.BootNotificationRequest{ChargePointVendor: "ABB", ChargePointModel: "Terra"}
	_, err := h.HandleCall(ctx, "CP1", boot)
	require.Error(t, err)

	// The next message for the station is processed normally.
	st.fail = false
	_, err = h.HandleCall(ctx, "CP1", boot)
	require.NoError(t, err)
}
