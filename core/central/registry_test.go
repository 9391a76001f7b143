package central

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/csms/core/model"
	"github.com/kilianp07/csms/core/ocpp"
	"github.com/kilianp07/csms/core/session"
	"github.com/kilianp07/csms/core/transaction"
	memstore "github.com/kilianp07/csms/infra/store"
)

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any)         {}
func (nopLogger) Debugw(string, map[string]any) {}
func (nopLogger) Infof(string, ...any)          {}
func (nopLogger) Warnf(string, ...any)          {}
func (nopLogger) Errorf(string, ...any)         {}

type fakeConn struct {
	in     chan []byte
	out    chan []byte
	once   sync.Once
	closed chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{in: make(chan []byte, 16), out: make(chan []byte, 16), closed: make(chan struct{})}
}

func (c *fakeConn) ReadFrame() ([]byte, error) {
	select {
	case f := <-c.in:
		return f, nil
	case <-c.closed:
		return nil, errors.New("closed")
	}
}

func (c *fakeConn) WriteFrame(frame []byte) error {
	select {
	case c.out <- frame:
		return nil
	case <-c.closed:
		return errors.New("closed")
	}
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) written(t *testing.T) *ocpp.Frame {
	t.Helper()
	select {
	case raw := <-c.out:
		f, err := ocpp.Decode(raw)
		require.NoError(t, err)
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("no frame written")
		return nil
	}
}

func newRegistry(t *testing.T, cfg Config) (*Registry, *memstore.MemoryStore) {
	t.Helper()
	st := memstore.NewMemoryStore()
	st.PutToken(model.AuthorizationToken{IdTag: "CARD001", Status: model.AuthAccepted})
	tx := transaction.NewManager(st, nil, nopLogger{})
	r := NewRegistry(cfg, st, tx, nil, nil, nopLogger{})
	t.Cleanup(r.Shutdown)
	return r, st
}

func TestValidStationID(t *testing.T) {
	assert.True(t, ValidStationID("CP-001_a"))
	assert.False(t, ValidStationID(""))
	assert.False(t, ValidStationID("CP 001"))
	assert.False(t, ValidStationID("cp/../etc"))
	long := make([]byte, 51)
	for i := range long {
		long[i] = 'a'
	}
	assert.False(t, ValidStationID(string(long)))
}

func TestConnectRejectsInvalidID(t *testing.T) {
	r, _ := newRegistry(t, Config{})
	conn := newFakeConn()
	_, err := r.Connect(context.Background(), "bad id!", conn)
	require.ErrorIs(t, err, ErrInvalidStationID)
	select {
	case <-conn.closed:
	default:
		t.Fatal("connection must be closed on rejection")
	}
}

func TestSupersessionLastConnectionWins(t *testing.T) {
	r, _ := newRegistry(t, Config{})
	ctx := context.Background()

	conn1 := newFakeConn()
	s1, err := r.Connect(ctx, "CP1", conn1)
	require.NoError(t, err)

	// A call pending on the first session must be flushed on supersession.
	errCh := make(chan error, 1)
	go func() {
		_, err := s1.SendCall(ctx, ocpp.ActionGetConfiguration, nil, time.Minute)
		errCh <- err
	}()
	conn1.written(t)

	conn2 := newFakeConn()
	s2, err := r.Connect(ctx, "CP1", conn2)
	require.NoError(t, err)

	require.ErrorIs(t, <-errCh, session.ErrConnectionClosed)
	<-s1.Done()
	require.ErrorIs(t, s1.CloseReason(), session.ErrSuperseded)
	assert.Same(t, s2, r.Lookup("CP1"))
	assert.Equal(t, 1, r.Connected())
}

func TestStaleDisconnectDoesNotUnbindNewerSession(t *testing.T) {
	r, st := newRegistry(t, Config{})
	ctx := context.Background()

	conn1 := newFakeConn()
	_, err := r.Connect(ctx, "CP1", conn1)
	require.NoError(t, err)
	conn2 := newFakeConn()
	s2, err := r.Connect(ctx, "CP1", conn2)
	require.NoError(t, err)

	// The superseded session's close raced in already; the new binding and
	// the online flag must survive it.
	conn2.in <- []byte(`[2,"b1","BootNotification",{"chargePointVendor":"ABB","chargePointModel":"Terra"}]`)
	conn2.written(t)

	assert.Same(t, s2, r.Lookup("CP1"))
	cp, err := st.GetChargePoint(ctx, "CP1")
	require.NoError(t, err)
	assert.True(t, cp.Online)
}

func TestDisconnectMarksOffline(t *testing.T) {
	r, st := newRegistry(t, Config{})
	ctx := context.Background()

	conn := newFakeConn()
	s, err := r.Connect(ctx, "CP1", conn)
	require.NoError(t, err)
	conn.in <- []byte(`[2,"b1","BootNotification",{"chargePointVendor":"ABB","chargePointModel":"Terra"}]`)
	conn.written(t)

	s.Close(session.ErrConnectionClosed)
	<-s.Done()

	require.Eventually(t, func() bool {
		cp, err := st.GetChargePoint(ctx, "CP1")
		return err == nil && !cp.Online
	}, 2*time.Second, 10*time.Millisecond)
	assert.Nil(t, r.Lookup("CP1"))
}

func TestHeartbeatTimeoutMarksOffline(t *testing.T) {
	cfg := Config{Session: session.Config{
		HeartbeatInterval: 20 * time.Millisecond,
		ToleranceFactor:   1.5,
		SweepInterval:     10 * time.Millisecond,
	}}
	r, st := newRegistry(t, cfg)
	ctx := context.Background()

	conn := newFakeConn()
	s, err := r.Connect(ctx, "CP1", conn)
	require.NoError(t, err)
	conn.in <- []byte(`[2,"b1","BootNotification",{"chargePointVendor":"ABB","chargePointModel":"Terra"}]`)
	conn.written(t)

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session not dropped by heartbeat sweep")
	}
	require.ErrorIs(t, s.CloseReason(), session.ErrHeartbeatTimeout)
	require.Eventually(t, func() bool {
		cp, err := st.GetChargePoint(ctx, "CP1")
		return err == nil && !cp.Online
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRemoteCommandNotConnected(t *testing.T) {
	r, _ := newRegistry(t, Config{})
	res := r.RemoteStartTransaction(context.Background(), "CP-UNKNOWN", 1, "CARD001")
	assert.False(t, res.Success)
	assert.Equal(t, ErrorNotConnected, res.Error)
	assert.Equal(t, 0, r.Connected())
}

func TestRemoteStartRoundTrip(t *testing.T) {
	r, _ := newRegistry(t, Config{})
	ctx := context.Background()
	conn := newFakeConn()
	_, err := r.Connect(ctx, "CP1", conn)
	require.NoError(t, err)

	go func() {
		call, _ := ocpp.Decode(<-conn.out)
		reply, _ := ocpp.EncodeResult(call.ID, ocpp.RemoteStartTransactionResponse{Status: "Accepted"})
		conn.in <- reply
	}()
	res := r.RemoteStartTransaction(ctx, "CP1", 1, "CARD001")
	assert.True(t, res.Success)
	assert.Equal(t, "Accepted", res.Status)
	assert.Empty(t, res.Error)
}

func TestRemoteStopRejectedByStation(t *testing.T) {
	r, _ := newRegistry(t, Config{})
	ctx := context.Background()
	conn := newFakeConn()
	_, err := r.Connect(ctx, "CP1", conn)
	require.NoError(t, err)

	go func() {
		call, _ := ocpp.Decode(<-conn.out)
		reply, _ := ocpp.EncodeResult(call.ID, ocpp.RemoteStopTransactionResponse{Status: "Rejected"})
		conn.in <- reply
	}()
	res := r.RemoteStopTransaction(ctx, "CP1", "tx-1")
	assert.False(t, res.Success)
	assert.Equal(t, "Rejected", res.Status)
}

func TestRemoteCommandCallError(t *testing.T) {
	r, _ := newRegistry(t, Config{})
	ctx := context.Background()
	conn := newFakeConn()
	_, err := r.Connect(ctx, "CP1", conn)
	require.NoError(t, err)

	go func() {
		call, _ := ocpp.Decode(<-conn.out)
		reply, _ := ocpp.EncodeError(call.ID, ocpp.ErrCodeNotSupported, "no firmware support")
		conn.in <- reply
	}()
	res := r.UpdateFirmware(ctx, "CP1", "https://fw.example/2.bin", time.Now().Add(time.Hour))
	assert.False(t, res.Success)
	assert.Equal(t, string(ocpp.ErrCodeNotSupported), res.Status)
	assert.Equal(t, "no firmware support", res.Error)
}

func TestRemoteCommandTimeout(t *testing.T) {
	cfg := Config{CommandTimeout: 30 * time.Millisecond}
	r, _ := newRegistry(t, cfg)
	ctx := context.Background()
	conn := newFakeConn()
	_, err := r.Connect(ctx, "CP1", conn)
	require.NoError(t, err)

	res := r.GetConfiguration(ctx, "CP1", []string{"HeartbeatInterval"})
	assert.False(t, res.Success)
	assert.Equal(t, ErrorTimeout, res.Error)
}

func TestGetConfigurationPayloadPassThrough(t *testing.T) {
	r, _ := newRegistry(t, Config{})
	ctx := context.Background()
	conn := newFakeConn()
	_, err := r.Connect(ctx, "CP1", conn)
	require.NoError(t, err)

	go func() {
		call, _ := ocpp.Decode(<-conn.out)
		val := "60"
		reply, _ := ocpp.EncodeResult(call.ID, ocpp.GetConfigurationResponse{
			ConfigurationKey: []ocpp.ConfigurationKey{{Key: "HeartbeatInterval", Value: &val}},
		})
		conn.in <- reply
	}()
	res := r.GetConfiguration(ctx, "CP1", nil)
	require.True(t, res.Success)
	assert.Contains(t, string(res.Payload), "HeartbeatInterval")
}

func TestFailTransactionsOnDisconnect(t *testing.T) {
	cfg := Config{FailTransactionsOnDisconnect: true}
	r, st := newRegistry(t, cfg)
	ctx := context.Background()

	conn := newFakeConn()
	s, err := r.Connect(ctx, "CP1", conn)
	require.NoError(t, err)

	conn.in <- []byte(`[2,"b1","BootNotification",{"chargePointVendor":"ABB","chargePointModel":"Terra"}]`)
	conn.written(t)
	conn.in <- []byte(`[2,"s1","StartTransaction",{"connectorId":1,"idTag":"CARD001","meterStart":1000,"timestamp":"2026-01-02T10:00:00Z"}]`)
	start := conn.written(t)
	require.Equal(t, ocpp.MessageCallResult, start.Type)

	s.Close(session.ErrConnectionClosed)
	<-s.Done()

	require.Eventually(t, func() bool {
		txs, err := st.ListConnectors(ctx, "CP1")
		if err != nil || len(txs) == 0 {
			return false
		}
		return txs[0].TransactionID == ""
	}, 2*time.Second, 10*time.Millisecond)
}

func TestConcurrentConnects(t *testing.T) {
	r, _ := newRegistry(t, Config{})
	ctx := context.Background()

	const n = 10
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := r.Connect(ctx, fmt.Sprintf("CP-%d", i), newFakeConn())
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, n, r.Connected())
}
