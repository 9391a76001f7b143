package ocpp

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeCall(t *testing.T) {
	raw := []byte(`[2,"19223201","BootNotification",{"chargePointVendor":"ABB","chargePointModel":"Terra"}]`)
	f, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, MessageCall, f.Type)
	assert.Equal(t, "19223201", f.ID)
	assert.Equal(t, ActionBootNotification, f.Action)

	req, err := DecodeRequest(f)
	require.NoError(t, err)
	boot, ok := req.(*BootNotificationRequest)
	require.True(t, ok)
	assert.Equal(t, "ABB", boot.ChargePointVendor)
	assert.Equal(t, "Terra", boot.ChargePointModel)
}

func TestDecodeCallResult(t *testing.T) {
	raw := []byte(`[3,"42",{"status":"Accepted"}]`)
	f, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, MessageCallResult, f.Type)
	assert.True(t, f.IsReply())
	var resp RemoteStartTransactionResponse
	require.NoError(t, json.Unmarshal(f.Payload, &resp))
	assert.Equal(t, "Accepted", resp.Status)
}

func TestDecodeCallError(t *testing.T) {
	raw := []byte(`[4,"42","InternalError","boom",{}]`)
	f, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, MessageCallError, f.Type)
	assert.Equal(t, ErrCodeInternalError, f.ErrorCode)
	assert.Equal(t, "boom", f.ErrorDescription)
}

func TestDecodeMalformed(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"not json", `garbage`},
		{"not array", `{"a":1}`},
		{"too short", `[2,"1"]`},
		{"bad type tag", `[9,"1",{}]`},
		{"empty id", `[2,"","Heartbeat",{}]`},
		{"call without payload", `[2,"1","Heartbeat"]`},
		{"non-string action", `[2,"1",5,{}]`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode([]byte(tc.raw))
			require.Error(t, err)
			var de *DecodeError
			require.ErrorAs(t, err, &de)
			assert.Equal(t, MalformedFrame, de.Kind)
		})
	}
}

func TestDecodeRequestUnknownAction(t *testing.T) {
	f, err := Decode([]byte(`[2,"7","MakeCoffee",{}]`))
	require.NoError(t, err)
	_, err = DecodeRequest(f)
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, UnknownAction, de.Kind)
}

func TestDecodeRequestSchemaViolation(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"boot missing vendor", `[2,"1","BootNotification",{"chargePointModel":"Terra"}]`},
		{"start missing idTag", `[2,"1","StartTransaction",{"connectorId":1,"timestamp":"2026-01-02T10:00:00Z"}]`},
		{"start connector zero", `[2,"1","StartTransaction",{"connectorId":0,"idTag":"CARD001","timestamp":"2026-01-02T10:00:00Z"}]`},
		{"status missing errorCode", `[2,"1","StatusNotification",{"connectorId":1,"status":"Available"}]`},
		{"meter values empty", `[2,"1","MeterValues",{"connectorId":1,"meterValue":[]}]`},
		{"stop missing timestamp", `[2,"1","StopTransaction",{"transactionId":"tx-1","meterStop":100}]`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f, err := Decode([]byte(tc.raw))
			require.NoError(t, err)
			_, err = DecodeRequest(f)
			var de *DecodeError
			require.ErrorAs(t, err, &de)
			assert.Equal(t, SchemaViolation, de.Kind)
		})
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	raw, err := EncodeCall("abc", ActionRemoteStopTransaction, RemoteStopTransactionRequest{TransactionId: "tx-9"})
	require.NoError(t, err)
	f, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, MessageCall, f.Type)
	assert.Equal(t, ActionRemoteStopTransaction, f.Action)

	raw, err = EncodeResult("abc", HeartbeatResponse{})
	require.NoError(t, err)
	f, err = Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, MessageCallResult, f.Type)

	raw, err = EncodeError("abc", ErrCodeProtocolError, "already processed")
	require.NoError(t, err)
	f, err = Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, ErrCodeProtocolError, f.ErrorCode)
}

func TestEncodeNilPayload(t *testing.T) {
	raw, err := EncodeResult("1", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `[3,"1",{}]`, string(raw))
}
