package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	coremetrics "github.com/kilianp07/csms/core/metrics"
	"github.com/kilianp07/csms/core/model"
)

func TestInfluxSink_RecordMessage(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		body = string(data)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	defer sink.Close()

	err := sink.RecordMessage(coremetrics.MessageEvent{
		ChargePointID: "CP1",
		Action:        "Heartbeat",
		Outcome:       "result",
		Time:          time.Now(),
	})
	if err != nil {
		t.Fatalf("record error: %v", err)
	}
	if !strings.Contains(body, "csms_message") || !strings.Contains(body, "charge_point_id=CP1") {
		t.Fatalf("unexpected line protocol: %q", body)
	}
}

func TestInfluxSink_RecordMeterValues(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		body = string(data)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	defer sink.Close()

	err := sink.RecordMeterValues([]model.MeterValueSample{{
		TransactionID: "tx-1",
		ChargePointID: "CP1",
		ConnectorID:   1,
		Timestamp:     time.Now(),
		Measurand:     "Energy.Active.Import.Register",
		Value:         2500,
		Unit:          "Wh",
	}})
	if err != nil {
		t.Fatalf("record error: %v", err)
	}
	if !strings.Contains(body, "csms_meter_value") || !strings.Contains(body, "transaction_id=tx-1") {
		t.Fatalf("unexpected line protocol: %q", body)
	}
}

func TestInfluxSinkWithFallbackUnreachable(t *testing.T) {
	sink := NewInfluxSinkWithFallback("http://127.0.0.1:1", "token", "org", "bucket")
	if _, ok := sink.(coremetrics.NopSink); !ok {
		t.Fatalf("expected NopSink fallback, got %T", sink)
	}
}
