package metrics

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/csms/core/metrics"
	"github.com/kilianp07/csms/core/model"
	"github.com/kilianp07/csms/infra/logger"
)

// InfluxSink writes protocol and telemetry events to an InfluxDB instance
// using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordMessage writes one inbound message event.
func (s *InfluxSink) RecordMessage(ev coremetrics.MessageEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("csms_message").
		AddTag("charge_point_id", ev.ChargePointID).
		AddTag("action", ev.Action).
		AddTag("outcome", ev.Outcome).
		AddField("count", 1).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordCall writes the round trip of one outbound call.
func (s *InfluxSink) RecordCall(ev coremetrics.CallEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("csms_call").
		AddTag("charge_point_id", ev.ChargePointID).
		AddTag("action", ev.Action).
		AddTag("acknowledged", strconv.FormatBool(ev.Acknowledged)).
		AddField("latency_ms", float64(ev.Latency.Milliseconds())).
		AddField("timed_out", ev.TimedOut).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordTransaction writes a transaction lifecycle event.
func (s *InfluxSink) RecordTransaction(ev coremetrics.TransactionEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	event := "stopped"
	if ev.Started {
		event = "started"
	}
	p := write.NewPointWithMeasurement("csms_transaction").
		AddTag("charge_point_id", ev.ChargePointID).
		AddTag("connector_id", strconv.Itoa(ev.ConnectorID)).
		AddTag("event", event).
		AddField("transaction_id", ev.TransactionID).
		AddField("energy_wh", ev.EnergyWh).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordMeterValues writes one point per meter sample, tagged by measurand.
func (s *InfluxSink) RecordMeterValues(samples []model.MeterValueSample) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, sv := range samples {
		p := write.NewPointWithMeasurement("csms_meter_value").
			AddTag("charge_point_id", sv.ChargePointID).
			AddTag("connector_id", strconv.Itoa(sv.ConnectorID)).
			AddTag("measurand", sv.Measurand).
			AddTag("unit", sv.Unit).
			AddField("value", sv.Value).
			SetTime(sv.Timestamp)
		if sv.TransactionID != "" {
			p.AddTag("transaction_id", sv.TransactionID)
		}
		if sv.Phase != "" {
			p.AddTag("phase", sv.Phase)
		}
		if err := s.writeAPI.WritePoint(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying HTTP client.
func (s *InfluxSink) Close() {
	s.client.Close()
}
