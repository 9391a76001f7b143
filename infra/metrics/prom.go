package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/csms/core/metrics"
)

// PromSink records protocol activity in Prometheus metrics.
type PromSink struct {
	messages     *prometheus.CounterVec
	calls        *prometheus.CounterVec
	callLatency  *prometheus.HistogramVec
	connected    prometheus.Gauge
	transactions *prometheus.CounterVec
	energy       prometheus.Counter
}

// NewPromSink registers metrics on the default Prometheus registerer.
// The Prometheus server should be started separately using cfg.PrometheusPort.
func NewPromSink(cfg coremetrics.Config) (*PromSink, error) {
	return NewPromSinkWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(cfg coremetrics.Config, reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	messages := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "csms_messages_total",
		Help: "Total inbound protocol messages by action and outcome",
	}, []string{"action", "outcome"})
	calls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "csms_calls_total",
		Help: "Total outbound calls by action and acknowledgment",
	}, []string{"action", "acknowledged"})
	callLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "csms_call_latency_seconds",
		Help:    "Time between sending a call and receiving its reply",
		Buckets: prometheus.DefBuckets,
	}, []string{"action"})
	connected := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "csms_connected_stations",
		Help: "Number of currently connected charge points",
	})
	transactions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "csms_transactions_total",
		Help: "Transaction lifecycle events",
	}, []string{"event"})
	energy := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "csms_energy_delivered_wh_total",
		Help: "Total energy delivered across completed transactions",
	})

	if err := reg.Register(messages); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			messages = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(calls); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			calls = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(callLatency); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			callLatency = are.ExistingCollector.(*prometheus.HistogramVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(connected); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			connected = are.ExistingCollector.(prometheus.Gauge)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(transactions); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			transactions = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(energy); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			energy = are.ExistingCollector.(prometheus.Counter)
		} else {
			return nil, err
		}
	}

	return &PromSink{
		messages:     messages,
		calls:        calls,
		callLatency:  callLatency,
		connected:    connected,
		transactions: transactions,
		energy:       energy,
	}, nil
}

// RecordMessage increments the inbound message counter.
func (s *PromSink) RecordMessage(ev coremetrics.MessageEvent) error {
	s.messages.WithLabelValues(ev.Action, ev.Outcome).Inc()
	return nil
}

// RecordCall counts the call outcome and observes its latency.
func (s *PromSink) RecordCall(ev coremetrics.CallEvent) error {
	s.calls.WithLabelValues(ev.Action, strconv.FormatBool(ev.Acknowledged)).Inc()
	if ev.Acknowledged {
		s.callLatency.WithLabelValues(ev.Action).Observe(ev.Latency.Seconds())
	}
	return nil
}

// RecordTransaction counts start/stop events and accumulates delivered energy.
func (s *PromSink) RecordTransaction(ev coremetrics.TransactionEvent) error {
	event := "stopped"
	if ev.Started {
		event = "started"
	}
	s.transactions.WithLabelValues(event).Inc()
	if !ev.Started && ev.EnergyWh > 0 {
		s.energy.Add(ev.EnergyWh)
	}
	return nil
}

// RecordConnected sets the connected stations gauge.
func (s *PromSink) RecordConnected(n int) error {
	s.connected.Set(float64(n))
	return nil
}
