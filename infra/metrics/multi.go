package metrics

import (
	coremetrics "github.com/kilianp07/csms/core/metrics"
	"github.com/kilianp07/csms/core/model"
)

// MultiSink fans records out to multiple sinks.
type MultiSink struct {
	Sinks []coremetrics.MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...coremetrics.MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordMessage forwards the record to all sinks, returning the first error encountered.
func (m *MultiSink) RecordMessage(ev coremetrics.MessageEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordMessage(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordCall forwards call round trips to sinks that record them.
func (m *MultiSink) RecordCall(ev coremetrics.CallEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.CallRecorder); ok {
			if err := rec.RecordCall(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordTransaction forwards transaction lifecycle events.
func (m *MultiSink) RecordTransaction(ev coremetrics.TransactionEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.TransactionRecorder); ok {
			if err := rec.RecordTransaction(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordMeterValues forwards meter samples.
func (m *MultiSink) RecordMeterValues(samples []model.MeterValueSample) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.MeterRecorder); ok {
			if err := rec.RecordMeterValues(samples); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordConnected forwards the connected stations gauge.
func (m *MultiSink) RecordConnected(n int) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.ConnectedRecorder); ok {
			if err := rec.RecordConnected(n); err != nil {
				return err
			}
		}
	}
	return nil
}
