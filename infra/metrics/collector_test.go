package metrics

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/kilianp07/csms/core/events"
	coremetrics "github.com/kilianp07/csms/core/metrics"
	"github.com/kilianp07/csms/internal/eventbus"
)

type txSink struct {
	mu  sync.Mutex
	evs []coremetrics.TransactionEvent
}

func (s *txSink) RecordMessage(coremetrics.MessageEvent) error { return nil }

func (s *txSink) RecordTransaction(ev coremetrics.TransactionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evs = append(s.evs, ev)
	return nil
}

func (s *txSink) recorded() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.evs)
}

func TestEventCollectorRecordsTransactions(t *testing.T) {
	bus := eventbus.New()
	defer bus.Close()
	sink := &txSink{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	StartEventCollector(ctx, bus, sink)
	time.Sleep(10 * time.Millisecond)

	bus.Publish(events.TransactionEvent{ChargePointID: "CP1", TransactionID: "tx-1", Started: true})
	bus.Publish(events.TransactionEvent{ChargePointID: "CP1", TransactionID: "tx-1", EnergyWh: 4500})

	deadline := time.After(2 * time.Second)
	for sink.recorded() < 2 {
		select {
		case <-deadline:
			t.Fatalf("recorded %d transaction events, want 2", sink.recorded())
		case <-time.After(5 * time.Millisecond):
		}
	}
}
