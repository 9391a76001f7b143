package metrics

import (
	"context"
	"time"

	"github.com/kilianp07/csms/core/events"
	coremetrics "github.com/kilianp07/csms/core/metrics"
	"github.com/kilianp07/csms/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and records metrics for
// transaction events. Message and call metrics are recorded inline by the
// dispatcher, which holds the sink directly. It stops when the context is
// canceled.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus, sink coremetrics.MetricsSink) {
	if bus == nil || sink == nil {
		return
	}
	sub := bus.Subscribe()
	go func() {
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				switch e := ev.(type) {
				case events.TransactionEvent:
					if r, ok := sink.(coremetrics.TransactionRecorder); ok {
						_ = r.RecordTransaction(coremetrics.TransactionEvent{
							ChargePointID: e.ChargePointID,
							ConnectorID:   e.ConnectorID,
							TransactionID: e.TransactionID,
							Started:       e.Started,
							EnergyWh:      e.EnergyWh,
							Time:          time.Now(),
						})
					}
				}
			}
		}
	}()
}
