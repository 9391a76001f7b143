package central

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/kilianp07/csms/core/events"
	"github.com/kilianp07/csms/core/metrics"
	"github.com/kilianp07/csms/core/ocpp"
	"github.com/kilianp07/csms/core/session"
)

// RemoteStartTransaction asks the station to start charging on a connector.
func (r *Registry) RemoteStartTransaction(ctx context.Context, stationID string, connectorID int, idTag string) CommandResult {
	req := ocpp.RemoteStartTransactionRequest{IdTag: idTag}
	if connectorID > 0 {
		req.ConnectorId = &connectorID
	}
	return r.sendCommand(ctx, stationID, ocpp.ActionRemoteStartTransaction, req, r.cfg.CommandTimeout)
}

// RemoteStopTransaction asks the station to stop the given transaction.
func (r *Registry) RemoteStopTransaction(ctx context.Context, stationID, transactionID string) CommandResult {
	return r.sendCommand(ctx, stationID, ocpp.ActionRemoteStopTransaction,
		ocpp.RemoteStopTransactionRequest{TransactionId: transactionID}, r.cfg.CommandTimeout)
}

// GetConfiguration reads configuration keys from the station. With no keys,
// the station reports everything it has.
func (r *Registry) GetConfiguration(ctx context.Context, stationID string, keys []string) CommandResult {
	return r.sendCommand(ctx, stationID, ocpp.ActionGetConfiguration,
		ocpp.GetConfigurationRequest{Key: keys}, r.cfg.CommandTimeout)
}

// ChangeConfiguration writes one configuration key on the station. An
// accepted HeartbeatInterval change also adjusts the station's liveness
// window so the sweeper doesn't drop it for honoring its new interval.
func (r *Registry) ChangeConfiguration(ctx context.Context, stationID, key, value string) CommandResult {
	res := r.sendCommand(ctx, stationID, ocpp.ActionChangeConfiguration,
		ocpp.ChangeConfigurationRequest{Key: key, Value: value}, r.cfg.CommandTimeout)
	if res.Success && key == ocpp.KeyHeartbeatInterval {
		if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
			if s := r.Lookup(stationID); s != nil {
				s.SetHeartbeatInterval(time.Duration(secs) * time.Second)
			}
		}
	}
	return res
}

// UpdateFirmware points the station at a firmware image to download at the
// given time. The acknowledgement only confirms receipt; progress arrives
// later and is recorded for observability.
func (r *Registry) UpdateFirmware(ctx context.Context, stationID, location string, retrieveAt time.Time) CommandResult {
	return r.sendCommand(ctx, stationID, ocpp.ActionUpdateFirmware,
		ocpp.UpdateFirmwareRequest{Location: location, RetrieveDate: retrieveAt}, r.cfg.FirmwareTimeout)
}

// sendCommand resolves the station's session and translates the call round
// trip into a uniform CommandResult. All failures surface as data.
func (r *Registry) sendCommand(ctx context.Context, stationID string, action ocpp.Action, payload any, timeout time.Duration) CommandResult {
	s := r.Lookup(stationID)
	if s == nil {
		return notConnected()
	}

	start := time.Now()
	frame, err := s.SendCall(ctx, action, payload, timeout)
	latency := time.Since(start)

	res := r.translate(stationID, action, frame, err)
	r.publish(events.CallEvent{
		ChargePointID: stationID,
		Action:        action,
		Acknowledged:  res.Success,
		TimedOut:      res.Error == ErrorTimeout,
		Latency:       latency,
	})
	if rec, ok := r.sink.(metrics.CallRecorder); ok {
		if mErr := rec.RecordCall(metrics.CallEvent{
			ChargePointID: stationID,
			Action:        string(action),
			Acknowledged:  res.Success,
			TimedOut:      res.Error == ErrorTimeout,
			Latency:       latency,
			Time:          time.Now(),
		}); mErr != nil {
			r.log.Errorf("call metric: %v", mErr)
		}
	}
	return res
}

func (r *Registry) translate(stationID string, action ocpp.Action, frame *ocpp.Frame, err error) CommandResult {
	switch {
	case errors.Is(err, session.ErrCallTimeout):
		r.log.Warnf("%s to %s timed out", action, stationID)
		return CommandResult{Error: ErrorTimeout}
	case errors.Is(err, session.ErrConnectionClosed), errors.Is(err, session.ErrNotActive):
		return CommandResult{Error: ErrorConnectionClosed}
	case err != nil:
		return CommandResult{Error: err.Error()}
	}

	if frame.Type == ocpp.MessageCallError {
		r.log.Warnf("%s to %s answered with %s: %s", action, stationID, frame.ErrorCode, frame.ErrorDescription)
		return CommandResult{Status: string(frame.ErrorCode), Error: frame.ErrorDescription}
	}

	// Replies carrying a status field report Accepted/Rejected; replies
	// without one (GetConfiguration, UpdateFirmware) are successful by
	// arrival.
	var probe struct {
		Status string `json:"status"`
	}
	status := ""
	if len(frame.Payload) > 0 {
		if uerr := json.Unmarshal(frame.Payload, &probe); uerr == nil {
			status = probe.Status
		}
	}
	success := status == "" || status == "Accepted"
	if !success {
		r.log.Infof("%s rejected by %s: %s", action, stationID, status)
	}
	return CommandResult{Success: success, Status: status, Payload: frame.Payload}
}
