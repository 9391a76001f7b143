package central

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/kilianp07/csms/core/logger"
	"github.com/kilianp07/csms/core/metrics"
	"github.com/kilianp07/csms/core/model"
	"github.com/kilianp07/csms/core/ocpp"
	"github.com/kilianp07/csms/core/store"
	"github.com/kilianp07/csms/core/transaction"
)

// Handler applies inbound station calls to charge point state and the
// transaction manager. One instance serves every session; per-station
// ordering is guaranteed by each session's read loop, and all state lives in
// the store.
type Handler struct {
	store      store.Store
	tx         *transaction.Manager
	hbInterval time.Duration
	sink       metrics.MetricsSink
	log        logger.Logger
}

// NewHandler creates the inbound dispatcher. hbInterval is the heartbeat
// interval assigned to stations in BootNotification replies.
func NewHandler(st store.Store, tx *transaction.Manager, hbInterval time.Duration, sink metrics.MetricsSink, log logger.Logger) *Handler {
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &Handler{store: st, tx: tx, hbInterval: hbInterval, sink: sink, log: log}
}

// HandleCall dispatches one validated inbound request. Returned errors
// become CallError "InternalError" on the wire; business rejections are part
// of the reply payload.
func (h *Handler) HandleCall(ctx context.Context, chargePointID string, req ocpp.Request) (any, error) {
	var payload any
	var err error
	switch r := req.(type) {
	case *ocpp.BootNotificationRequest:
		payload, err = h.handleBoot(ctx, chargePointID, r)
	case *ocpp.HeartbeatRequest:
		payload, err = h.handleHeartbeat(ctx, chargePointID)
	case *ocpp.StatusNotificationRequest:
		payload, err = h.handleStatus(ctx, chargePointID, r)
	case *ocpp.AuthorizeRequest:
		payload, err = h.handleAuthorize(ctx, r)
	case *ocpp.StartTransactionRequest:
		payload, err = h.handleStart(ctx, chargePointID, r)
	case *ocpp.StopTransactionRequest:
		payload, err = h.handleStop(ctx, r)
	case *ocpp.MeterValuesRequest:
		payload, err = h.handleMeterValues(ctx, chargePointID, r)
	default:
		return nil, fmt.Errorf("no handler for %s", req.Action())
	}

	outcome := "result"
	if err != nil {
		outcome = "call_error"
	}
	if mErr := h.sink.RecordMessage(metrics.MessageEvent{
		ChargePointID: chargePointID,
		Action:        string(req.Action()),
		Outcome:       outcome,
		Time:          time.Now(),
	}); mErr != nil {
		h.log.Errorf("message metric: %v", mErr)
	}
	return payload, err
}

// handleBoot upserts the station's identity and admits it. Admission is
// unconditional at the protocol level; policy-based rejection is out of
// scope.
func (h *Handler) handleBoot(ctx context.Context, id string, r *ocpp.BootNotificationRequest) (any, error) {
	cp, err := h.store.GetChargePoint(ctx, id)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	cp.ID = id
	cp.Vendor = r.ChargePointVendor
	cp.Model = r.ChargePointModel
	cp.SerialNumber = r.ChargePointSerialNumber
	cp.FirmwareVersion = r.FirmwareVersion
	cp.Online = true
	cp.LastSeen = time.Now()
	cp.Status = string(model.StatusAvailable)
	if err := h.store.UpsertChargePoint(ctx, cp); err != nil {
		return nil, err
	}
	h.log.Infof("boot from %s (%s %s)", id, r.ChargePointVendor, r.ChargePointModel)
	return ocpp.BootNotificationResponse{
		Status:      ocpp.RegistrationAccepted,
		CurrentTime: time.Now().UTC(),
		Interval:    int(h.hbInterval.Seconds()),
	}, nil
}

func (h *Handler) handleHeartbeat(ctx context.Context, id string) (any, error) {
	if err := h.store.SetOnline(ctx, id, true); err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	return ocpp.HeartbeatResponse{CurrentTime: time.Now().UTC()}, nil
}

// handleStatus stores the reported state verbatim; the station is the source
// of truth for its own hardware, so no transition legality is enforced.
// Connector 0 addresses the charge point itself.
func (h *Handler) handleStatus(ctx context.Context, id string, r *ocpp.StatusNotificationRequest) (any, error) {
	errCode := r.ErrorCode
	if errCode == model.NoError {
		errCode = ""
	}

	if r.ConnectorId == 0 {
		cp, err := h.store.GetChargePoint(ctx, id)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		cp.ID = id
		cp.Status = r.Status
		cp.ErrorCode = errCode
		cp.VendorErrorCode = r.VendorErrorCode
		if err := h.store.UpsertChargePoint(ctx, cp); err != nil {
			return nil, err
		}
		return ocpp.StatusNotificationResponse{}, nil
	}

	c, err := h.store.GetConnector(ctx, id, r.ConnectorId)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	c.ChargePointID = id
	c.ID = r.ConnectorId
	c.Status = model.ConnectorStatus(r.Status)
	c.ErrorCode = errCode
	if err := h.store.UpsertConnector(ctx, c); err != nil {
		return nil, err
	}
	h.log.Debugf("status %s for %s:%d (error=%q)", r.Status, id, r.ConnectorId, errCode)
	return ocpp.StatusNotificationResponse{}, nil
}

func (h *Handler) handleAuthorize(ctx context.Context, r *ocpp.AuthorizeRequest) (any, error) {
	decision, err := h.tx.Authorize(ctx, r.IdTag)
	if err != nil {
		return nil, err
	}
	return ocpp.AuthorizeResponse{IdTagInfo: ocpp.IdTagInfo{Status: string(decision)}}, nil
}

func (h *Handler) handleStart(ctx context.Context, id string, r *ocpp.StartTransactionRequest) (any, error) {
	txID, decision, err := h.tx.Start(ctx, id, r.ConnectorId, r.IdTag, r.MeterStart, r.Timestamp)
	if err != nil {
		return nil, err
	}
	return ocpp.StartTransactionResponse{
		TransactionId: txID,
		IdTagInfo:     ocpp.IdTagInfo{Status: string(decision)},
	}, nil
}

// handleStop always answers normally: stops for unknown or already-closed
// transactions are expected retransmits, reported as anomalies, never as
// protocol errors.
func (h *Handler) handleStop(ctx context.Context, r *ocpp.StopTransactionRequest) (any, error) {
	err := h.tx.Stop(ctx, r.TransactionId, r.MeterStop, r.Timestamp, r.Reason)
	switch {
	case err == nil:
	case errors.Is(err, transaction.ErrNotActive), errors.Is(err, transaction.ErrUnknownTransaction):
		h.log.Warnf("stop anomaly for %s: %v", r.TransactionId, err)
	default:
		return nil, err
	}
	return ocpp.StopTransactionResponse{}, nil
}

func (h *Handler) handleMeterValues(ctx context.Context, id string, r *ocpp.MeterValuesRequest) (any, error) {
	var samples []model.MeterValueSample
	for _, mv := range r.MeterValue {
		for _, sv := range mv.SampledValue {
			v, err := strconv.ParseFloat(sv.Value, 64)
			if err != nil {
				h.log.Warnf("unparsable sampled value %q from %s:%d", sv.Value, id, r.ConnectorId)
				continue
			}
			samples = append(samples, model.MeterValueSample{
				ChargePointID: id,
				ConnectorID:   r.ConnectorId,
				Timestamp:     mv.Timestamp,
				Measurand:     sv.Measurand,
				Value:         v,
				Unit:          sv.Unit,
				Phase:         sv.Phase,
				Location:      sv.Location,
			})
		}
	}
	if err := h.tx.RecordMeterValues(ctx, id, r.ConnectorId, r.TransactionId, samples); err != nil {
		return nil, err
	}
	if rec, ok := h.sink.(metrics.MeterRecorder); ok && len(samples) > 0 {
		if err := rec.RecordMeterValues(samples); err != nil {
			h.log.Errorf("meter telemetry: %v", err)
		}
	}
	return ocpp.MeterValuesResponse{}, nil
}
