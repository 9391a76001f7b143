package ocpp

// Action names an OCPP operation carried by a Call frame.
type Action string

// Actions initiated by the station.
const (
	ActionBootNotification   Action = "BootNotification"
	ActionHeartbeat          Action = "Heartbeat"
	ActionStatusNotification Action = "StatusNotification"
	ActionAuthorize          Action = "Authorize"
	ActionStartTransaction   Action = "StartTransaction"
	ActionStopTransaction    Action = "StopTransaction"
	ActionMeterValues        Action = "MeterValues"
)

// Actions initiated by the central system.
const (
	ActionRemoteStartTransaction Action = "RemoteStartTransaction"
	ActionRemoteStopTransaction  Action = "RemoteStopTransaction"
	ActionGetConfiguration       Action = "GetConfiguration"
	ActionChangeConfiguration    Action = "ChangeConfiguration"
	ActionUpdateFirmware         Action = "UpdateFirmware"
)

// Request is a typed Call payload. Validate reports schema violations that
// JSON decoding alone cannot catch (missing required fields, range checks).
type Request interface {
	Action() Action
	Validate() error
}

// inboundRequests is the static dispatch table mapping the action of a
// station-initiated Call to a factory for its typed payload. Built once at
// package init; no reflection-based routing.
var inboundRequests = map[Action]func() Request{
	ActionBootNotification:   func() Request { return &BootNotificationRequest{} },
	ActionHeartbeat:          func() Request { return &HeartbeatRequest{} },
	ActionStatusNotification: func() Request { return &StatusNotificationRequest{} },
	ActionAuthorize:          func() Request { return &AuthorizeRequest{} },
	ActionStartTransaction:   func() Request { return &StartTransactionRequest{} },
	ActionStopTransaction:    func() Request { return &StopTransactionRequest{} },
	ActionMeterValues:        func() Request { return &MeterValuesRequest{} },
}

// KnownInbound reports whether the action is one the central system accepts
// from stations.
func KnownInbound(a Action) bool {
	_, ok := inboundRequests[a]
	return ok
}
