package ocpp

import (
	"fmt"
	"time"
)

// BootNotificationRequest announces a station after (re)connection.
type BootNotificationRequest struct {
	ChargePointVendor       string `json:"chargePointVendor"`
	ChargePointModel        string `json:"chargePointModel"`
	ChargePointSerialNumber string `json:"chargePointSerialNumber,omitempty"`
	FirmwareVersion         string `json:"firmwareVersion,omitempty"`
	Iccid                   string `json:"iccid,omitempty"`
	Imsi                    string `json:"imsi,omitempty"`
	MeterType               string `json:"meterType,omitempty"`
	MeterSerialNumber       string `json:"meterSerialNumber,omitempty"`
}

func (*BootNotificationRequest) Action() Action { return ActionBootNotification }

func (r *BootNotificationRequest) Validate() error {
	if r.ChargePointVendor == "" {
		return fmt.Errorf("chargePointVendor is required")
	}
	if r.ChargePointModel == "" {
		return fmt.Errorf("chargePointModel is required")
	}
	return nil
}

// RegistrationStatus is the admission decision in a BootNotification reply.
type RegistrationStatus string

const (
	RegistrationAccepted RegistrationStatus = "Accepted"
	RegistrationPending  RegistrationStatus = "Pending"
	RegistrationRejected RegistrationStatus = "Rejected"
)

// BootNotificationResponse carries the admission decision, the server time
// and the heartbeat interval assigned to the station, in seconds.
type BootNotificationResponse struct {
	Status      RegistrationStatus `json:"status"`
	CurrentTime time.Time          `json:"currentTime"`
	Interval    int                `json:"interval"`
}

type HeartbeatRequest struct{}

func (*HeartbeatRequest) Action() Action  { return ActionHeartbeat }
func (*HeartbeatRequest) Validate() error { return nil }

type HeartbeatResponse struct {
	CurrentTime time.Time `json:"currentTime"`
}

// StatusNotificationRequest reports a connector state change. ConnectorId 0
// refers to the charge point itself.
type StatusNotificationRequest struct {
	ConnectorId     int        `json:"connectorId"`
	ErrorCode       string     `json:"errorCode"`
	Status          string     `json:"status"`
	Info            string     `json:"info,omitempty"`
	Timestamp       *time.Time `json:"timestamp,omitempty"`
	VendorId        string     `json:"vendorId,omitempty"`
	VendorErrorCode string     `json:"vendorErrorCode,omitempty"`
}

func (*StatusNotificationRequest) Action() Action { return ActionStatusNotification }

func (r *StatusNotificationRequest) Validate() error {
	if r.ConnectorId < 0 {
		return fmt.Errorf("connectorId must be >= 0")
	}
	if r.Status == "" {
		return fmt.Errorf("status is required")
	}
	if r.ErrorCode == "" {
		return fmt.Errorf("errorCode is required")
	}
	return nil
}

type StatusNotificationResponse struct{}

type AuthorizeRequest struct {
	IdTag string `json:"idTag"`
}

func (*AuthorizeRequest) Action() Action { return ActionAuthorize }

func (r *AuthorizeRequest) Validate() error {
	if r.IdTag == "" {
		return fmt.Errorf("idTag is required")
	}
	return nil
}

// IdTagInfo is the authorization verdict embedded in several replies.
type IdTagInfo struct {
	Status     string     `json:"status"`
	ExpiryDate *time.Time `json:"expiryDate,omitempty"`
}

type AuthorizeResponse struct {
	IdTagInfo IdTagInfo `json:"idTagInfo"`
}

type StartTransactionRequest struct {
	ConnectorId   int       `json:"connectorId"`
	IdTag         string    `json:"idTag"`
	MeterStart    float64   `json:"meterStart"`
	Timestamp     time.Time `json:"timestamp"`
	ReservationId *int      `json:"reservationId,omitempty"`
}

func (*StartTransactionRequest) Action() Action { return ActionStartTransaction }

func (r *StartTransactionRequest) Validate() error {
	if r.ConnectorId < 1 {
		return fmt.Errorf("connectorId must be >= 1")
	}
	if r.IdTag == "" {
		return fmt.Errorf("idTag is required")
	}
	if r.Timestamp.IsZero() {
		return fmt.Errorf("timestamp is required")
	}
	return nil
}

type StartTransactionResponse struct {
	TransactionId string    `json:"transactionId"`
	IdTagInfo     IdTagInfo `json:"idTagInfo"`
}

type StopTransactionRequest struct {
	TransactionId string    `json:"transactionId"`
	MeterStop     float64   `json:"meterStop"`
	Timestamp     time.Time `json:"timestamp"`
	Reason        string    `json:"reason,omitempty"`
	IdTag         string    `json:"idTag,omitempty"`
}

func (*StopTransactionRequest) Action() Action { return ActionStopTransaction }

func (r *StopTransactionRequest) Validate() error {
	if r.TransactionId == "" {
		return fmt.Errorf("transactionId is required")
	}
	if r.Timestamp.IsZero() {
		return fmt.Errorf("timestamp is required")
	}
	return nil
}

type StopTransactionResponse struct {
	IdTagInfo *IdTagInfo `json:"idTagInfo,omitempty"`
}

// SampledValue is one reading inside a MeterValue entry.
type SampledValue struct {
	Value     string `json:"value"`
	Measurand string `json:"measurand,omitempty"`
	Unit      string `json:"unit,omitempty"`
	Phase     string `json:"phase,omitempty"`
	Location  string `json:"location,omitempty"`
	Context   string `json:"context,omitempty"`
}

// MeterValue groups sampled values taken at one instant.
type MeterValue struct {
	Timestamp    time.Time      `json:"timestamp"`
	SampledValue []SampledValue `json:"sampledValue"`
}

type MeterValuesRequest struct {
	ConnectorId   int          `json:"connectorId"`
	TransactionId *string      `json:"transactionId,omitempty"`
	MeterValue    []MeterValue `json:"meterValue"`
}

func (*MeterValuesRequest) Action() Action { return ActionMeterValues }

func (r *MeterValuesRequest) Validate() error {
	if r.ConnectorId < 0 {
		return fmt.Errorf("connectorId must be >= 0")
	}
	if len(r.MeterValue) == 0 {
		return fmt.Errorf("meterValue must not be empty")
	}
	for i, mv := range r.MeterValue {
		if len(mv.SampledValue) == 0 {
			return fmt.Errorf("meterValue[%d].sampledValue must not be empty", i)
		}
	}
	return nil
}

type MeterValuesResponse struct{}

// Outbound request/response pairs, issued by the central system.

type RemoteStartTransactionRequest struct {
	ConnectorId *int   `json:"connectorId,omitempty"`
	IdTag       string `json:"idTag"`
}

type RemoteStartTransactionResponse struct {
	Status string `json:"status"`
}

type RemoteStopTransactionRequest struct {
	TransactionId string `json:"transactionId"`
}

type RemoteStopTransactionResponse struct {
	Status string `json:"status"`
}

type GetConfigurationRequest struct {
	Key []string `json:"key,omitempty"`
}

// ConfigurationKey is one key/value entry in a GetConfiguration reply.
type ConfigurationKey struct {
	Key      string  `json:"key"`
	Readonly bool    `json:"readonly"`
	Value    *string `json:"value,omitempty"`
}

type GetConfigurationResponse struct {
	ConfigurationKey []ConfigurationKey `json:"configurationKey,omitempty"`
	UnknownKey       []string           `json:"unknownKey,omitempty"`
}

type ChangeConfigurationRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type ChangeConfigurationResponse struct {
	Status string `json:"status"`
}

type UpdateFirmwareRequest struct {
	Location     string    `json:"location"`
	RetrieveDate time.Time `json:"retrieveDate"`
	Retries      *int      `json:"retries,omitempty"`
}

// UpdateFirmware has an empty confirmation; progress arrives later through
// FirmwareStatusNotification, which this core records for observability only.
type UpdateFirmwareResponse struct{}
