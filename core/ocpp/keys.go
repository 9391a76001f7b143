package ocpp

// Well-known configuration keys stations commonly expose. ChangeConfiguration
// accepts arbitrary keys; these cover the ones the central system itself
// reacts to or operators ask for by name.
const (
	KeyAuthorizeRemoteTxRequests = "AuthorizeRemoteTxRequests"
	KeyConnectionTimeOut         = "ConnectionTimeOut"
	KeyGetConfigurationMaxKeys   = "GetConfigurationMaxKeys"
	KeyHeartbeatInterval         = "HeartbeatInterval"
	KeyMeterValueSampleInterval  = "MeterValueSampleInterval"
	KeyNumberOfConnectors        = "NumberOfConnectors"
	KeyResetRetries              = "ResetRetries"
	KeySupportedFeatureProfiles  = "SupportedFeatureProfiles"
)
