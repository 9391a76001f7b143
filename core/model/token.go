package model

import "time"

// AuthorizationStatus is the decision returned for an id tag, mirroring the
// OCPP IdTagInfo status values.
type AuthorizationStatus string

const (
	AuthAccepted     AuthorizationStatus = "Accepted"
	AuthBlocked      AuthorizationStatus = "Blocked"
	AuthExpired      AuthorizationStatus = "Expired"
	AuthInvalid      AuthorizationStatus = "Invalid"
	AuthConcurrentTx AuthorizationStatus = "ConcurrentTx"
)

// AuthorizationToken is the stored credential ("id tag") presented by a
// driver to open a transaction.
type AuthorizationToken struct {
	IdTag          string              `json:"id_tag"`
	Status         AuthorizationStatus `json:"status"`
	ExpiryDate     *time.Time          `json:"expiry_date,omitempty"`
	MaxDailyEnergy float64             `json:"max_daily_energy,omitempty"`
	MaxDailyCost   float64             `json:"max_daily_cost,omitempty"`
	LastUsed       time.Time           `json:"last_used"`
}

// Expired reports whether the token's expiry date has passed.
func (t AuthorizationToken) Expired(now time.Time) bool {
	return t.ExpiryDate != nil && now.After(*t.ExpiryDate)
}

// Decide maps the stored token state to an authorization decision at the
// given instant. Any state other than Accepted, or a passed expiry date,
// must never open a transaction.
func (t AuthorizationToken) Decide(now time.Time) AuthorizationStatus {
	if t.Status != AuthAccepted {
		return t.Status
	}
	if t.Expired(now) {
		return AuthExpired
	}
	return AuthAccepted
}
