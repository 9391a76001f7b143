package config

import (
	"fmt"
	"time"

	"github.com/kilianp07/csms/core/model"
)

// TokenConfig seeds one authorization token into the store at startup.
type TokenConfig struct {
	IdTag  string `json:"id_tag"`
	Status string `json:"status"`
	// Expiry is an RFC 3339 timestamp; empty means no expiry.
	Expiry string `json:"expiry,omitempty"`
}

// Validate checks the tag, status and expiry format.
func (t TokenConfig) Validate() error {
	if t.IdTag == "" {
		return fmt.Errorf("token id_tag is required")
	}
	switch model.AuthorizationStatus(t.Status) {
	case model.AuthAccepted, model.AuthBlocked, model.AuthExpired, model.AuthInvalid:
	default:
		return fmt.Errorf("token %s: unknown status %q", t.IdTag, t.Status)
	}
	if t.Expiry != "" {
		if _, err := time.Parse(time.RFC3339, t.Expiry); err != nil {
			return fmt.Errorf("token %s: bad expiry: %w", t.IdTag, err)
		}
	}
	return nil
}

// Token converts the file representation into the stored model.
func (t TokenConfig) Token() model.AuthorizationToken {
	tok := model.AuthorizationToken{
		IdTag:  t.IdTag,
		Status: model.AuthorizationStatus(t.Status),
	}
	if t.Expiry != "" {
		if exp, err := time.Parse(time.RFC3339, t.Expiry); err == nil {
			tok.ExpiryDate = &exp
		}
	}
	return tok
}
