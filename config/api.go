package config

// APIConfig configures the operator HTTP API.
type APIConfig struct {
	Enabled bool   `json:"enabled"`
	Address string `json:"address"`
	// Token guards every route with "Authorization: Bearer <token>" when
	// non-empty.
	Token string `json:"token"`
}

// SetDefaults applies sane defaults.
func (c *APIConfig) SetDefaults() {
	if c.Address == "" {
		c.Address = ":8080"
	}
}
