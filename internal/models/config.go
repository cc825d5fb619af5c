package models

import "time"

// Well-known security configuration keys.
const (
	ConfigBlockedIPPrefix          = "blocked_ip:"
	ConfigEmergencyDataProtection  = "emergency_data_protection"
	ConfigEnhancedMonitoringPrefix = "enhanced_monitoring:"
)

// SecurityConfig is a key/value entry written by containment actions.
type SecurityConfig struct {
	Key       string                 `json:"key"`
	Value     map[string]interface{} `json:"value"`
	UpdatedBy string                 `json:"updated_by"`
	UpdatedAt time.Time              `json:"updated_at"`
	ExpiresAt *time.Time             `json:"expires_at,omitempty"`
}

// Expired reports whether the entry has a past expiry at now.
func (c *SecurityConfig) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && !now.Before(*c.ExpiresAt)
}
