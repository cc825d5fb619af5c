package models

import "time"

// AuditLogEntry is an HMAC-signed record of a privileged or critical action.
type AuditLogEntry struct {
	ID           string                 `json:"id"`
	ActorID      *string                `json:"actor_id,omitempty"`
	Action       string                 `json:"action"`
	ResourceType string                 `json:"resource_type"`
	ResourceID   string                 `json:"resource_id"`
	Details      map[string]interface{} `json:"details"`
	IPAddress    *string                `json:"ip_address,omitempty"`
	Signature    string                 `json:"signature"`
	CreatedAt    time.Time              `json:"created_at"`
}
