// Package notify publishes security notifications to the message bus.
package notify

import "time"

// AlertCreatedEvent is published to security.alerts.created.
type AlertCreatedEvent struct {
	AlertID     string                 `json:"alert_id"`
	AlertType   string                 `json:"alert_type"`
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	Priority    string                 `json:"priority"`
	CreatedAt   time.Time              `json:"created_at"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// AlertUpdatedEvent is published to security.alerts.updated when an alert
// status is changed.
type AlertUpdatedEvent struct {
	AlertID   string    `json:"alert_id"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
	UpdatedBy string    `json:"updated_by"`
}

// IncidentEvent is published for every handled incident and, for critical
// ones, to security.incidents.critical.
type IncidentEvent struct {
	IncidentID      string    `json:"incident_id"`
	Type            string    `json:"type"`
	Severity        string    `json:"severity"`
	ActorID         string    `json:"actor_id,omitempty"`
	IPAddress       string    `json:"ip_address,omitempty"`
	ActionsExecuted int       `json:"actions_executed"`
	ActionsFailed   int       `json:"actions_failed"`
	AlertID         string    `json:"alert_id,omitempty"`
	HandledAt       time.Time `json:"handled_at"`
}
