package models

import "time"

// IncidentType selects the containment playbook.
type IncidentType string

const (
	IncidentBruteForce          IncidentType = "brute_force_attack"
	IncidentPrivilegeEscalation IncidentType = "privilege_escalation"
	IncidentDataExfiltration    IncidentType = "data_exfiltration"
	IncidentMalwareDetection    IncidentType = "malware_detection"
	IncidentSuspiciousActivity  IncidentType = "suspicious_activity"
)

// Known reports whether t has a containment playbook.
func (t IncidentType) Known() bool {
	switch t {
	case IncidentBruteForce, IncidentPrivilegeEscalation, IncidentDataExfiltration,
		IncidentMalwareDetection, IncidentSuspiciousActivity:
		return true
	}
	return false
}

// AutomatedAction is one containment step and its outcome.
type AutomatedAction struct {
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Executed    bool      `json:"executed"`
	Timestamp   time.Time `json:"timestamp"`
	Error       string    `json:"error,omitempty"`
}

// SecurityIncident is the persisted audit trail of one automated response.
type SecurityIncident struct {
	ID        string                 `json:"id"`
	Type      IncidentType           `json:"type"`
	Severity  Severity               `json:"severity"`
	ActorID   *string                `json:"actor_id,omitempty"`
	IPAddress *string                `json:"ip_address,omitempty"`
	EventData map[string]interface{} `json:"event_data"`
	Actions   []AutomatedAction      `json:"actions"`
	AlertID   *string                `json:"alert_id,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// ExecutedCount returns how many actions ran successfully.
func (i *SecurityIncident) ExecutedCount() int {
	n := 0
	for _, a := range i.Actions {
		if a.Executed {
			n++
		}
	}
	return n
}
