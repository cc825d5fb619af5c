package models

import "time"

// SecurityEvent is an immutable record of a security-relevant action.
// The only mutation allowed after insert is the aggregation counter in
// EventData (aggregated_count, last_aggregated_at).
type SecurityEvent struct {
	ID        string                 `json:"id"`
	EventType string                 `json:"event_type"`
	Severity  Severity               `json:"severity"`
	ActorID   *string                `json:"actor_id,omitempty"`
	SessionID *string                `json:"session_id,omitempty"`
	IPAddress *string                `json:"ip_address,omitempty"`
	UserAgent string                 `json:"user_agent,omitempty"`
	Source    string                 `json:"source"`
	EventData map[string]interface{} `json:"event_data"`
	RiskScore int                    `json:"risk_score"`
	CreatedAt time.Time              `json:"created_at"`
}

// Payload keys written by aggregation.
const (
	DataAggregatedCount  = "aggregated_count"
	DataLastAggregatedAt = "last_aggregated_at"
)

// AggregatedCount returns the aggregation counter stored in the payload, or
// 1 for a row that has never been aggregated into.
func (e *SecurityEvent) AggregatedCount() int {
	switch v := e.EventData[DataAggregatedCount].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 1
	}
}

// Actor returns the actor ID or "" for anonymous events.
func (e *SecurityEvent) Actor() string {
	if e.ActorID == nil {
		return ""
	}
	return *e.ActorID
}

// IP returns the stored address or "".
func (e *SecurityEvent) IP() string {
	if e.IPAddress == nil {
		return ""
	}
	return *e.IPAddress
}

// EventQuery filters event reads. Zero values mean "no filter".
type EventQuery struct {
	EventType string
	// EventTypePattern is a regular expression matched against event_type.
	EventTypePattern string
	IPAddress        string
	ActorID          string
	Source           string
	Severities       []Severity
	Since            time.Time
	Until            time.Time
	Limit            int
}

// EventStats summarises events since a point in time for dashboards.
type EventStats struct {
	Since         time.Time        `json:"since"`
	Total         int              `json:"total"`
	BySeverity    map[Severity]int `json:"by_severity"`
	HighRisk      int              `json:"high_risk"`
	TopEventTypes []EventTypeCount `json:"top_event_types"`
	UniqueIPs     int              `json:"unique_ips"`
	UniqueActors  int              `json:"unique_actors"`
}

type EventTypeCount struct {
	EventType string `json:"event_type"`
	Count     int    `json:"count"`
}

// StringPtr returns nil for "" and &s otherwise.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
