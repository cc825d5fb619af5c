package models

// EventInput is a request to record one security event. Boundary metadata
// (IPAddress, UserAgent) is resolved by the caller.
type EventInput struct {
	EventType string
	Severity  Severity
	EventData map[string]interface{}
	ActorID   string
	SessionID string
	Source    string
	IPAddress string
	UserAgent string
}

// LogResult reports what the event logger did with an EventInput. Exactly
// one of EventID, Filtered, RateLimited or Aggregated describes the outcome.
type LogResult struct {
	Success         bool   `json:"success"`
	EventID         string `json:"event_id,omitempty"`
	RiskScore       int    `json:"risk_score,omitempty"`
	Filtered        bool   `json:"filtered,omitempty"`
	RateLimited     bool   `json:"rate_limited,omitempty"`
	Aggregated      bool   `json:"aggregated,omitempty"`
	AggregatedCount int    `json:"aggregated_count,omitempty"`
	Warning         string `json:"warning,omitempty"`
}

// Stored reports whether a new row was written.
func (r *LogResult) Stored() bool {
	return r != nil && r.EventID != ""
}
