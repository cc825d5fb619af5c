package models

import (
	"fmt"
	"time"
)

// AlertStatus is the lifecycle state of a SecurityAlert.
type AlertStatus string

const (
	AlertStatusOpen         AlertStatus = "open"
	AlertStatusAcknowledged AlertStatus = "acknowledged"
	AlertStatusResolved     AlertStatus = "resolved"
)

var validAlertStatuses = map[AlertStatus]bool{
	AlertStatusOpen:         true,
	AlertStatusAcknowledged: true,
	AlertStatusResolved:     true,
}

// ParseAlertStatus validates s.
func ParseAlertStatus(s string) (AlertStatus, error) {
	st := AlertStatus(s)
	if !validAlertStatuses[st] {
		return "", fmt.Errorf("unknown alert status %q", s)
	}
	return st, nil
}

// SecurityAlert is a follow-up item raised by detection or response.
type SecurityAlert struct {
	ID          string                 `json:"id"`
	AlertType   string                 `json:"alert_type"`
	Priority    Severity               `json:"priority"`
	Status      AlertStatus            `json:"status"`
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	Notes       string                 `json:"notes,omitempty"`
	AssignedTo  *string                `json:"assigned_to,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

// AlertQuery filters alert reads.
type AlertQuery struct {
	Status   AlertStatus
	Priority Severity
	Limit    int
}

// AlertStatusUpdate carries an explicit status transition.
type AlertStatusUpdate struct {
	Status     AlertStatus
	Notes      *string
	AssignedTo *string
}
