package repository

import (
	"context"
	"errors"
	"time"

	"github.com/telhawk-systems/guardrail/internal/models"
)

var (
	ErrEventNotFound  = errors.New("security event not found")
	ErrAlertNotFound  = errors.New("security alert not found")
	ErrRoleNotFound   = errors.New("role assignment not found")
	ErrConfigNotFound = errors.New("security config not found")
)

// DefaultListLimit applies when a query carries no limit.
const DefaultListLimit = 1000

// EventStore is the append-only security event table.
type EventStore interface {
	InsertEvent(ctx context.Context, e *models.SecurityEvent) error
	CountEvents(ctx context.Context, q models.EventQuery) (int, error)
	// LatestEvent returns the newest event matching q or ErrEventNotFound.
	LatestEvent(ctx context.Context, q models.EventQuery) (*models.SecurityEvent, error)
	// IncrementAggregate sets aggregated_count to max(current, seen)+1 and
	// stamps last_aggregated_at in one statement, returning the new count.
	IncrementAggregate(ctx context.Context, id string, seen int, at time.Time) (int, error)
	// ListEvents returns events matching q, newest first.
	ListEvents(ctx context.Context, q models.EventQuery) ([]*models.SecurityEvent, error)
	EventStats(ctx context.Context, since time.Time, topN int) (*models.EventStats, error)
	// CountEventsByHour buckets events matching q by hour of day in loc.
	CountEventsByHour(ctx context.Context, q models.EventQuery, loc *time.Location) ([24]int, error)
}

// AuditStore persists signed audit log entries.
type AuditStore interface {
	InsertAuditLog(ctx context.Context, e *models.AuditLogEntry) error
}

// AlertStore persists security alerts.
type AlertStore interface {
	CreateAlert(ctx context.Context, a *models.SecurityAlert) error
	GetAlert(ctx context.Context, id string) (*models.SecurityAlert, error)
	ListAlerts(ctx context.Context, q models.AlertQuery) ([]*models.SecurityAlert, error)
	UpdateAlertStatus(ctx context.Context, id string, upd models.AlertStatusUpdate) (*models.SecurityAlert, error)
	CountAlertsByStatus(ctx context.Context) (map[models.AlertStatus]int, error)
}

// SessionStore reads and contains sessions owned by the auth platform.
type SessionStore interface {
	// ListSessions returns sessions newest first.
	ListSessions(ctx context.Context, q models.SessionQuery) ([]*models.Session, error)
	// DeactivateSessions applies d to every active session of d.UserID and
	// returns how many rows changed.
	DeactivateSessions(ctx context.Context, d models.SessionDeactivation) (int, error)
	CountActiveSessions(ctx context.Context) (int, error)
}

// RoleStore reads and reverts role assignments.
type RoleStore interface {
	// GetActiveRole returns the most privileged active role of userID or
	// ErrRoleNotFound.
	GetActiveRole(ctx context.Context, userID string) (models.Role, error)
	DeactivateRoles(ctx context.Context, userID string) (int, error)
	// SetRole deactivates every other role of userID and makes role the
	// only active one.
	SetRole(ctx context.Context, userID string, role models.Role) error
}

// ConfigStore holds security configuration entries written by containment.
type ConfigStore interface {
	UpsertConfig(ctx context.Context, c *models.SecurityConfig) error
	GetConfig(ctx context.Context, key string) (*models.SecurityConfig, error)
}

// IncidentStore persists incident audit trails.
type IncidentStore interface {
	CreateIncident(ctx context.Context, i *models.SecurityIncident) error
}

// Repository is the full persistence surface of the pipeline.
type Repository interface {
	EventStore
	AuditStore
	AlertStore
	SessionStore
	RoleStore
	ConfigStore
	IncidentStore

	Ping(ctx context.Context) error
	Close() error
}

var roleRank = map[models.Role]int{
	models.RoleUser:      0,
	models.RoleModerator: 1,
	models.RoleAdmin:     2,
}

// highestRole picks the most privileged role from roles.
func highestRole(roles []models.Role) (models.Role, bool) {
	var best models.Role
	found := false
	for _, r := range roles {
		rank, known := roleRank[r]
		if !known {
			continue
		}
		if !found || rank > roleRank[best] {
			best = r
			found = true
		}
	}
	return best, found
}
