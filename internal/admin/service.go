// Package admin serves security data to staff dashboards. Every payload it
// returns is redacted: event bodies are reduced to their keys and session
// secrets to presence flags.
package admin

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/telhawk-systems/guardrail/common/audit"
	"github.com/telhawk-systems/guardrail/common/database"
	"github.com/telhawk-systems/guardrail/common/httputil"
	"github.com/telhawk-systems/guardrail/common/logging"
	"github.com/telhawk-systems/guardrail/internal/auth"
	"github.com/telhawk-systems/guardrail/internal/eventlog"
	"github.com/telhawk-systems/guardrail/internal/metrics"
	"github.com/telhawk-systems/guardrail/internal/models"
	"github.com/telhawk-systems/guardrail/internal/repository"
)

// Actions accepted by Execute.
const (
	ActionGetEvents           = "get_events"
	ActionGetAlerts           = "get_alerts"
	ActionGetDashboardMetrics = "get_dashboard_metrics"
	ActionUpdateAlertStatus   = "update_alert_status"
	ActionGetUserSessions     = "get_user_sessions"
)

// AuditActionAlertUpdated is the audit action written on status changes.
const AuditActionAlertUpdated = "alert_status_updated"

const (
	defaultLimit    = 100
	maxLimit        = repository.DefaultListLimit
	dashboardWindow = 24 * time.Hour
	topEventTypes   = 10
)

var (
	ErrUnknownAction = errors.New("unknown action")
	ErrForbidden     = errors.New("insufficient capability")
)

var requiredCapability = map[string]models.Capability{
	ActionGetEvents:           models.CapReadEvents,
	ActionGetAlerts:           models.CapReadAlerts,
	ActionGetDashboardMetrics: models.CapReadMetrics,
	ActionUpdateAlertStatus:   models.CapUpdateAlerts,
	ActionGetUserSessions:     models.CapReadSessions,
}

// Store is the persistence the admin surface reads.
type Store interface {
	repository.EventStore
	repository.AlertStore
	repository.SessionStore
	repository.AuditStore
}

type AlertNotifier interface {
	AlertUpdated(ctx context.Context, a *models.SecurityAlert, updatedBy string)
}

// Request is the action-dispatch body. Fields outside the chosen action are
// ignored.
type Request struct {
	Action     string  `json:"action"`
	Severity   string  `json:"severity,omitempty"`
	EventType  string  `json:"event_type,omitempty"`
	Since      string  `json:"since,omitempty"`
	Limit      int     `json:"limit,omitempty"`
	Status     string  `json:"status,omitempty"`
	AlertID    string  `json:"alert_id,omitempty"`
	Notes      *string `json:"notes,omitempty"`
	AssignedTo *string `json:"assigned_to,omitempty"`
	UserID     string  `json:"user_id,omitempty"`
	ActiveOnly bool    `json:"active_only,omitempty"`
}

// Event is a SecurityEvent with its payload reduced to key names.
type Event struct {
	ID            string          `json:"id"`
	EventType     string          `json:"event_type"`
	Severity      models.Severity `json:"severity"`
	ActorID       *string         `json:"actor_id,omitempty"`
	HasSession    bool            `json:"has_session"`
	IPAddress     *string         `json:"ip_address,omitempty"`
	Source        string          `json:"source"`
	RiskScore     int             `json:"risk_score"`
	EventDataKeys []string        `json:"event_data_keys"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Session is a session row with its secrets replaced by presence flags.
type Session struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	HasToken       bool       `json:"has_token"`
	HasFingerprint bool       `json:"has_fingerprint"`
	IPAddress      *string    `json:"ip_address,omitempty"`
	IsActive       bool       `json:"is_active"`
	SecurityLevel  string     `json:"security_level"`
	ExpiresAt      time.Time  `json:"expires_at"`
	CreatedAt      time.Time  `json:"created_at"`
	LastActivity   *time.Time `json:"last_activity,omitempty"`
}

// Dashboard is the 24-hour overview.
type Dashboard struct {
	Since          time.Time                  `json:"since"`
	TotalEvents    int                        `json:"total_events"`
	BySeverity     map[models.Severity]int    `json:"events_by_severity"`
	TopEventTypes  []models.EventTypeCount    `json:"top_event_types"`
	HighRiskEvents int                        `json:"high_risk_events"`
	UniqueIPs      int                        `json:"unique_ips"`
	UniqueActors   int                        `json:"unique_actors"`
	AlertsByStatus map[models.AlertStatus]int `json:"alerts_by_status"`
	ActiveSessions int                        `json:"active_sessions"`
}

type Service struct {
	store    Store
	signer   *audit.Signer
	notifier AlertNotifier
	logger   *logging.Logger
	now      func() time.Time
}

func New(store Store, signer *audit.Signer, notifier AlertNotifier, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		store:    store,
		signer:   signer,
		notifier: notifier,
		logger:   logger.Component("admin"),
		now:      time.Now,
	}
}

// Execute runs req on behalf of p. Errors are ErrUnknownAction,
// ErrForbidden, *models.ValidationError, repository.ErrAlertNotFound or a
// store failure.
func (s *Service) Execute(ctx context.Context, p *auth.Principal, req Request, ip string) (result interface{}, err error) {
	defer func() {
		label := req.Action
		if _, known := requiredCapability[label]; !known {
			label = "unknown"
		}
		metrics.AdminRequests.WithLabelValues(label, outcome(err)).Inc()
	}()

	capability, ok := requiredCapability[req.Action]
	if !ok {
		return nil, ErrUnknownAction
	}
	if !p.Can(capability) {
		return nil, ErrForbidden
	}

	switch req.Action {
	case ActionGetEvents:
		return s.events(ctx, req)
	case ActionGetAlerts:
		return s.alerts(ctx, req)
	case ActionGetDashboardMetrics:
		return s.dashboard(ctx)
	case ActionUpdateAlertStatus:
		return s.updateAlert(ctx, p, req, ip)
	default:
		return s.sessions(ctx, req)
	}
}

func (s *Service) events(ctx context.Context, req Request) ([]Event, error) {
	q := models.EventQuery{
		EventType: strings.TrimSpace(req.EventType),
		Limit:     httputil.ClampLimit(req.Limit, defaultLimit, maxLimit),
	}
	verr := models.NewValidationError()
	if req.Severity != "" {
		sev, err := models.ParseSeverity(req.Severity)
		if err != nil {
			verr.Add("severity", "must be one of info, low, medium, high, critical")
		} else {
			q.Severities = []models.Severity{sev}
		}
	}
	if req.Since != "" {
		since, err := time.Parse(time.RFC3339, req.Since)
		if err != nil {
			verr.Add("since", "must be an RFC 3339 timestamp")
		} else {
			q.Since = since
		}
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	qctx, cancel := database.QueryContext(ctx)
	defer cancel()
	rows, err := s.store.ListEvents(qctx, q)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	out := make([]Event, 0, len(rows))
	for _, e := range rows {
		out = append(out, redactEvent(e))
	}
	return out, nil
}

func (s *Service) alerts(ctx context.Context, req Request) ([]*models.SecurityAlert, error) {
	q := models.AlertQuery{Limit: httputil.ClampLimit(req.Limit, defaultLimit, maxLimit)}
	if req.Status != "" {
		st, err := models.ParseAlertStatus(req.Status)
		if err != nil {
			verr := models.NewValidationError()
			verr.Add("status", "must be one of open, acknowledged, resolved")
			return nil, verr
		}
		q.Status = st
	}

	qctx, cancel := database.QueryContext(ctx)
	defer cancel()
	alerts, err := s.store.ListAlerts(qctx, q)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	return alerts, nil
}

func (s *Service) dashboard(ctx context.Context) (*Dashboard, error) {
	since := s.now().Add(-dashboardWindow)

	qctx, cancel := database.QueryContext(ctx)
	defer cancel()

	stats, err := s.store.EventStats(qctx, since, topEventTypes)
	if err != nil {
		return nil, fmt.Errorf("event stats: %w", err)
	}
	byStatus, err := s.store.CountAlertsByStatus(qctx)
	if err != nil {
		return nil, fmt.Errorf("count alerts: %w", err)
	}
	active, err := s.store.CountActiveSessions(qctx)
	if err != nil {
		return nil, fmt.Errorf("count sessions: %w", err)
	}

	return &Dashboard{
		Since:          stats.Since,
		TotalEvents:    stats.Total,
		BySeverity:     stats.BySeverity,
		TopEventTypes:  stats.TopEventTypes,
		HighRiskEvents: stats.HighRisk,
		UniqueIPs:      stats.UniqueIPs,
		UniqueActors:   stats.UniqueActors,
		AlertsByStatus: byStatus,
		ActiveSessions: active,
	}, nil
}

func (s *Service) updateAlert(ctx context.Context, p *auth.Principal, req Request, ip string) (*models.SecurityAlert, error) {
	verr := models.NewValidationError()
	if strings.TrimSpace(req.AlertID) == "" {
		verr.Add("alert_id", "is required")
	}
	status, err := models.ParseAlertStatus(req.Status)
	if err != nil {
		verr.Add("status", "must be one of open, acknowledged, resolved")
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	wctx, cancel := database.WriteContext(ctx)
	defer cancel()

	alert, err := s.store.UpdateAlertStatus(wctx, req.AlertID, models.AlertStatusUpdate{
		Status:     status,
		Notes:      req.Notes,
		AssignedTo: req.AssignedTo,
	})
	if err != nil {
		return nil, fmt.Errorf("update alert: %w", err)
	}

	log := s.logger.With(logging.AlertID(alert.ID), logging.UserID(p.UserID))
	log.InfoContext(ctx, "alert status updated", "status", string(alert.Status))

	entry := &models.AuditLogEntry{
		ID:           models.NewID(),
		ActorID:      models.StringPtr(p.UserID),
		Action:       AuditActionAlertUpdated,
		ResourceType: "security_alert",
		ResourceID:   alert.ID,
		Details: map[string]interface{}{
			"status": string(alert.Status),
			"role":   string(p.Role),
		},
		IPAddress: models.StringPtr(httputil.NormalizeIP(ip)),
		CreatedAt: s.now().UTC(),
	}
	if s.signer != nil {
		entry.Signature = eventlog.SignAuditEntry(s.signer, entry)
	}
	if err := s.store.InsertAuditLog(wctx, entry); err != nil {
		log.ErrorContext(ctx, "failed to write alert audit entry", logging.Error(err))
	}

	if s.notifier != nil {
		s.notifier.AlertUpdated(ctx, alert, p.UserID)
	}
	return alert, nil
}

func (s *Service) sessions(ctx context.Context, req Request) ([]Session, error) {
	qctx, cancel := database.QueryContext(ctx)
	defer cancel()

	rows, err := s.store.ListSessions(qctx, models.SessionQuery{
		UserID:     strings.TrimSpace(req.UserID),
		ActiveOnly: req.ActiveOnly,
		Limit:      httputil.ClampLimit(req.Limit, defaultLimit, maxLimit),
	})
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	out := make([]Session, 0, len(rows))
	for _, r := range rows {
		out = append(out, Session{
			ID:             r.ID,
			UserID:         r.UserID,
			HasToken:       r.SessionToken != "",
			HasFingerprint: r.ClientFingerprint != "",
			IPAddress:      r.IPAddress,
			IsActive:       r.IsActive,
			SecurityLevel:  r.SecurityLevel,
			ExpiresAt:      r.ExpiresAt,
			CreatedAt:      r.CreatedAt,
			LastActivity:   r.LastActivity,
		})
	}
	return out, nil
}

func redactEvent(e *models.SecurityEvent) Event {
	keys := make([]string, 0, len(e.EventData))
	for k := range e.EventData {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return Event{
		ID:            e.ID,
		EventType:     e.EventType,
		Severity:      e.Severity,
		ActorID:       e.ActorID,
		HasSession:    e.SessionID != nil,
		IPAddress:     e.IPAddress,
		Source:        e.Source,
		RiskScore:     e.RiskScore,
		EventDataKeys: keys,
		CreatedAt:     e.CreatedAt,
	}
}

func outcome(err error) string {
	var verr *models.ValidationError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrUnknownAction), errors.As(err, &verr):
		return "invalid"
	case errors.Is(err, repository.ErrAlertNotFound):
		return "not_found"
	default:
		return "error"
	}
}
