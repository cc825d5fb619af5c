// Package responder executes automated containment for security incidents.
package responder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/telhawk-systems/guardrail/common/database"
	"github.com/telhawk-systems/guardrail/common/httputil"
	"github.com/telhawk-systems/guardrail/common/logging"
	"github.com/telhawk-systems/guardrail/internal/metrics"
	"github.com/telhawk-systems/guardrail/internal/models"
	"github.com/telhawk-systems/guardrail/internal/repository"
)

// EventCriticalNotification is logged for every critical incident.
const EventCriticalNotification = "critical_security_notification"

// Store is the persistence containment needs.
type Store interface {
	repository.ConfigStore
	repository.SessionStore
	repository.RoleStore
	repository.AlertStore
	repository.IncidentStore
}

type EventLogger interface {
	Log(ctx context.Context, in models.EventInput) (*models.LogResult, error)
}

// Notifier fans incident outcomes out to other systems.
type Notifier interface {
	AlertCreated(ctx context.Context, a *models.SecurityAlert)
	IncidentHandled(ctx context.Context, inc *models.SecurityIncident)
}

// Incident is a classified threat handed to the responder.
type Incident struct {
	Type      models.IncidentType
	Severity  models.Severity
	ActorID   string
	IPAddress string
	EventData map[string]interface{}
}

// Outcome reports what the responder did.
type Outcome struct {
	IncidentID   string                   `json:"incident_id"`
	Actions      []models.AutomatedAction `json:"automated_actions"`
	AlertCreated bool                     `json:"alert_created"`
	AlertID      string                   `json:"alert_id,omitempty"`
}

// Responder runs playbooks. Each step is isolated: a failing step is
// recorded and the remaining steps still run.
type Responder struct {
	store    Store
	events   EventLogger
	notifier Notifier
	logger   *logging.Logger
	now      func() time.Time
}

func New(store Store, events EventLogger, notifier Notifier, logger *logging.Logger) *Responder {
	if logger == nil {
		logger = logging.Default()
	}
	return &Responder{
		store:    store,
		events:   events,
		notifier: notifier,
		logger:   logger.Component("responder"),
		now:      time.Now,
	}
}

// ValidateIncident checks the caller-controlled fields of inc.
func ValidateIncident(inc Incident) error {
	verr := models.NewValidationError()
	if strings.TrimSpace(string(inc.Type)) == "" {
		verr.Add("type", "is required")
	}
	if inc.Severity == "" {
		verr.Add("severity", "is required")
	} else if !inc.Severity.Valid() {
		verr.Add("severity", "must be one of info, low, medium, high, critical")
	}
	if inc.IPAddress != "" && httputil.NormalizeIP(inc.IPAddress) == "" {
		verr.Add("ipAddress", "must be an IPv4 or IPv6 address")
	}
	return verr.OrNil()
}

// Respond executes the playbook for inc, creates a summary alert and
// persists the incident trail. Only validation errors are returned.
func (r *Responder) Respond(ctx context.Context, inc Incident) (*Outcome, error) {
	if err := ValidateIncident(inc); err != nil {
		return nil, err
	}
	inc.IPAddress = httputil.NormalizeIP(inc.IPAddress)
	if inc.EventData == nil {
		inc.EventData = map[string]interface{}{}
	}

	log := r.logger.With(logging.Incident(string(inc.Type)), logging.Severity(inc.Severity.String()))
	metrics.IncidentsTotal.WithLabelValues(string(inc.Type)).Inc()

	actions := r.runPlaybook(ctx, &inc, log)

	record := &models.SecurityIncident{
		ID:        models.NewID(),
		Type:      inc.Type,
		Severity:  inc.Severity,
		ActorID:   models.StringPtr(inc.ActorID),
		IPAddress: models.StringPtr(inc.IPAddress),
		EventData: inc.EventData,
		Actions:   actions,
		CreatedAt: r.now().UTC(),
	}
	out := &Outcome{IncidentID: record.ID, Actions: actions}

	if alert, err := r.createAlert(ctx, &inc, actions); err != nil {
		log.ErrorContext(ctx, "failed to create incident alert", logging.Error(err))
	} else {
		out.AlertCreated = true
		out.AlertID = alert.ID
		record.AlertID = &alert.ID
		if r.notifier != nil {
			r.notifier.AlertCreated(ctx, alert)
		}
	}

	if inc.Severity == models.SeverityCritical {
		r.notifyCritical(ctx, &inc, actions, log)
	}

	wctx, cancel := database.DetachedWriteContext(ctx)
	if err := r.store.CreateIncident(wctx, record); err != nil {
		log.ErrorContext(ctx, "failed to persist incident", logging.Error(err))
	}
	cancel()

	if r.notifier != nil {
		r.notifier.IncidentHandled(ctx, record)
	}

	log.InfoContext(ctx, "incident handled",
		"incident_id", record.ID,
		"actions_executed", record.ExecutedCount(),
		"actions_total", len(actions),
	)
	return out, nil
}

func (r *Responder) runPlaybook(ctx context.Context, inc *Incident, log *logging.Logger) []models.AutomatedAction {
	var actions []models.AutomatedAction

	for _, step := range playbooks[inc.Type] {
		if step.applies != nil && !step.applies(inc) {
			continue
		}
		actions = append(actions, r.execute(ctx, step, inc, log))
	}

	if len(actions) == 0 {
		actions = append(actions, models.AutomatedAction{
			Type:        ActionLogOnly,
			Description: fmt.Sprintf("Incident %s recorded; no containment action applied", inc.Type),
			Executed:    true,
			Timestamp:   r.now().UTC(),
		})
		metrics.ResponseActions.WithLabelValues(ActionLogOnly, "executed").Inc()
	}
	return actions
}

func (r *Responder) execute(ctx context.Context, step action, inc *Incident, log *logging.Logger) (result models.AutomatedAction) {
	result = models.AutomatedAction{Type: step.name, Timestamp: r.now().UTC()}

	defer func() {
		if p := recover(); p != nil {
			result.Executed = false
			result.Description = fmt.Sprintf("%s failed", step.name)
			result.Error = fmt.Sprintf("panic: %v", p)
			metrics.ResponseActions.WithLabelValues(step.name, "failed").Inc()
			log.ErrorContext(ctx, "containment action panicked", logging.Action(step.name), "panic", p)
		}
	}()

	wctx, cancel := database.WriteContext(ctx)
	defer cancel()

	desc, err := step.run(wctx, r, inc)
	if err != nil {
		result.Description = fmt.Sprintf("%s failed", step.name)
		result.Error = err.Error()
		metrics.ResponseActions.WithLabelValues(step.name, "failed").Inc()
		log.ErrorContext(ctx, "containment action failed", logging.Action(step.name), logging.Error(err))
		return result
	}

	result.Executed = true
	result.Description = desc
	metrics.ResponseActions.WithLabelValues(step.name, "executed").Inc()
	log.InfoContext(ctx, "containment action executed", logging.Action(step.name))
	return result
}

func (r *Responder) createAlert(ctx context.Context, inc *Incident, actions []models.AutomatedAction) (*models.SecurityAlert, error) {
	var lines []string
	for _, a := range actions {
		status := "executed"
		if !a.Executed {
			status = "failed"
		}
		lines = append(lines, fmt.Sprintf("%s: %s (%s)", a.Type, a.Description, status))
	}

	now := r.now().UTC()
	alert := &models.SecurityAlert{
		ID:          models.NewID(),
		AlertType:   "automated_response_" + string(inc.Type),
		Priority:    inc.Severity,
		Status:      models.AlertStatusOpen,
		Title:       fmt.Sprintf("Automated response: %s", inc.Type),
		Description: strings.Join(lines, "\n"),
		Metadata: map[string]interface{}{
			"incident_type": string(inc.Type),
			"actor_id":      inc.ActorID,
			"ip_address":    inc.IPAddress,
			"actions":       actions,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	wctx, cancel := database.WriteContext(ctx)
	defer cancel()
	if err := r.store.CreateAlert(wctx, alert); err != nil {
		return nil, err
	}
	return alert, nil
}

func (r *Responder) notifyCritical(ctx context.Context, inc *Incident, actions []models.AutomatedAction, log *logging.Logger) {
	if r.events == nil {
		return
	}
	executed := 0
	for _, a := range actions {
		if a.Executed {
			executed++
		}
	}
	_, err := r.events.Log(ctx, models.EventInput{
		EventType: EventCriticalNotification,
		Severity:  models.SeverityCritical,
		EventData: map[string]interface{}{
			"incident_type":    string(inc.Type),
			"actions_executed": executed,
			"actions_total":    len(actions),
		},
		ActorID:   inc.ActorID,
		Source:    updatedBy,
		IPAddress: inc.IPAddress,
	})
	if err != nil {
		log.WarnContext(ctx, "failed to log critical notification", logging.Error(err))
	}
}
