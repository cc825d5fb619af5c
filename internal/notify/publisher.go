package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/telhawk-systems/guardrail/common/logging"
	"github.com/telhawk-systems/guardrail/common/messaging"
	"github.com/telhawk-systems/guardrail/internal/metrics"
	"github.com/telhawk-systems/guardrail/internal/models"
)

// Publisher turns domain objects into bus messages. A Publisher without a
// broker drops everything, so callers never need a nil check.
type Publisher struct {
	bus    messaging.Publisher
	logger *logging.Logger
}

func NewPublisher(bus messaging.Publisher, logger *logging.Logger) *Publisher {
	if logger == nil {
		logger = logging.Default()
	}
	return &Publisher{bus: bus, logger: logger.Component("notify")}
}

// AlertCreated publishes a new alert.
func (p *Publisher) AlertCreated(ctx context.Context, a *models.SecurityAlert) {
	p.publish(ctx, messaging.SubjectAlertsCreated, &AlertCreatedEvent{
		AlertID:     a.ID,
		AlertType:   a.AlertType,
		Title:       a.Title,
		Description: a.Description,
		Priority:    a.Priority.String(),
		CreatedAt:   a.CreatedAt,
		Metadata:    a.Metadata,
	})
}

// AlertUpdated publishes an alert status change made by updatedBy.
func (p *Publisher) AlertUpdated(ctx context.Context, a *models.SecurityAlert, updatedBy string) {
	p.publish(ctx, messaging.SubjectAlertsUpdated, &AlertUpdatedEvent{
		AlertID:   a.ID,
		Status:    string(a.Status),
		UpdatedAt: a.UpdatedAt,
		UpdatedBy: updatedBy,
	})
}

// IncidentHandled publishes the outcome of an automated response. Critical
// incidents are also published on the critical subject.
func (p *Publisher) IncidentHandled(ctx context.Context, inc *models.SecurityIncident) {
	executed := inc.ExecutedCount()
	ev := &IncidentEvent{
		IncidentID:      inc.ID,
		Type:            string(inc.Type),
		Severity:        inc.Severity.String(),
		ActionsExecuted: executed,
		ActionsFailed:   len(inc.Actions) - executed,
		HandledAt:       inc.CreatedAt,
	}
	if inc.ActorID != nil {
		ev.ActorID = *inc.ActorID
	}
	if inc.IPAddress != nil {
		ev.IPAddress = *inc.IPAddress
	}
	if inc.AlertID != nil {
		ev.AlertID = *inc.AlertID
	}

	p.publish(ctx, messaging.IncidentSubject(string(inc.Type)), ev)
	if inc.Severity == models.SeverityCritical {
		p.publish(ctx, messaging.SubjectIncidentsCritical, ev)
	}
}

// publish marshals data to JSON and publishes it. Failures are logged and
// counted; notification never blocks a security decision.
func (p *Publisher) publish(ctx context.Context, subject string, data interface{}) {
	if p == nil || p.bus == nil {
		return
	}
	if err := p.send(ctx, subject, data); err != nil {
		metrics.NotificationsPublished.WithLabelValues(subject, "error").Inc()
		p.logger.WarnContext(ctx, "failed to publish notification",
			"subject", subject,
			logging.Error(err),
		)
		return
	}
	metrics.NotificationsPublished.WithLabelValues(subject, "ok").Inc()
}

func (p *Publisher) send(ctx context.Context, subject string, data interface{}) error {
	bytes, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return p.bus.Publish(ctx, subject, bytes)
}
