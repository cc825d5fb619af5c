// Package monitor is the enhanced monitoring entry point: it records an
// event, runs threat detection on it and acts on every triggered rule.
package monitor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/telhawk-systems/guardrail/common/database"
	"github.com/telhawk-systems/guardrail/common/logging"
	"github.com/telhawk-systems/guardrail/internal/detector"
	"github.com/telhawk-systems/guardrail/internal/metrics"
	"github.com/telhawk-systems/guardrail/internal/models"
	"github.com/telhawk-systems/guardrail/internal/repository"
	"github.com/telhawk-systems/guardrail/internal/responder"
)

// EventThreatDetected is logged once per triggered rule.
const EventThreatDetected = "threat_detected"

const source = "threat_detector"

type EventLogger interface {
	Log(ctx context.Context, in models.EventInput) (*models.LogResult, error)
}

type Detector interface {
	Evaluate(ctx context.Context, s detector.Subject) ([]detector.Triggered, error)
}

type Responder interface {
	Respond(ctx context.Context, inc responder.Incident) (*responder.Outcome, error)
}

type AlertNotifier interface {
	AlertCreated(ctx context.Context, a *models.SecurityAlert)
}

// Result summarises one Process call.
type Result struct {
	Success                  bool     `json:"success"`
	ThreatsDetected          int      `json:"threatsDetected"`
	AutomatedActionsExecuted int      `json:"automatedActionsExecuted"`
	EventLogged              bool     `json:"eventLogged"`
	Rules                    []string `json:"rules,omitempty"`
}

type Service struct {
	events    EventLogger
	detector  Detector
	responder Responder
	alerts    repository.AlertStore
	notifier  AlertNotifier
	logger    *logging.Logger
	now       func() time.Time
}

func New(events EventLogger, det Detector, resp Responder, alerts repository.AlertStore, notifier AlertNotifier, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		events:    events,
		detector:  det,
		responder: resp,
		alerts:    alerts,
		notifier:  notifier,
		logger:    logger.Component("monitor"),
		now:       time.Now,
	}
}

// Validate checks the fields the monitoring endpoint requires.
func Validate(in models.EventInput) error {
	verr := models.NewValidationError()
	if strings.TrimSpace(in.EventType) == "" {
		verr.Add("eventType", "is required")
	}
	if in.Severity == "" {
		verr.Add("severity", "is required")
	} else if !in.Severity.Valid() {
		verr.Add("severity", "must be one of info, low, medium, high, critical")
	}
	if strings.TrimSpace(in.Source) == "" {
		verr.Add("source", "is required")
	}
	return verr.OrNil()
}

// Process logs in, evaluates the rule table and handles every triggered
// rule. Only validation errors are returned; a failing rule is logged and
// the remaining rules still run.
func (s *Service) Process(ctx context.Context, in models.EventInput) (*Result, error) {
	if err := Validate(in); err != nil {
		return nil, err
	}
	log := s.logger.With(logging.EventType(in.EventType), logging.IP(in.IPAddress))

	res := &Result{Success: true}
	logged, err := s.events.Log(ctx, in)
	if err != nil {
		return nil, err
	}
	res.EventLogged = logged.Stored() || logged.Aggregated

	triggered, err := s.detector.Evaluate(ctx, detector.Subject{
		EventType: in.EventType,
		IPAddress: in.IPAddress,
		ActorID:   in.ActorID,
	})
	if err != nil {
		log.ErrorContext(ctx, "threat detection failed", logging.Error(err))
		return res, nil
	}

	for _, t := range triggered {
		res.ThreatsDetected++
		res.Rules = append(res.Rules, t.Rule.Name)
		res.AutomatedActionsExecuted += s.handle(ctx, in, t, log)
	}
	return res, nil
}

// handle acts on one triggered rule and returns how many automated actions
// executed.
func (s *Service) handle(ctx context.Context, in models.EventInput, t detector.Triggered, log *logging.Logger) (executed int) {
	rule := t.Rule
	log = log.With(logging.Rule(rule.Name), logging.Action(string(rule.Action)))

	defer func() {
		if p := recover(); p != nil {
			log.ErrorContext(ctx, "rule handling panicked", "panic", p)
			executed = 0
		}
	}()

	metrics.RulesTriggered.WithLabelValues(rule.Name, string(rule.Action)).Inc()
	log.WarnContext(ctx, "threat rule triggered", "count", t.Count, "threshold", rule.Threshold)

	if _, err := s.events.Log(ctx, models.EventInput{
		EventType: EventThreatDetected,
		Severity:  rule.Severity,
		EventData: map[string]interface{}{
			"rule":               rule.Name,
			"action":             string(rule.Action),
			"count":              t.Count,
			"threshold":          rule.Threshold,
			"time_window_min":    int(rule.TimeWindow / time.Minute),
			"trigger_event_type": in.EventType,
		},
		ActorID:   in.ActorID,
		SessionID: in.SessionID,
		Source:    source,
		IPAddress: in.IPAddress,
		UserAgent: in.UserAgent,
	}); err != nil {
		log.WarnContext(ctx, "failed to log detection", logging.Error(err))
	}

	switch rule.Action {
	case detector.ActionAlert:
		if err := s.raiseAlert(ctx, in, t); err != nil {
			log.ErrorContext(ctx, "failed to create threat alert", logging.Error(err))
			return 0
		}
		return 1

	case detector.ActionBlock:
		incident := rule.Incident
		if incident == "" {
			incident = models.IncidentSuspiciousActivity
		}
		out, err := s.responder.Respond(ctx, responder.Incident{
			Type:      incident,
			Severity:  rule.Severity,
			ActorID:   in.ActorID,
			IPAddress: in.IPAddress,
			EventData: map[string]interface{}{
				"rule":               rule.Name,
				"count":              t.Count,
				"trigger_event_type": in.EventType,
			},
		})
		if err != nil {
			log.ErrorContext(ctx, "automated response failed", logging.Error(err))
			return 0
		}
		for _, a := range out.Actions {
			if a.Executed {
				executed++
			}
		}
		return executed
	}
	return 0
}

func (s *Service) raiseAlert(ctx context.Context, in models.EventInput, t detector.Triggered) error {
	now := s.now().UTC()
	alert := &models.SecurityAlert{
		ID:        models.NewID(),
		AlertType: "threat_detection_" + t.Rule.Name,
		Priority:  t.Rule.Severity,
		Status:    models.AlertStatusOpen,
		Title:     fmt.Sprintf("Threat detected: %s", t.Rule.Name),
		Description: fmt.Sprintf("%d %s events within %s (threshold %d)",
			t.Count, in.EventType, t.Rule.TimeWindow, t.Rule.Threshold),
		Metadata: map[string]interface{}{
			"rule":       t.Rule.Name,
			"count":      t.Count,
			"actor_id":   in.ActorID,
			"ip_address": in.IPAddress,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	wctx, cancel := database.WriteContext(ctx)
	defer cancel()
	if err := s.alerts.CreateAlert(wctx, alert); err != nil {
		return err
	}
	if s.notifier != nil {
		s.notifier.AlertCreated(ctx, alert)
	}
	return nil
}
