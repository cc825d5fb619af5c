// Package eventlog validates, filters, aggregates and persists security
// events.
package eventlog

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/telhawk-systems/guardrail/common/audit"
	"github.com/telhawk-systems/guardrail/common/database"
	"github.com/telhawk-systems/guardrail/common/logging"
	"github.com/telhawk-systems/guardrail/internal/metrics"
	"github.com/telhawk-systems/guardrail/internal/models"
	"github.com/telhawk-systems/guardrail/internal/ratelimit"
	"github.com/telhawk-systems/guardrail/internal/repository"
)

// AuditActionCriticalEvent is the audit action written for critical events.
const AuditActionCriticalEvent = "critical_security_event"

// StoreWarning is returned to callers when the event could not be persisted.
const StoreWarning = "Event accepted but could not be persisted"

// Config tunes filtering and aggregation.
type Config struct {
	MaxPayloadBytes      int
	ClientLogPerMinute   int64
	LowPriorityPerMinute int64
	AggregationThreshold int
	AggregationWindow    time.Duration
	CriticalAudit        bool
}

func DefaultConfig() Config {
	return Config{
		MaxPayloadBytes:      10240,
		ClientLogPerMinute:   2,
		LowPriorityPerMinute: 60,
		AggregationThreshold: 10,
		AggregationWindow:    5 * time.Minute,
		CriticalAudit:        true,
	}
}

// Mirror receives a copy of every stored event.
type Mirror interface {
	IndexEvent(ctx context.Context, e *models.SecurityEvent) error
}

// Store is the persistence the logger needs.
type Store interface {
	repository.EventStore
	repository.AuditStore
}

// Logger is the single write path for security events.
type Logger struct {
	store  Store
	spam   ratelimit.Store
	signer *audit.Signer
	mirror Mirror
	cfg    Config
	logger *logging.Logger
	now    func() time.Time
}

// Option configures optional collaborators.
type Option func(*Logger)

// WithSpamStore enables per-IP spam budgets on low-priority events.
func WithSpamStore(s ratelimit.Store) Option {
	return func(l *Logger) { l.spam = s }
}

// WithSigner enables signed audit rows for critical events.
func WithSigner(s *audit.Signer) Option {
	return func(l *Logger) { l.signer = s }
}

// WithMirror mirrors stored events to a search index.
func WithMirror(m Mirror) Option {
	return func(l *Logger) { l.mirror = m }
}

func WithClock(now func() time.Time) Option {
	return func(l *Logger) { l.now = now }
}

func New(store Store, cfg Config, logger *logging.Logger, opts ...Option) *Logger {
	if logger == nil {
		logger = logging.Default()
	}
	def := DefaultConfig()
	if cfg.MaxPayloadBytes <= 0 {
		cfg.MaxPayloadBytes = def.MaxPayloadBytes
	}
	if cfg.ClientLogPerMinute <= 0 {
		cfg.ClientLogPerMinute = def.ClientLogPerMinute
	}
	if cfg.LowPriorityPerMinute <= 0 {
		cfg.LowPriorityPerMinute = def.LowPriorityPerMinute
	}
	if cfg.AggregationThreshold <= 0 {
		cfg.AggregationThreshold = def.AggregationThreshold
	}
	if cfg.AggregationWindow <= 0 {
		cfg.AggregationWindow = def.AggregationWindow
	}

	l := &Logger{
		store:  store,
		cfg:    cfg,
		logger: logger.Component("eventlog"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Validate checks the caller-controlled fields of in.
func Validate(in models.EventInput) error {
	verr := models.NewValidationError()
	if strings.TrimSpace(in.EventType) == "" {
		verr.Add("event_type", "is required")
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

// Log records in. The only error returned is a *models.ValidationError;
// every other failure degrades to a successful result with a warning.
func (l *Logger) Log(ctx context.Context, in models.EventInput) (*models.LogResult, error) {
	if err := Validate(in); err != nil {
		metrics.EventsTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}

	eventType := Truncate(strings.TrimSpace(in.EventType), MaxEventTypeLen)
	ip := normalizeIP(in.IPAddress)

	switch l.checkSpam(ctx, eventType, in.Severity, ip) {
	case spamRateLimited:
		metrics.EventsTotal.WithLabelValues("rate_limited").Inc()
		return &models.LogResult{Success: true, RateLimited: true}, nil
	case spamFiltered:
		metrics.EventsTotal.WithLabelValues("filtered").Inc()
		return &models.LogResult{Success: true, Filtered: true}, nil
	}

	now := l.now().UTC()

	if count, ok := l.aggregate(ctx, eventType, in.Severity, ip, now); ok {
		metrics.EventsTotal.WithLabelValues("aggregated").Inc()
		return &models.LogResult{Success: true, Aggregated: true, AggregatedCount: count}, nil
	}

	event := &models.SecurityEvent{
		ID:        models.NewID(),
		EventType: eventType,
		Severity:  in.Severity,
		ActorID:   models.StringPtr(in.ActorID),
		SessionID: models.StringPtr(in.SessionID),
		IPAddress: models.StringPtr(ip),
		UserAgent: Truncate(in.UserAgent, MaxUserAgentLen),
		Source:    Truncate(strings.TrimSpace(in.Source), MaxSourceLen),
		EventData: SanitizePayload(in.EventData, l.cfg.MaxPayloadBytes),
		RiskScore: RiskScore(eventType, in.Severity),
		CreatedAt: now,
	}

	start := time.Now()
	wctx, cancel := database.WriteContext(ctx)
	err := l.store.InsertEvent(wctx, event)
	cancel()
	metrics.EventStoreDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.EventsTotal.WithLabelValues("store_error").Inc()
		l.logger.ErrorContext(ctx, "failed to store security event",
			logging.EventType(eventType),
			logging.Severity(in.Severity.String()),
			logging.Error(err),
		)
		return &models.LogResult{Success: true, RiskScore: event.RiskScore, Warning: StoreWarning}, nil
	}
	metrics.EventsTotal.WithLabelValues("stored").Inc()

	if in.Severity == models.SeverityCritical && l.cfg.CriticalAudit {
		l.writeAudit(ctx, event)
	}
	l.mirrorEvent(ctx, event)

	return &models.LogResult{Success: true, EventID: event.ID, RiskScore: event.RiskScore}, nil
}

// aggregate folds a repeated low-priority info event into the latest stored
// row once the window already holds AggregationThreshold matches. The count
// and the increment are separate statements, so concurrent callers may both
// insert near the threshold.
func (l *Logger) aggregate(ctx context.Context, eventType string, severity models.Severity, ip string, now time.Time) (int, bool) {
	if severity != models.SeverityInfo || !IsLowPriority(eventType) || ip == "" {
		return 0, false
	}

	q := models.EventQuery{
		EventType: eventType,
		IPAddress: ip,
		Since:     now.Add(-l.cfg.AggregationWindow),
	}

	qctx, cancel := database.QueryContext(ctx)
	defer cancel()

	seen, err := l.store.CountEvents(qctx, q)
	if err != nil {
		l.logger.WarnContext(ctx, "aggregation count failed", logging.EventType(eventType), logging.Error(err))
		return 0, false
	}
	if seen < l.cfg.AggregationThreshold {
		return 0, false
	}

	latest, err := l.store.LatestEvent(qctx, q)
	if err != nil {
		if !errors.Is(err, repository.ErrEventNotFound) {
			l.logger.WarnContext(ctx, "aggregation lookup failed", logging.EventType(eventType), logging.Error(err))
		}
		return 0, false
	}

	count, err := l.store.IncrementAggregate(qctx, latest.ID, seen, now)
	if err != nil {
		l.logger.WarnContext(ctx, "aggregation update failed", logging.EventID(latest.ID), logging.Error(err))
		return 0, false
	}
	return count, true
}

func (l *Logger) writeAudit(ctx context.Context, e *models.SecurityEvent) {
	details := map[string]interface{}{
		"event_type": e.EventType,
		"severity":   e.Severity,
		"risk_score": e.RiskScore,
		"source":     e.Source,
	}
	entry := &models.AuditLogEntry{
		ID:           models.NewID(),
		ActorID:      e.ActorID,
		Action:       AuditActionCriticalEvent,
		ResourceType: "security_event",
		ResourceID:   e.ID,
		Details:      details,
		IPAddress:    e.IPAddress,
		CreatedAt:    e.CreatedAt,
	}
	if l.signer != nil {
		entry.Signature = SignAuditEntry(l.signer, entry)
	}

	wctx, cancel := database.DetachedWriteContext(ctx)
	defer cancel()
	if err := l.store.InsertAuditLog(wctx, entry); err != nil {
		l.logger.ErrorContext(ctx, "failed to write audit log for critical event",
			logging.EventID(e.ID),
			logging.Error(err),
		)
	}
}

func (l *Logger) mirrorEvent(ctx context.Context, e *models.SecurityEvent) {
	if l.mirror == nil {
		return
	}
	if err := l.mirror.IndexEvent(ctx, e); err != nil {
		metrics.MirrorErrors.Inc()
		l.logger.WarnContext(ctx, "failed to mirror security event", logging.EventID(e.ID), logging.Error(err))
	}
}

// SignAuditEntry signs the immutable fields of entry.
func SignAuditEntry(s *audit.Signer, entry *models.AuditLogEntry) string {
	details, _ := json.Marshal(entry.Details)
	actor := ""
	if entry.ActorID != nil {
		actor = *entry.ActorID
	}
	ip := ""
	if entry.IPAddress != nil {
		ip = *entry.IPAddress
	}
	return s.Sign(audit.Record{
		ID:        entry.ID,
		ActorID:   actor,
		Action:    entry.Action,
		Resource:  entry.ResourceType + ":" + entry.ResourceID,
		SourceIP:  ip,
		Timestamp: entry.CreatedAt,
		Details:   details,
	})
}
