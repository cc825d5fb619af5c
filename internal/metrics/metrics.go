package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Event logging metrics
	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guardrail_events_total",
			Help: "Security events received, by outcome (stored, filtered, rate_limited, aggregated, store_error)",
		},
		[]string{"outcome"},
	)

	EventStoreDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "guardrail_event_store_duration_seconds",
			Help:    "Duration of event store writes in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	MirrorErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "guardrail_event_mirror_errors_total",
			Help: "Total number of failed search index mirrors",
		},
	)

	// Rate limiting metrics
	RateLimitDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guardrail_rate_limit_decisions_total",
			Help: "Rate limit decisions, by action and result (allowed, denied, error)",
		},
		[]string{"action", "result"},
	)

	// Detection metrics
	RulesTriggered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guardrail_rules_triggered_total",
			Help: "Threat detection rules triggered, by rule and action",
		},
		[]string{"rule", "action"},
	)

	DetectionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "guardrail_detection_duration_seconds",
			Help:    "Duration of threat rule evaluation in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Response metrics
	IncidentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guardrail_incidents_total",
			Help: "Incidents handled by the automated responder, by type",
		},
		[]string{"type"},
	)

	ResponseActions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guardrail_response_actions_total",
			Help: "Containment actions, by action and result (executed, failed)",
		},
		[]string{"action", "result"},
	)

	// Verification metrics
	TrustScores = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "guardrail_zero_trust_score",
			Help:    "Distribution of zero-trust verification scores",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
	)

	VerificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guardrail_zero_trust_verifications_total",
			Help: "Zero-trust verifications, by result (valid, invalid, error)",
		},
		[]string{"result"},
	)

	// Admin access metrics
	AdminRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guardrail_admin_requests_total",
			Help: "Admin security-data requests, by action and status code",
		},
		[]string{"action", "status"},
	)

	// HTTP metrics
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "guardrail_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "status"},
	)

	// Notification metrics
	NotificationsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guardrail_notifications_published_total",
			Help: "Messages published to the message bus, by subject and result",
		},
		[]string{"subject", "result"},
	)
)
