// Package zerotrust scores a session on every sensitive request and decides
// whether it is still trusted.
package zerotrust

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/telhawk-systems/guardrail/common/database"
	"github.com/telhawk-systems/guardrail/common/httputil"
	"github.com/telhawk-systems/guardrail/common/logging"
	"github.com/telhawk-systems/guardrail/internal/metrics"
	"github.com/telhawk-systems/guardrail/internal/models"
	"github.com/telhawk-systems/guardrail/internal/repository"
)

// EventVerification is logged once per verification.
const EventVerification = "zero_trust_verification"

// Score weights.
const (
	StartScore = 100
	MinValid   = 50
	MaxAnomaly = 3

	AuthMismatchPenalty = 30
	NewDevicePenalty    = 25
	MultiIPPenalty      = 15
	IPChurnPenalty      = 10
	BotPenalty          = 10
	ExcessivePenalty    = 8
	LongSessionPenalty  = 5
	CriticalPenalty     = 10
	HighPenalty         = 5
	OffHoursPenalty     = 5
)

// Thresholds.
const (
	KnownDevices         = 5
	MultiIPLimit         = 3
	IPChurnRatio         = 0.5
	BotKeystrokes        = 100
	ExcessivePageViews   = 100
	ExcessiveClicks      = 1000
	LongSession          = 8 * time.Hour
	OffHoursStart        = 22
	OffHoursEnd          = 6
	OffHoursHabitualRate = 0.10

	ipLookback       = 24 * time.Hour
	incidentLookback = 7 * 24 * time.Hour
	habitLookback    = 30 * 24 * time.Hour
)

// Anomaly and risk descriptions returned to callers.
const (
	AnomalySystemError  = "System error during verification"
	AnomalyMissingUser  = "Missing user identity"
	AnomalyAuthMismatch = "Session token does not match user"
	AnomalyNewDevice    = "Unrecognized device fingerprint"
	AnomalyIPChurn      = "Rapid IP address changes"
	AnomalyBot          = "Bot-like input pattern"

	RiskExcessive   = "Excessive activity volume"
	RiskLongSession = "Session duration exceeds 8 hours"
	RiskOffHours    = "Access outside usual hours"
)

// TokenResolver maps a session token to the user it was issued to. Any
// error means the token does not resolve.
type TokenResolver interface {
	ResolveUser(ctx context.Context, token string) (string, error)
}

type EventLogger interface {
	Log(ctx context.Context, in models.EventInput) (*models.LogResult, error)
}

// Store is the history the verifier consults.
type Store interface {
	repository.SessionStore
	repository.EventStore
}

// BehavioralMetrics are client-reported counters for the current session.
type BehavioralMetrics struct {
	MouseMovements  int   `json:"mouseMovements"`
	Keystrokes      int   `json:"keystrokes"`
	PageViews       int   `json:"pageViews"`
	ClickEvents     int   `json:"clickEvents"`
	SessionDuration int64 `json:"sessionDuration"`
}

// Request is a verification call. IPAddress is the address observed by
// the server, not one claimed by the client.
type Request struct {
	UserID            string            `json:"userId"`
	SessionToken      string            `json:"sessionToken"`
	DeviceFingerprint string            `json:"deviceFingerprint"`
	Timestamp         int64             `json:"timestamp,omitempty"`
	IPAddress         string            `json:"ipAddress,omitempty"`
	BehavioralMetrics BehavioralMetrics `json:"behavioralMetrics"`
}

// Result is the verification outcome. Slices are never nil.
type Result struct {
	TrustScore      int      `json:"trustScore"`
	SessionValid    bool     `json:"sessionValid"`
	Anomalies       []string `json:"anomalies"`
	RiskFactors     []string `json:"riskFactors"`
	Recommendations []string `json:"recommendations"`
}

// FailClosed is the response for any verification that could not complete.
func FailClosed(anomaly string) *Result {
	return &Result{
		TrustScore:      0,
		SessionValid:    false,
		Anomalies:       []string{anomaly},
		RiskFactors:     []string{},
		Recommendations: []string{"Require re-authentication"},
	}
}

type Verifier struct {
	store    Store
	tokens   TokenResolver
	events   EventLogger
	location *time.Location
	logger   *logging.Logger
	now      func() time.Time
}

type Option func(*Verifier)

// WithLocation sets the timezone off-hours are judged in.
func WithLocation(loc *time.Location) Option {
	return func(v *Verifier) {
		if loc != nil {
			v.location = loc
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(v *Verifier) { v.now = now }
}

func New(store Store, tokens TokenResolver, events EventLogger, logger *logging.Logger, opts ...Option) *Verifier {
	if logger == nil {
		logger = logging.Default()
	}
	v := &Verifier{
		store:    store,
		tokens:   tokens,
		events:   events,
		location: time.UTC,
		logger:   logger.Component("zerotrust"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

var errNoToken = errors.New("no session token")

// signals is the history gathered for one verification.
type signals struct {
	tokenUser    string
	tokenErr     error
	fingerprints []string
	ipEvents     []*models.SecurityEvent
	critical     int
	high         int
	hours        [24]int
}

// Verify scores req. It never returns an error: anything that prevents a
// complete evaluation yields FailClosed.
func (v *Verifier) Verify(ctx context.Context, req Request) (res *Result) {
	req.IPAddress = httputil.NormalizeIP(req.IPAddress)
	log := v.logger.With(logging.UserID(req.UserID), logging.IP(req.IPAddress))

	defer func() {
		if p := recover(); p != nil {
			log.ErrorContext(ctx, "verification panicked", "panic", p)
			res = FailClosed(AnomalySystemError)
		}
		metrics.VerificationsTotal.WithLabelValues(verdict(res)).Inc()
		metrics.TrustScores.Observe(float64(res.TrustScore))
		v.record(ctx, req, res, log)
	}()

	if req.UserID == "" {
		return FailClosed(AnomalyMissingUser)
	}

	sig, err := v.gather(ctx, req)
	if err != nil {
		log.ErrorContext(ctx, "verification lookup failed", logging.Error(err))
		return FailClosed(AnomalySystemError)
	}
	return v.score(req, sig)
}

func (v *Verifier) gather(ctx context.Context, req Request) (*signals, error) {
	now := v.now()
	sig := &signals{}

	qctx, cancel := database.QueryContext(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(qctx)

	if v.tokens == nil || req.SessionToken == "" {
		sig.tokenErr = errNoToken
	} else {
		sig.tokenUser, sig.tokenErr = v.tokens.ResolveUser(qctx, req.SessionToken)
	}

	g.Go(recovered(func() error {
		sessions, err := v.store.ListSessions(gctx, models.SessionQuery{
			UserID:     req.UserID,
			ActiveOnly: true,
			Limit:      KnownDevices,
		})
		if err != nil {
			return fmt.Errorf("list sessions: %w", err)
		}
		for _, s := range sessions {
			sig.fingerprints = append(sig.fingerprints, s.ClientFingerprint)
		}
		return nil
	}))
	g.Go(recovered(func() error {
		events, err := v.store.ListEvents(gctx, models.EventQuery{
			ActorID: req.UserID,
			Since:   now.Add(-ipLookback),
		})
		if err != nil {
			return fmt.Errorf("list recent events: %w", err)
		}
		sig.ipEvents = events
		return nil
	}))
	g.Go(recovered(func() error {
		events, err := v.store.ListEvents(gctx, models.EventQuery{
			ActorID:    req.UserID,
			Severities: []models.Severity{models.SeverityCritical, models.SeverityHigh},
			Since:      now.Add(-incidentLookback),
		})
		if err != nil {
			return fmt.Errorf("list severe events: %w", err)
		}
		// Verification results are excluded so a low score does not
		// lower the next one.
		for _, e := range events {
			if e.EventType == EventVerification {
				continue
			}
			if e.Severity == models.SeverityCritical {
				sig.critical++
			} else {
				sig.high++
			}
		}
		return nil
	}))
	g.Go(recovered(func() error {
		hours, err := v.store.CountEventsByHour(gctx, models.EventQuery{
			ActorID: req.UserID,
			Since:   now.Add(-habitLookback),
		}, v.location)
		if err != nil {
			return fmt.Errorf("count activity by hour: %w", err)
		}
		sig.hours = hours
		return nil
	}))

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sig, nil
}

// recovered converts a panic in fn into an error.
func recovered(fn func() error) func() error {
	return func() (err error) {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("panic: %v", p)
			}
		}()
		return fn()
	}
}

func (v *Verifier) score(req Request, sig *signals) *Result {
	res := &Result{
		Anomalies:       []string{},
		RiskFactors:     []string{},
		Recommendations: []string{},
	}
	score := StartScore

	authMismatch := sig.tokenErr != nil || sig.tokenUser != req.UserID
	if authMismatch {
		score -= AuthMismatchPenalty
		res.Anomalies = append(res.Anomalies, AnomalyAuthMismatch)
	}

	newDevice := len(sig.fingerprints) > 0 && !slices.Contains(sig.fingerprints, req.DeviceFingerprint)
	if newDevice {
		score -= NewDevicePenalty
		res.Anomalies = append(res.Anomalies, AnomalyNewDevice)
	}

	ips, changes := ipActivity(sig.ipEvents)
	multiIP := ips > MultiIPLimit
	if multiIP {
		score -= MultiIPPenalty
		res.Anomalies = append(res.Anomalies, fmt.Sprintf("Multiple IP addresses in 24 hours (%d)", ips))
		if float64(changes)/float64(len(sig.ipEvents)) > IPChurnRatio {
			score -= IPChurnPenalty
			res.Anomalies = append(res.Anomalies, AnomalyIPChurn)
		}
	}

	m := req.BehavioralMetrics
	bot := m.MouseMovements == 0 && m.Keystrokes > BotKeystrokes
	if bot {
		score -= BotPenalty
		res.Anomalies = append(res.Anomalies, AnomalyBot)
	}

	if m.PageViews > ExcessivePageViews || m.ClickEvents > ExcessiveClicks {
		score -= ExcessivePenalty
		res.RiskFactors = append(res.RiskFactors, RiskExcessive)
	}

	if time.Duration(m.SessionDuration)*time.Millisecond > LongSession {
		score -= LongSessionPenalty
		res.RiskFactors = append(res.RiskFactors, RiskLongSession)
	}

	if sig.critical > 0 {
		score -= CriticalPenalty * sig.critical
		res.RiskFactors = append(res.RiskFactors, fmt.Sprintf("%d critical security events in 7 days", sig.critical))
	}
	if sig.high > 0 {
		score -= HighPenalty * sig.high
		res.RiskFactors = append(res.RiskFactors, fmt.Sprintf("%d high severity events in 7 days", sig.high))
	}

	offHours := v.offHours(v.now()) && offHoursShare(sig.hours) < OffHoursHabitualRate
	if offHours {
		score -= OffHoursPenalty
		res.RiskFactors = append(res.RiskFactors, RiskOffHours)
	}

	if score < 0 {
		score = 0
	}
	res.TrustScore = score
	res.SessionValid = score >= MinValid && len(res.Anomalies) < MaxAnomaly

	res.Recommendations = recommend(score, authMismatch, newDevice, multiIP, bot, sig.critical > 0)
	return res
}

func recommend(score int, authMismatch, newDevice, multiIP, bot, critical bool) []string {
	var out []string
	switch {
	case score < 30:
		out = append(out, "Terminate session and require re-authentication")
	case score < MinValid:
		out = append(out, "Require step-up authentication")
	case score < 70:
		out = append(out, "Increase monitoring for this session")
	}
	if authMismatch {
		out = append(out, "Invalidate the presented session token")
	}
	if newDevice {
		out = append(out, "Confirm the new device with the account owner")
	}
	if multiIP {
		out = append(out, "Review recent IP address changes")
	}
	if bot {
		out = append(out, "Present a CAPTCHA challenge")
	}
	if critical {
		out = append(out, "Review recent critical security events for this user")
	}
	if len(out) == 0 {
		out = append(out, "Continue standard monitoring")
	}
	return out
}

// ipActivity counts distinct addresses and address changes between
// consecutive events. events are newest first.
func ipActivity(events []*models.SecurityEvent) (distinct, changes int) {
	seen := make(map[string]struct{})
	prev := ""
	for i := len(events) - 1; i >= 0; i-- {
		ip := events[i].IP()
		if ip == "" {
			continue
		}
		seen[ip] = struct{}{}
		if prev != "" && ip != prev {
			changes++
		}
		prev = ip
	}
	return len(seen), changes
}

func (v *Verifier) offHours(t time.Time) bool {
	h := t.In(v.location).Hour()
	return h < OffHoursEnd || h >= OffHoursStart
}

// offHoursShare is the fraction of events in off-hours buckets. An empty
// history counts as no off-hours habit.
func offHoursShare(hours [24]int) float64 {
	total, off := 0, 0
	for h, n := range hours {
		total += n
		if h < OffHoursEnd || h >= OffHoursStart {
			off += n
		}
	}
	if total == 0 {
		return 0
	}
	return float64(off) / float64(total)
}

func (v *Verifier) record(ctx context.Context, req Request, res *Result, log *logging.Logger) {
	log.InfoContext(ctx, "session verified",
		logging.TrustScore(res.TrustScore),
		"session_valid", res.SessionValid,
		"anomalies", len(res.Anomalies),
	)
	if v.events == nil {
		return
	}
	_, err := v.events.Log(ctx, models.EventInput{
		EventType: EventVerification,
		Severity:  bandSeverity(res.TrustScore),
		EventData: map[string]interface{}{
			"trust_score":        res.TrustScore,
			"session_valid":      res.SessionValid,
			"anomalies":          res.Anomalies,
			"risk_factors":       res.RiskFactors,
			"device_fingerprint": req.DeviceFingerprint != "",
			"client_timestamp":   req.Timestamp,
		},
		ActorID:   req.UserID,
		Source:    "zero_trust_verifier",
		IPAddress: req.IPAddress,
	})
	if err != nil {
		log.WarnContext(ctx, "failed to log verification", logging.Error(err))
	}
}

func bandSeverity(score int) models.Severity {
	switch {
	case score < MinValid:
		return models.SeverityHigh
	case score < 70:
		return models.SeverityMedium
	default:
		return models.SeverityInfo
	}
}

func verdict(res *Result) string {
	if len(res.Anomalies) == 1 && res.Anomalies[0] == AnomalySystemError {
		return "error"
	}
	if res.SessionValid {
		return "valid"
	}
	return "invalid"
}
