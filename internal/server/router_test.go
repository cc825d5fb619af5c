package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/guardrail/common/audit"
	"github.com/telhawk-systems/guardrail/common/logging"
	"github.com/telhawk-systems/guardrail/common/middleware"
	"github.com/telhawk-systems/guardrail/internal/admin"
	"github.com/telhawk-systems/guardrail/internal/auth"
	"github.com/telhawk-systems/guardrail/internal/detector"
	"github.com/telhawk-systems/guardrail/internal/eventlog"
	"github.com/telhawk-systems/guardrail/internal/handlers"
	"github.com/telhawk-systems/guardrail/internal/models"
	"github.com/telhawk-systems/guardrail/internal/monitor"
	"github.com/telhawk-systems/guardrail/internal/ratelimit"
	"github.com/telhawk-systems/guardrail/internal/repository"
	"github.com/telhawk-systems/guardrail/internal/responder"
	"github.com/telhawk-systems/guardrail/internal/trust"
	"github.com/telhawk-systems/guardrail/internal/zerotrust"
)

const allowedOrigin = "https://app.loanbroker.example"

type stack struct {
	router http.Handler
	repo   *repository.InMemoryRepository
	tokens *auth.Tokens
}

func newStack(t *testing.T) *stack {
	t.Helper()
	logger := logging.Discard()
	repo := repository.NewInMemoryRepository()
	tokens := auth.NewTokens("router-test-secret", "guardrail-test", time.Hour)
	signer := audit.NewSigner("audit-test-key")

	events := eventlog.New(repo, eventlog.DefaultConfig(), logger, eventlog.WithSigner(signer))
	rules, err := detector.DefaultRules()
	require.NoError(t, err)
	resp := responder.New(repo, events, nil, logger)
	mon := monitor.New(events, detector.New(repo, rules), resp, repo, nil, logger)
	trustStore, err := trust.NewStore(64, 30*time.Minute, time.Second)
	require.NoError(t, err)
	authn := auth.NewAuthenticator(tokens, repo, events, logger)

	h := handlers.New(handlers.Deps{
		Events:    events,
		Monitor:   mon,
		Responder: resp,
		Verifier:  zerotrust.New(repo, tokens, events, logger),
		Admin:     admin.New(repo, signer, nil, logger),
		Auth:      authn,
		Limiter:   ratelimit.NewLimiter(ratelimit.NewMemoryStore(), events, ratelimit.DefaultConfig(), logger),
		Trust:     trustStore,
		Tokens:    tokens,
		Store:     repo,
	}, logger)

	router := NewRouter(h, authn, Options{
		CORS:         middleware.CORSConfig{AllowedOrigins: []string{allowedOrigin, "*.partner.example"}},
		MaxBodyBytes: 4096,
	})
	return &stack{router: router, repo: repo, tokens: tokens}
}

func (s *stack) do(t *testing.T, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-For", "192.0.2.10")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *stack) bearer(t *testing.T, userID string) map[string]string {
	t.Helper()
	tok, err := s.tokens.Issue(userID, "sess-"+userID)
	require.NoError(t, err)
	return map[string]string{"Authorization": "Bearer " + tok}
}

func TestRouter_Health(t *testing.T) {
	s := newStack(t)
	rec := s.do(t, http.MethodGet, "/healthz", nil, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(middleware.HeaderRequestID))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestRouter_Metrics(t *testing.T) {
	s := newStack(t)
	s.do(t, http.MethodGet, "/healthz", nil, nil)

	rec := s.do(t, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "guardrail_http_request_duration_seconds")
}

func TestRouter_CORS(t *testing.T) {
	s := newStack(t)
	event := map[string]interface{}{"event_type": "page_view"}

	tests := []struct {
		name   string
		method string
		origin string
		status int
	}{
		{name: "preflight from anywhere", method: http.MethodOptions, origin: "https://evil.example", status: http.StatusNoContent},
		{name: "allowed origin", method: http.MethodPost, origin: allowedOrigin, status: http.StatusOK},
		{name: "wildcard subdomain", method: http.MethodPost, origin: "https://crm.partner.example", status: http.StatusOK},
		{name: "foreign origin", method: http.MethodPost, origin: "https://evil.example", status: http.StatusForbidden},
		{name: "no origin", method: http.MethodPost, status: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := map[string]string{}
			if tt.origin != "" {
				headers["Origin"] = tt.origin
			}
			rec := s.do(t, tt.method, "/api/v1/log-security-event", event, headers)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	s := newStack(t)
	rec := s.do(t, http.MethodGet, "/api/v1/log-security-event", nil, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRouter_BodyLimit(t *testing.T) {
	s := newStack(t)
	big := map[string]interface{}{
		"event_type": "page_view",
		"event_data": map[string]interface{}{"blob": string(bytes.Repeat([]byte("a"), 8192))},
	}
	rec := s.do(t, http.MethodPost, "/api/v1/log-security-event", big, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_AdminAccess(t *testing.T) {
	s := newStack(t)
	s.repo.AssignRole("admin-1", models.RoleAdmin)
	s.repo.AssignRole("mod-1", models.RoleModerator)

	tests := []struct {
		name    string
		headers map[string]string
		action  string
		status  int
	}{
		{name: "no token", action: admin.ActionGetEvents, status: http.StatusUnauthorized},
		{name: "plain user", headers: s.bearer(t, "user-1"), action: admin.ActionGetEvents, status: http.StatusForbidden},
		{name: "moderator reads events", headers: s.bearer(t, "mod-1"), action: admin.ActionGetEvents, status: http.StatusOK},
		{name: "moderator reads sessions", headers: s.bearer(t, "mod-1"), action: admin.ActionGetUserSessions, status: http.StatusForbidden},
		{name: "admin reads sessions", headers: s.bearer(t, "admin-1"), action: admin.ActionGetUserSessions, status: http.StatusOK},
		{name: "admin unknown action", headers: s.bearer(t, "admin-1"), action: "drop_tables", status: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/v1/admin-security-data", map[string]interface{}{"action": tt.action}, tt.headers)
			assert.Equal(t, tt.status, rec.Code)
		})
	}

	denied, err := s.repo.CountEvents(t.Context(), models.EventQuery{EventType: auth.EventAccessDenied})
	require.NoError(t, err)
	assert.Equal(t, 3, denied, "every 401/403 is logged")
}

func TestRouter_BruteForceIsContained(t *testing.T) {
	s := newStack(t)
	attempt := map[string]interface{}{
		"eventType": "login_failed",
		"severity":  "medium",
		"source":    "login_form",
		"eventData": map[string]interface{}{"username": "victim@example.com"},
	}

	var last map[string]interface{}
	for i := 0; i < 6; i++ {
		rec := s.do(t, http.MethodPost, "/api/v1/enhanced-security-monitoring", attempt, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		last = nil
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &last))
	}

	assert.Equal(t, true, last["eventLogged"])
	assert.GreaterOrEqual(t, last["threatsDetected"], float64(1))
	assert.NotEmpty(t, s.repo.Incidents(), "block rule hands the attacker to the responder")
}

func TestRouter_ClaimedUserIsNotContained(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	s.repo.AssignRole("victim", models.RoleModerator)
	s.repo.AddSession(&models.Session{
		ID:            models.NewID(),
		UserID:        "victim",
		SessionToken:  "victim-token",
		IsActive:      true,
		SecurityLevel: models.SecurityLevelStandard,
		ExpiresAt:     time.Now().Add(time.Hour),
		CreatedAt:     time.Now(),
	})

	forged := map[string]interface{}{
		"eventType": "login_failed",
		"severity":  "medium",
		"source":    "login_form",
		"userId":    "victim",
	}
	for i := 0; i < 6; i++ {
		rec := s.do(t, http.MethodPost, "/api/v1/enhanced-security-monitoring", forged, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	sessions, err := s.repo.ListSessions(ctx, models.SessionQuery{UserID: "victim"})
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.True(t, sessions[0].IsActive)
	assert.Equal(t, models.SecurityLevelStandard, sessions[0].SecurityLevel)

	role, err := s.repo.GetActiveRole(ctx, "victim")
	require.NoError(t, err)
	assert.Equal(t, models.RoleModerator, role)

	// The caller's own address is still blocked.
	_, err = s.repo.GetConfig(ctx, models.ConfigBlockedIPPrefix+"192.0.2.10")
	assert.NoError(t, err)
}

func TestRouter_ZeroTrustAlways200(t *testing.T) {
	s := newStack(t)
	rec := s.do(t, http.MethodPost, "/api/v1/zero-trust-verification", map[string]interface{}{}, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var res zerotrust.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.False(t, res.SessionValid)
	assert.Equal(t, 0, res.TrustScore)
}
