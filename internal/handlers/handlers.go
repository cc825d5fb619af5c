// Package handlers adapts HTTP requests to the security pipeline services.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/telhawk-systems/guardrail/common/httputil"
	"github.com/telhawk-systems/guardrail/common/logging"
	"github.com/telhawk-systems/guardrail/common/messaging"
	"github.com/telhawk-systems/guardrail/internal/admin"
	"github.com/telhawk-systems/guardrail/internal/auth"
	"github.com/telhawk-systems/guardrail/internal/models"
	"github.com/telhawk-systems/guardrail/internal/monitor"
	"github.com/telhawk-systems/guardrail/internal/ratelimit"
	"github.com/telhawk-systems/guardrail/internal/responder"
	"github.com/telhawk-systems/guardrail/internal/trust"
	"github.com/telhawk-systems/guardrail/internal/zerotrust"
)

type EventLogger interface {
	Log(ctx context.Context, in models.EventInput) (*models.LogResult, error)
}

type Monitor interface {
	Process(ctx context.Context, in models.EventInput) (*monitor.Result, error)
}

type Responder interface {
	Respond(ctx context.Context, inc responder.Incident) (*responder.Outcome, error)
}

type Verifier interface {
	Verify(ctx context.Context, req zerotrust.Request) *zerotrust.Result
}

type Admin interface {
	Execute(ctx context.Context, p *auth.Principal, req admin.Request, ip string) (interface{}, error)
}

type Limiter interface {
	Check(ctx context.Context, req ratelimit.Request) (ratelimit.Decision, error)
}

type TrustStore interface {
	Record(key string, interactions []trust.Interaction) (trust.Snapshot, error)
	Score(key string) (int, bool)
}

// TokenResolver maps an optional bearer token to a user id.
type TokenResolver interface {
	ResolveUser(ctx context.Context, token string) (string, error)
}

// Pinger reports whether the event store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the services behind the HTTP surface.
type Deps struct {
	Events    EventLogger
	Monitor   Monitor
	Responder Responder
	Verifier  Verifier
	Admin     Admin
	Auth      *auth.Authenticator
	Limiter   Limiter
	Trust     TrustStore
	Tokens    TokenResolver
	Store     Pinger
	Bus       messaging.Connection
}

type Handler struct {
	deps   Deps
	logger *logging.Logger
}

func New(deps Deps, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{deps: deps, logger: logger.Component("handlers")}
}

// Health reports store and broker connectivity. The service is unhealthy
// only when the store is unreachable.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status, code := "healthy", http.StatusOK
	store := "ok"
	if h.deps.Store != nil {
		if err := h.deps.Store.Ping(ctx); err != nil {
			h.logger.ErrorContext(ctx, "health check: store unreachable", logging.Error(err))
			status, code, store = "unhealthy", http.StatusServiceUnavailable, "unreachable"
		}
	}

	httputil.WriteJSON(w, code, map[string]interface{}{
		"status":    status,
		"service":   "guardrail",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"store":     store,
		"nats":      messaging.CheckHealth(h.deps.Bus),
	})
}

// decode reads the JSON body into dst and answers 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := httputil.DecodeJSON(w, r, dst); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// writeValidation answers 400 with field details when err is a validation
// error and reports whether it did.
func writeValidation(w http.ResponseWriter, err error) bool {
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		httputil.WriteValidationError(w, verr.Fields)
		return true
	}
	return false
}

// internalError logs err and answers a generic 500.
func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	h.logger.ErrorContext(r.Context(), msg, logging.Path(r.URL.Path), logging.Error(err))
	httputil.WriteError(w, http.StatusInternalServerError, "internal server error")
}
