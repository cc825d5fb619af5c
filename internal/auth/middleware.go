package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/telhawk-systems/guardrail/common/httputil"
	"github.com/telhawk-systems/guardrail/common/logging"
	"github.com/telhawk-systems/guardrail/internal/models"
	"github.com/telhawk-systems/guardrail/internal/repository"
)

// EventAccessDenied is logged for every rejected admin request.
const EventAccessDenied = "admin_access_denied"

type contextKey string

const principalKey contextKey = "principal"

// Principal is an authenticated caller.
type Principal struct {
	UserID    string
	SessionID string
	Role      models.Role
}

// Can reports whether the caller's role grants c.
func (p *Principal) Can(c models.Capability) bool {
	return p != nil && p.Role.Can(c)
}

// PrincipalFromContext returns the caller stored by RequireStaff, or nil.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey).(*Principal)
	return p
}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

type EventLogger interface {
	Log(ctx context.Context, in models.EventInput) (*models.LogResult, error)
}

// Authenticator resolves bearer tokens to principals and records denials.
type Authenticator struct {
	tokens *Tokens
	roles  repository.RoleStore
	events EventLogger
	logger *logging.Logger
}

func NewAuthenticator(tokens *Tokens, roles repository.RoleStore, events EventLogger, logger *logging.Logger) *Authenticator {
	if logger == nil {
		logger = logging.Default()
	}
	return &Authenticator{
		tokens: tokens,
		roles:  roles,
		events: events,
		logger: logger.Component("auth"),
	}
}

// Authenticate resolves the caller of r. A caller with no active role row
// is a plain user. Token problems return ErrInvalidToken or
// ErrExpiredToken; anything else is a store failure.
func (a *Authenticator) Authenticate(r *http.Request) (*Principal, error) {
	raw, ok := httputil.BearerToken(r)
	if !ok {
		return nil, ErrInvalidToken
	}
	claims, err := a.tokens.Validate(raw)
	if err != nil {
		return nil, err
	}

	role, err := a.roles.GetActiveRole(r.Context(), claims.UserID)
	switch {
	case errors.Is(err, repository.ErrRoleNotFound):
		role = models.RoleUser
	case err != nil:
		return nil, err
	}

	return &Principal{UserID: claims.UserID, SessionID: claims.SessionID, Role: role}, nil
}

// RequireStaff admits admins and moderators. Everyone else gets 401 or 403
// and the attempt is logged as a security event.
func (a *Authenticator) RequireStaff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := a.Authenticate(r)
		if err != nil {
			if errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrExpiredToken) {
				a.Deny(w, r, http.StatusUnauthorized, err.Error(), "")
				return
			}
			a.logger.ErrorContext(r.Context(), "role lookup failed", logging.Error(err))
			httputil.WriteError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		if !p.Role.IsStaff() {
			a.Deny(w, r, http.StatusForbidden, "insufficient role", p.UserID)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}

// Deny writes status and logs an access-denied event. userID is empty when
// the caller could not be identified.
func (a *Authenticator) Deny(w http.ResponseWriter, r *http.Request, status int, reason, userID string) {
	ctx := r.Context()
	ip := httputil.ClientIP(r)
	a.logger.WarnContext(ctx, "admin access denied",
		logging.UserID(userID),
		logging.IP(ip),
		logging.Status(status),
		"reason", reason,
	)

	if a.events != nil {
		_, err := a.events.Log(ctx, models.EventInput{
			EventType: EventAccessDenied,
			Severity:  models.SeverityMedium,
			EventData: map[string]interface{}{
				"reason": reason,
				"status": status,
				"path":   r.URL.Path,
			},
			ActorID:   userID,
			Source:    "admin_api",
			IPAddress: ip,
			UserAgent: r.UserAgent(),
		})
		if err != nil {
			a.logger.WarnContext(ctx, "failed to log access denial", logging.Error(err))
		}
	}

	message := "unauthorized"
	if status == http.StatusForbidden {
		message = "forbidden"
	}
	httputil.WriteError(w, status, message)
}
