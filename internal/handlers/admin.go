package handlers

import (
	"errors"
	"net/http"

	"github.com/telhawk-systems/guardrail/common/httputil"
	"github.com/telhawk-systems/guardrail/internal/admin"
	"github.com/telhawk-systems/guardrail/internal/auth"
	"github.com/telhawk-systems/guardrail/internal/repository"
)

// AdminSecurityData dispatches a staff dashboard action. It must be mounted
// behind auth.Authenticator.RequireStaff.
func (h *Handler) AdminSecurityData(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFromContext(r.Context())
	if p == nil {
		h.deps.Auth.Deny(w, r, http.StatusUnauthorized, "no principal", "")
		return
	}

	var req admin.Request
	if !decode(w, r, &req) {
		return
	}

	data, err := h.deps.Admin.Execute(r.Context(), p, req, httputil.ClientIP(r))
	switch {
	case err == nil:
		httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"action":  req.Action,
			"data":    data,
		})
	case errors.Is(err, admin.ErrForbidden):
		h.deps.Auth.Deny(w, r, http.StatusForbidden, "insufficient capability for "+req.Action, p.UserID)
	case errors.Is(err, admin.ErrUnknownAction):
		httputil.WriteValidationError(w, map[string]string{"action": "unknown action"})
	case errors.Is(err, repository.ErrAlertNotFound):
		httputil.WriteError(w, http.StatusNotFound, "alert not found")
	case writeValidation(w, err):
	default:
		h.internalError(w, r, "admin action failed", err)
	}
}
