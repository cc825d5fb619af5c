package handlers

import (
	"net/http"

	"github.com/telhawk-systems/guardrail/common/httputil"
	"github.com/telhawk-systems/guardrail/common/logging"
	"github.com/telhawk-systems/guardrail/internal/zerotrust"
)

// ZeroTrustVerification scores a session. It always answers 200; an
// unreadable body is verified as an anonymous request and fails closed.
func (h *Handler) ZeroTrustVerification(w http.ResponseWriter, r *http.Request) {
	var req zerotrust.Request
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		h.logger.WarnContext(r.Context(), "unreadable verification request", logging.Error(err))
		req = zerotrust.Request{}
	}
	req.IPAddress = httputil.ClientIP(r)

	httputil.WriteJSON(w, http.StatusOK, h.deps.Verifier.Verify(r.Context(), req))
}
