package handlers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/telhawk-systems/guardrail/common/httputil"
	"github.com/telhawk-systems/guardrail/internal/ratelimit"
	"github.com/telhawk-systems/guardrail/internal/trust"
)

// ClientIDHeader carries the anonymous client id between calls.
const ClientIDHeader = "X-Client-ID"

type rateLimitRequest struct {
	Action            string   `json:"action"`
	CustomLimit       int64    `json:"custom_limit"`
	TrustScore        *float64 `json:"trust_score"`
	SessionID         string   `json:"session_id"`
	DeviceFingerprint string   `json:"device_fingerprint"`
}

// RateLimitCheck answers 200 when the action may proceed, 429 when it is
// over quota and 503 when the limiter could not decide.
func (h *Handler) RateLimitCheck(w http.ResponseWriter, r *http.Request) {
	var req rateLimitRequest
	if !decode(w, r, &req) {
		return
	}

	userID := h.resolveUser(r)
	ip := httputil.ClientIP(r)
	identifier := userID
	if identifier == "" {
		// Anonymous windows are keyed on the address; X-Client-ID is only echoed.
		identifier = "ip:" + ip
		w.Header().Set(ClientIDHeader, clientID(r))
	}

	score := h.trustFor(req)
	d, err := h.deps.Limiter.Check(r.Context(), ratelimit.Request{
		Identifier:  identifier,
		Action:      req.Action,
		CustomLimit: req.CustomLimit,
		TrustScore:  &score,
		ActorID:     userID,
		IPAddress:   ip,
		UserAgent:   r.UserAgent(),
	})
	switch {
	case err != nil:
		httputil.WriteJSON(w, http.StatusServiceUnavailable, d)
	case !d.Allowed:
		httputil.WriteJSON(w, http.StatusTooManyRequests, d)
	default:
		httputil.WriteJSON(w, http.StatusOK, d)
	}
}

// clientID echoes a well-formed X-Client-ID or issues a new one.
func clientID(r *http.Request) string {
	id := r.Header.Get(ClientIDHeader)
	if _, err := uuid.Parse(id); err != nil {
		return uuid.NewString()
	}
	return id
}

// resolveUser returns the bearer token's user, or "" for anonymous callers.
func (h *Handler) resolveUser(r *http.Request) string {
	if h.deps.Tokens == nil {
		return ""
	}
	raw, ok := httputil.BearerToken(r)
	if !ok {
		return ""
	}
	userID, err := h.deps.Tokens.ResolveUser(r.Context(), raw)
	if err != nil {
		return ""
	}
	return userID
}

// trustFor picks the trust score for a rate-limit check. The server-side
// profile is authoritative; a client-reported score may only lower it.
func (h *Handler) trustFor(req rateLimitRequest) float64 {
	score := float64(ratelimit.NeutralTrust)
	if h.deps.Trust != nil {
		if key, err := trust.Key(req.SessionID, req.DeviceFingerprint); err == nil {
			if s, ok := h.deps.Trust.Score(key); ok {
				score = float64(s)
			}
		}
	}
	if req.TrustScore != nil && *req.TrustScore >= trust.MinScore && *req.TrustScore < score {
		score = *req.TrustScore
	}
	return score
}

type trustActivityRequest struct {
	SessionID         string              `json:"session_id"`
	DeviceFingerprint string              `json:"device_fingerprint"`
	Interactions      []trust.Interaction `json:"interactions"`
}

// TrustActivity feeds client interactions into the server-side profile and
// returns its current state.
func (h *Handler) TrustActivity(w http.ResponseWriter, r *http.Request) {
	var req trustActivityRequest
	if !decode(w, r, &req) {
		return
	}

	key, err := trust.Key(req.SessionID, req.DeviceFingerprint)
	if err != nil {
		httputil.WriteValidationError(w, map[string]string{"session_id": err.Error()})
		return
	}
	snap, err := h.deps.Trust.Record(key, req.Interactions)
	switch {
	case errors.Is(err, trust.ErrUnknownInteraction):
		httputil.WriteValidationError(w, map[string]string{"interactions": err.Error()})
	case err != nil:
		h.internalError(w, r, "trust update failed", err)
	default:
		httputil.WriteJSON(w, http.StatusOK, snap)
	}
}
