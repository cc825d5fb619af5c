package handlers

import (
	"net/http"

	"github.com/telhawk-systems/guardrail/common/httputil"
	"github.com/telhawk-systems/guardrail/internal/models"
)

type logEventRequest struct {
	EventType string                 `json:"event_type"`
	Severity  models.Severity        `json:"severity"`
	EventData map[string]interface{} `json:"event_data"`
	UserID    string                 `json:"user_id"`
	SessionID string                 `json:"session_id"`
	Source    string                 `json:"source"`
}

// LogSecurityEvent records one client-reported event. Storage failures are
// reported as a warning on a successful response.
func (h *Handler) LogSecurityEvent(w http.ResponseWriter, r *http.Request) {
	var req logEventRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Severity == "" {
		req.Severity = models.SeverityInfo
	}
	if req.Source == "" {
		req.Source = "client"
	}

	res, err := h.deps.Events.Log(r.Context(), models.EventInput{
		EventType: req.EventType,
		Severity:  req.Severity,
		EventData: req.EventData,
		ActorID:   req.UserID,
		SessionID: req.SessionID,
		Source:    req.Source,
		IPAddress: httputil.ClientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		if writeValidation(w, err) {
			return
		}
		h.internalError(w, r, "event logging failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

type monitorRequest struct {
	EventType string                 `json:"eventType"`
	Severity  models.Severity        `json:"severity"`
	EventData map[string]interface{} `json:"eventData"`
	Source    string                 `json:"source"`
	UserID    string                 `json:"userId"`
	SessionID string                 `json:"sessionId"`
}

// EnhancedMonitoring logs an event and runs threat detection on it. Detection
// and containment act on the bearer token's user only; a userId in the body
// is recorded as claimed_user_id.
func (h *Handler) EnhancedMonitoring(w http.ResponseWriter, r *http.Request) {
	var req monitorRequest
	if !decode(w, r, &req) {
		return
	}

	actor := h.resolveUser(r)
	if req.UserID != "" && req.UserID != actor {
		if req.EventData == nil {
			req.EventData = map[string]interface{}{}
		}
		req.EventData["claimed_user_id"] = req.UserID
	}

	res, err := h.deps.Monitor.Process(r.Context(), models.EventInput{
		EventType: req.EventType,
		Severity:  req.Severity,
		EventData: req.EventData,
		ActorID:   actor,
		SessionID: req.SessionID,
		Source:    req.Source,
		IPAddress: httputil.ClientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		if writeValidation(w, err) {
			return
		}
		h.internalError(w, r, "security monitoring failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}
