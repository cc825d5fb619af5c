package handlers

import (
	"net/http"

	"github.com/telhawk-systems/guardrail/common/httputil"
	"github.com/telhawk-systems/guardrail/internal/models"
	"github.com/telhawk-systems/guardrail/internal/responder"
)

type responseRequest struct {
	Type      models.IncidentType    `json:"type"`
	Severity  models.Severity        `json:"severity"`
	UserID    string                 `json:"userId"`
	IPAddress string                 `json:"ipAddress"`
	EventData map[string]interface{} `json:"eventData"`
}

type responseResult struct {
	Success           bool                     `json:"success"`
	IncidentProcessed bool                     `json:"incidentProcessed"`
	IncidentID        string                   `json:"incidentId"`
	AutomatedActions  []models.AutomatedAction `json:"automatedActions"`
	AlertCreated      bool                     `json:"alertCreated"`
	AlertID           string                   `json:"alertId,omitempty"`
}

// AutomatedResponse runs the containment playbook for a reported incident.
func (h *Handler) AutomatedResponse(w http.ResponseWriter, r *http.Request) {
	var req responseRequest
	if !decode(w, r, &req) {
		return
	}

	out, err := h.deps.Responder.Respond(r.Context(), responder.Incident{
		Type:      req.Type,
		Severity:  req.Severity,
		ActorID:   req.UserID,
		IPAddress: req.IPAddress,
		EventData: req.EventData,
	})
	if err != nil {
		if writeValidation(w, err) {
			return
		}
		h.internalError(w, r, "automated response failed", err)
		return
	}

	actions := out.Actions
	if actions == nil {
		actions = []models.AutomatedAction{}
	}
	httputil.WriteJSON(w, http.StatusOK, responseResult{
		Success:           true,
		IncidentProcessed: true,
		IncidentID:        out.IncidentID,
		AutomatedActions:  actions,
		AlertCreated:      out.AlertCreated,
		AlertID:           out.AlertID,
	})
}
