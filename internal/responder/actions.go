package responder

import (
	"context"
	"fmt"
	"time"

	"github.com/telhawk-systems/guardrail/internal/models"
)

// Containment action names recorded in the incident trail.
const (
	ActionBlockIP                 = "block_ip"
	ActionDisableAccount          = "disable_account"
	ActionTerminateSessions       = "terminate_sessions"
	ActionRevertRole              = "revert_role"
	ActionEmergencyDataProtection = "emergency_data_protection"
	ActionTriggerAudit            = "trigger_audit"
	ActionQuarantineSessions      = "quarantine_sessions"
	ActionEnhancedMonitoring      = "enhanced_monitoring"
	ActionLogOnly                 = "log_only"
)

// EventSecurityAuditTriggered is logged by the trigger_audit action.
const EventSecurityAuditTriggered = "security_audit_triggered"

// containmentTTL bounds IP blocks, enhanced monitoring and the audit look-back.
const containmentTTL = 24 * time.Hour

const updatedBy = "automated_responder"

// action is one containment step. applies reports whether the incident has
// what the step needs; run performs it and returns a description.
type action struct {
	name    string
	applies func(inc *Incident) bool
	run     func(ctx context.Context, r *Responder, inc *Incident) (string, error)
}

func hasIP(inc *Incident) bool    { return inc.IPAddress != "" }
func hasActor(inc *Incident) bool { return inc.ActorID != "" }
func hasSubject(inc *Incident) bool {
	return inc.ActorID != "" || inc.IPAddress != ""
}

// playbooks maps incident types to their ordered containment steps. Types
// without an entry are recorded log-only.
var playbooks = map[models.IncidentType][]action{
	models.IncidentBruteForce: {
		{name: ActionBlockIP, applies: hasIP, run: blockIP},
		{name: ActionDisableAccount, applies: hasActor, run: disableAccount},
	},
	models.IncidentPrivilegeEscalation: {
		{name: ActionTerminateSessions, applies: hasActor, run: terminateSessions},
		{name: ActionRevertRole, applies: hasActor, run: revertRole},
	},
	models.IncidentDataExfiltration: {
		{name: ActionEmergencyDataProtection, run: emergencyDataProtection},
		{name: ActionTriggerAudit, run: triggerAudit},
	},
	models.IncidentMalwareDetection: {
		{name: ActionQuarantineSessions, applies: hasActor, run: quarantineSessions},
	},
	models.IncidentSuspiciousActivity: {
		{name: ActionEnhancedMonitoring, applies: hasSubject, run: enhancedMonitoring},
	},
}

// PlaybookActions lists the action names configured for t.
func PlaybookActions(t models.IncidentType) []string {
	steps, ok := playbooks[t]
	if !ok {
		return []string{ActionLogOnly}
	}
	names := make([]string, len(steps))
	for i, s := range steps {
		names[i] = s.name
	}
	return names
}

func blockIP(ctx context.Context, r *Responder, inc *Incident) (string, error) {
	now := r.now().UTC()
	expires := now.Add(containmentTTL)
	err := r.store.UpsertConfig(ctx, &models.SecurityConfig{
		Key: models.ConfigBlockedIPPrefix + inc.IPAddress,
		Value: map[string]interface{}{
			"ip_address": inc.IPAddress,
			"reason":     string(inc.Type),
			"blocked_at": now.Format(time.RFC3339),
		},
		UpdatedBy: updatedBy,
		UpdatedAt: now,
		ExpiresAt: &expires,
	})
	if err != nil {
		return "", fmt.Errorf("failed to block IP: %w", err)
	}
	return fmt.Sprintf("Blocked IP %s for 24 hours", inc.IPAddress), nil
}

func disableAccount(ctx context.Context, r *Responder, inc *Incident) (string, error) {
	roles, err := r.store.DeactivateRoles(ctx, inc.ActorID)
	if err != nil {
		return "", fmt.Errorf("failed to deactivate roles: %w", err)
	}
	sessions, err := r.store.DeactivateSessions(ctx, models.SessionDeactivation{
		UserID:        inc.ActorID,
		SecurityLevel: models.SecurityLevelDisabled,
		ExpireNow:     true,
	})
	if err != nil {
		return "", fmt.Errorf("failed to deactivate sessions: %w", err)
	}
	return fmt.Sprintf("Disabled account %s (%d roles, %d sessions deactivated)", inc.ActorID, roles, sessions), nil
}

func terminateSessions(ctx context.Context, r *Responder, inc *Incident) (string, error) {
	n, err := r.store.DeactivateSessions(ctx, models.SessionDeactivation{
		UserID:        inc.ActorID,
		SecurityLevel: models.SecurityLevelTerminated,
		ExpireNow:     true,
	})
	if err != nil {
		return "", fmt.Errorf("failed to terminate sessions: %w", err)
	}
	return fmt.Sprintf("Terminated %d active sessions for user %s", n, inc.ActorID), nil
}

func revertRole(ctx context.Context, r *Responder, inc *Incident) (string, error) {
	if err := r.store.SetRole(ctx, inc.ActorID, models.BaselineRole); err != nil {
		return "", fmt.Errorf("failed to revert role: %w", err)
	}
	return fmt.Sprintf("Reverted user %s to role %s", inc.ActorID, models.BaselineRole), nil
}

func emergencyDataProtection(ctx context.Context, r *Responder, inc *Incident) (string, error) {
	now := r.now().UTC()
	err := r.store.UpsertConfig(ctx, &models.SecurityConfig{
		Key: models.ConfigEmergencyDataProtection,
		Value: map[string]interface{}{
			"enabled":      true,
			"reason":       string(inc.Type),
			"activated_at": now.Format(time.RFC3339),
		},
		UpdatedBy: updatedBy,
		UpdatedAt: now,
	})
	if err != nil {
		return "", fmt.Errorf("failed to enable emergency data protection: %w", err)
	}
	return "Enabled emergency data protection", nil
}

func triggerAudit(ctx context.Context, r *Responder, inc *Incident) (string, error) {
	if r.events == nil {
		return "", fmt.Errorf("failed to trigger audit: no event logger configured")
	}
	now := r.now().UTC()
	res, err := r.events.Log(ctx, models.EventInput{
		EventType: EventSecurityAuditTriggered,
		Severity:  models.SeverityHigh,
		EventData: map[string]interface{}{
			"incident_type": string(inc.Type),
			"audit_from":    now.Add(-containmentTTL).Format(time.RFC3339),
			"audit_to":      now.Format(time.RFC3339),
		},
		ActorID:   inc.ActorID,
		Source:    updatedBy,
		IPAddress: inc.IPAddress,
	})
	if err != nil {
		return "", fmt.Errorf("failed to trigger audit: %w", err)
	}
	if res != nil && res.Warning != "" {
		return "", fmt.Errorf("failed to trigger audit: %s", res.Warning)
	}
	return "Triggered security audit for the last 24 hours", nil
}

func quarantineSessions(ctx context.Context, r *Responder, inc *Incident) (string, error) {
	n, err := r.store.DeactivateSessions(ctx, models.SessionDeactivation{
		UserID:        inc.ActorID,
		SecurityLevel: models.SecurityLevelQuarantined,
	})
	if err != nil {
		return "", fmt.Errorf("failed to quarantine sessions: %w", err)
	}
	return fmt.Sprintf("Quarantined %d sessions for user %s", n, inc.ActorID), nil
}

func enhancedMonitoring(ctx context.Context, r *Responder, inc *Incident) (string, error) {
	scope := inc.ActorID
	if scope == "" {
		scope = inc.IPAddress
	}
	now := r.now().UTC()
	expires := now.Add(containmentTTL)
	err := r.store.UpsertConfig(ctx, &models.SecurityConfig{
		Key: models.ConfigEnhancedMonitoringPrefix + scope,
		Value: map[string]interface{}{
			"enabled":    true,
			"actor_id":   inc.ActorID,
			"ip_address": inc.IPAddress,
			"reason":     string(inc.Type),
		},
		UpdatedBy: updatedBy,
		UpdatedAt: now,
		ExpiresAt: &expires,
	})
	if err != nil {
		return "", fmt.Errorf("failed to enable enhanced monitoring: %w", err)
	}
	return fmt.Sprintf("Enabled enhanced monitoring for %s for 24 hours", scope), nil
}
