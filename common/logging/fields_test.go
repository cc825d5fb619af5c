package logging

import (
	"errors"
	"log/slog"
	"testing"
)

func TestFieldHelpers(t *testing.T) {
	tests := []struct {
		name    string
		attr    slog.Attr
		wantKey string
		wantVal string
	}{
		{"service", Service("guardrail"), FieldService, "guardrail"},
		{"user id", UserID("user-123"), FieldUserID, "user-123"},
		{"ip", IP("203.0.113.9"), FieldIP, "203.0.113.9"},
		{"event type", EventType("login_failed"), FieldEventType, "login_failed"},
		{"severity", Severity("critical"), FieldSeverity, "critical"},
		{"rule", Rule("brute_force_login"), FieldRule, "brute_force_login"},
		{"incident", Incident("brute_force_attack"), FieldIncident, "brute_force_attack"},
		{"error", Error(errors.New("boom")), FieldError, "boom"},
		{"nil error", Error(nil), FieldError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.attr.Key != tt.wantKey {
				t.Errorf("key = %q, want %q", tt.attr.Key, tt.wantKey)
			}
			if tt.attr.Value.String() != tt.wantVal {
				t.Errorf("value = %q, want %q", tt.attr.Value.String(), tt.wantVal)
			}
		})
	}
}

func TestNumericFields(t *testing.T) {
	if got := Status(403).Value.Int64(); got != 403 {
		t.Errorf("Status value = %d, want 403", got)
	}
	if got := TrustScore(72).Value.Int64(); got != 72 {
		t.Errorf("TrustScore value = %d, want 72", got)
	}
	if got := Duration(15).Value.Int64(); got != 15 {
		t.Errorf("Duration value = %d, want 15", got)
	}
}
