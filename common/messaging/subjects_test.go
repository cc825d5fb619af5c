package messaging

import (
	"strings"
	"testing"
)

func TestSubjectConstants_FollowNamingConvention(t *testing.T) {
	subjects := []string{
		SubjectAlertsCreated,
		SubjectAlertsUpdated,
		SubjectIncidentsCritical,
		SubjectIncidentsHandled,
	}

	for _, s := range subjects {
		parts := strings.Split(s, ".")
		if len(parts) != 3 {
			t.Errorf("subject %q should have 3 dot-separated parts, has %d", s, len(parts))
		}
		if parts[0] != "security" {
			t.Errorf("subject %q should live in the security domain", s)
		}
	}
}

func TestIncidentSubject(t *testing.T) {
	got := IncidentSubject("brute_force_attack")
	if got != "security.incidents.handled.brute_force_attack" {
		t.Errorf("IncidentSubject() = %q", got)
	}
}

type fakeConn struct{ connected bool }

func (f fakeConn) IsConnected() bool { return f.connected }

func TestCheckHealth(t *testing.T) {
	if s := CheckHealth(nil); s.Enabled || s.Connected {
		t.Errorf("nil connection: %+v", s)
	}
	if s := CheckHealth(fakeConn{connected: true}); !s.Enabled || !s.Connected {
		t.Errorf("connected: %+v", s)
	}
	if s := CheckHealth(fakeConn{}); !s.Enabled || s.Connected {
		t.Errorf("disconnected: %+v", s)
	}
}
