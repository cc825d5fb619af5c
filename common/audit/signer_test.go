package audit

import (
	"testing"
	"time"
)

func testRecord() Record {
	return Record{
		ID:        "audit-123",
		ActorID:   "user-1",
		Action:    "critical_security_event",
		Resource:  "security_event/evt-9",
		SourceIP:  "203.0.113.5",
		Timestamp: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		Details:   []byte(`{"event_type":"admin_role_assigned"}`),
	}
}

func TestSigner_Deterministic(t *testing.T) {
	s := NewSigner("secret")
	rec := testRecord()

	sig := s.Sign(rec)
	if sig == "" {
		t.Fatal("expected non-empty signature")
	}
	if len(sig) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(sig))
	}
	if sig != s.Sign(rec) {
		t.Error("signature is not deterministic")
	}
}

func TestSigner_Verify(t *testing.T) {
	s := NewSigner("secret")
	rec := testRecord()
	sig := s.Sign(rec)

	if !s.Verify(rec, sig) {
		t.Error("expected valid signature to verify")
	}

	tampered := rec
	tampered.Action = "noop"
	if s.Verify(tampered, sig) {
		t.Error("tampered record verified")
	}

	if NewSigner("other").Verify(rec, sig) {
		t.Error("signature verified under a different key")
	}
}

func TestSigner_FieldBoundaries(t *testing.T) {
	s := NewSigner("secret")
	a := Record{ID: "ab", ActorID: "c"}
	b := Record{ID: "a", ActorID: "bc"}
	if s.Sign(a) == s.Sign(b) {
		t.Error("field boundaries are not part of the signature")
	}
}

func TestSigner_TimezoneIndependent(t *testing.T) {
	s := NewSigner("secret")
	rec := testRecord()
	local := rec
	local.Timestamp = rec.Timestamp.In(time.FixedZone("X", 3600))
	if s.Sign(rec) != s.Sign(local) {
		t.Error("same instant in different zones should sign identically")
	}
}
