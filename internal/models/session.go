package models

import "time"

// Session security levels written by containment actions.
const (
	SecurityLevelStandard    = "standard"
	SecurityLevelTerminated  = "terminated"
	SecurityLevelDisabled    = "disabled"
	SecurityLevelQuarantined = "quarantined"
)

// Session is a row of the authentication platform's session table. The
// pipeline reads it and flips IsActive/SecurityLevel/ExpiresAt during
// containment; it never creates sessions.
type Session struct {
	ID                string     `json:"id"`
	UserID            string     `json:"user_id"`
	SessionToken      string     `json:"-"`
	ClientFingerprint string     `json:"-"`
	IPAddress         *string    `json:"ip_address,omitempty"`
	IsActive          bool       `json:"is_active"`
	SecurityLevel     string     `json:"security_level"`
	ExpiresAt         time.Time  `json:"expires_at"`
	CreatedAt         time.Time  `json:"created_at"`
	LastActivity      *time.Time `json:"last_activity,omitempty"`
}

// Live reports whether the session is active and not expired at now.
func (s *Session) Live(now time.Time) bool {
	return s.IsActive && now.Before(s.ExpiresAt)
}

// SessionQuery filters session reads.
type SessionQuery struct {
	UserID     string
	ActiveOnly bool
	Limit      int
}

// SessionDeactivation describes a containment change applied to every
// active session of a user.
type SessionDeactivation struct {
	UserID        string
	SecurityLevel string
	ExpireNow     bool
}
