package models

import "fmt"

// Role is the closed set of application roles.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleModerator Role = "moderator"
	RoleUser      Role = "user"
)

// BaselineRole is the least-privileged role; privilege reverts land here.
const BaselineRole = RoleUser

// Capability names one permission checked by the admin surface.
type Capability string

const (
	CapReadEvents   Capability = "events:read"
	CapReadAlerts   Capability = "alerts:read"
	CapUpdateAlerts Capability = "alerts:update"
	CapReadMetrics  Capability = "metrics:read"
	CapReadSessions Capability = "sessions:read"
)

var roleCapabilities = map[Role]map[Capability]bool{
	RoleAdmin: {
		CapReadEvents:   true,
		CapReadAlerts:   true,
		CapUpdateAlerts: true,
		CapReadMetrics:  true,
		CapReadSessions: true,
	},
	RoleModerator: {
		CapReadEvents:   true,
		CapReadAlerts:   true,
		CapUpdateAlerts: true,
		CapReadMetrics:  true,
	},
	RoleUser: {},
}

// ParseRole validates s.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if _, ok := roleCapabilities[r]; !ok {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// Can reports whether the role grants c.
func (r Role) Can(c Capability) bool {
	return roleCapabilities[r][c]
}

// IsStaff reports whether the role may reach the security-data surface at all.
func (r Role) IsStaff() bool {
	return r == RoleAdmin || r == RoleModerator
}

// UserRole is a role assignment row.
type UserRole struct {
	UserID   string `json:"user_id"`
	Role     Role   `json:"role"`
	IsActive bool   `json:"is_active"`
}
