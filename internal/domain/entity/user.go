package entity

import (
	"fmt"
	"strings"
	"time"
)

// Role of an authorized user
type Role string

const (
	RoleAdmin     Role = "admin"
	RolePodLead   Role = "pod_lead"
	RoleAnnotator Role = "annotator"
	RoleViewer    Role = "viewer"
)

// ParseRole validates a role name.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleAdmin, RolePodLead, RoleAnnotator, RoleViewer:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// CanManageConsensus covers consensus creation, unlocking and rework flags.
func (r Role) CanManageConsensus() bool {
	return r == RoleAdmin || r == RolePodLead
}

// CanAnnotate is false only for viewers.
func (r Role) CanAnnotate() bool {
	return r == RoleAdmin || r == RolePodLead || r == RoleAnnotator
}

// AuthorizedUser is an email allowed to use the system.
type AuthorizedUser struct {
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// NormalizeEmail lower-cases and trims an email used as identity.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
