package models

import (
	"regexp"
	"strings"
	"time"

	"gorm.io/datatypes"
)

const (
	UserActive   = "active"
	UserInactive = "inactive"
)

const (
	RoleComplianceLead  = "compliance_lead"
	RoleSeniorAnalyst   = "senior_analyst"
	RoleJuniorAnalyst   = "junior_analyst"
	RoleExternalAuditor = "external_auditor"
	RoleAdmin           = "admin"
)

// SystemUser is a person with access to the workspace.
type SystemUser struct {
	ID         string     `gorm:"primaryKey" json:"id" yaml:"id"`
	Name       string     `gorm:"not null" json:"name" yaml:"name"`
	Email      string     `gorm:"uniqueIndex" json:"email" yaml:"email"`
	Role       string     `json:"role" yaml:"role"`
	Status     string     `json:"status" yaml:"status"`
	LastLogin  *time.Time `json:"lastLogin" yaml:"lastLogin"`
	Department string     `json:"department" yaml:"department"`
}

// UserRole names a permission set.
type UserRole struct {
	ID          string                     `gorm:"primaryKey" json:"id" yaml:"id"`
	Name        string                     `json:"name" yaml:"name"`
	Description string                     `json:"description" yaml:"description"`
	Permissions datatypes.JSONSlice[string] `json:"permissions" yaml:"permissions"`
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

var whitespaceRun = regexp.MustCompile(`\s+`)

// IsValidEmail performs the same loose shape check as the upload and user forms.
func IsValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// UserIDFromName derives a user id: lowercase, whitespace runs become "-".
func UserIDFromName(name string) string {
	return whitespaceRun.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
}

// HasPermission reports whether the role grants permission. "*" grants everything.
func (r *UserRole) HasPermission(permission string) bool {
	for _, p := range r.Permissions {
		if p == "*" || p == permission {
			return true
		}
	}
	return false
}
