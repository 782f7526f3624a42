package models

import (
	"encoding/json"
	"time"
)

const (
	SeverityHigh   = "high"
	SeverityMedium = "medium"
	SeverityLow    = "low"
)

// TaskAssignment hands a gap to an analyst. It lives inside ComplianceGap
// and is never stored on its own.
type TaskAssignment struct {
	AssigneeID   string     `json:"assigneeId"`
	AssigneeName string     `json:"assigneeName"`
	DueDate      string     `json:"dueDate"`
	Priority     string     `json:"priority"`
	Notes        string     `json:"notes"`
	AssignedAt   *time.Time `json:"assignedAt,omitempty"`
}

// ComplianceGap is a mismatch between a regulation's text and current policy text.
type ComplianceGap struct {
	ID             string  `gorm:"primaryKey" json:"id" yaml:"id"`
	RegulationID   string  `gorm:"index" json:"regulationId" yaml:"regulationId"`
	Description    string  `gorm:"not null" json:"description" yaml:"description"`
	RegulationText string  `json:"regulationText" yaml:"regulationText"`
	PolicySection  string  `json:"policySection" yaml:"policySection"`
	CurrentPolicy  string  `json:"currentPolicy" yaml:"currentPolicy"`
	Severity       string  `json:"severity" yaml:"severity"`
	Confidence     float64 `json:"confidence" yaml:"confidence"`
	Acknowledged   bool    `json:"acknowledged" yaml:"acknowledged"`

	// Assignment is flattened into assignment_* columns; a zero AssigneeID means unassigned.
	Assignment TaskAssignment `gorm:"embedded;embeddedPrefix:assignment_" json:"-" yaml:"-"`

	CreatedAt time.Time `json:"createdAt" yaml:"-"`
	UpdatedAt time.Time `json:"updatedAt" yaml:"-"`
}

// Assigned reports whether the gap currently carries an assignment.
func (g *ComplianceGap) Assigned() bool {
	return g.Assignment.AssigneeID != ""
}

// ConfidenceBand buckets a detection confidence into high, medium or low.
func ConfidenceBand(confidence float64) string {
	switch {
	case confidence >= 0.9:
		return "high"
	case confidence >= 0.7:
		return "medium"
	default:
		return "low"
	}
}

// MarshalJSON renders the assignment as a nested object, or null when unassigned.
func (g ComplianceGap) MarshalJSON() ([]byte, error) {
	type alias ComplianceGap
	out := struct {
		alias
		Assignment *TaskAssignment `json:"assignment"`
	}{alias: alias(g)}
	if g.Assigned() {
		a := g.Assignment
		out.Assignment = &a
	}
	return json.Marshal(out)
}
