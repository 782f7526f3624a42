package models

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

const (
	DocTypeRegulation = "regulation"
	DocTypeGuideline  = "guideline"
	DocTypeFramework  = "framework"
	DocTypePolicy     = "policy"
)

// AnalysisDocument is a regulation or internal policy selectable for cross-impact analysis.
type AnalysisDocument struct {
	ID          string `gorm:"primaryKey" json:"id" yaml:"id"`
	Title       string `json:"title" yaml:"title"`
	Type        string `json:"type" yaml:"type"`
	Status      string `json:"status" yaml:"status"`
	LastUpdated string `json:"lastUpdated" yaml:"lastUpdated"`
	Content     string `json:"-" yaml:"content"`
}

// IsPolicy reports whether the document is internal policy rather than regulation.
func (d *AnalysisDocument) IsPolicy() bool {
	return d.Type == DocTypePolicy || strings.HasPrefix(d.ID, "pol")
}

// CrossImpactRun stores the outcome of one cross-impact analysis.
type CrossImpactRun struct {
	ID               string                     `gorm:"primaryKey" json:"id"`
	DocumentIDs      datatypes.JSONSlice[string] `json:"documentIds"`
	ImpactLevel      string                     `json:"impactLevel"`
	AffectedPolicies datatypes.JSONSlice[string] `json:"affectedPolicies"`
	Recommendations  datatypes.JSONSlice[string] `json:"recommendations"`
	Conflicts        datatypes.JSONSlice[string] `json:"conflicts"`
	TotalConflicts   int                        `json:"totalConflicts"`
	CreatedAt        time.Time                  `json:"createdAt"`
}

// PolicyChange is one line of an executive report.
type PolicyChange struct {
	ID                string `json:"id"`
	PolicyName        string `json:"policyName"`
	SectionModified   string `json:"sectionModified"`
	ChangeType        string `json:"changeType"`
	ChangeDescription string `json:"changeDescription"`
	RegulatorySource  string `json:"regulatorySource"`
	ImpactLevel       string `json:"impactLevel"`
	DateModified      string `json:"dateModified"`
}

// ExecutiveReport summarizes the policy changes made for one regulation.
type ExecutiveReport struct {
	ID                string                          `gorm:"primaryKey" json:"id"`
	RegulationID      string                          `gorm:"index" json:"regulationId"`
	RegulationTitle   string                          `json:"regulationTitle"`
	Summary           string                          `json:"summary"`
	TotalChanges      int                             `json:"totalChanges"`
	HighImpactChanges int                             `json:"highImpactChanges"`
	PolicyChanges     datatypes.JSONSlice[PolicyChange] `json:"policyChanges"`
	GeneratedAt       time.Time                       `json:"generatedDate"`
}
