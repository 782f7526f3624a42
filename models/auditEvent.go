package models

import (
	"time"

	"gorm.io/datatypes"
)

// Audit action tags.
const (
	ActionGapDetected       = "GAP_DETECTED"
	ActionGapAcknowledged   = "GAP_ACKNOWLEDGED"
	ActionGapDismissed      = "GAP_DISMISSED"
	ActionTaskAssigned      = "TASK_ASSIGNED"
	ActionAmendmentApproved = "AMENDMENT_APPROVED"
	ActionAmendmentRejected = "AMENDMENT_REJECTED"
	ActionAmendmentEdited   = "AMENDMENT_EDITED"
	ActionAmendmentDrafted  = "AMENDMENT_DRAFTED"
	ActionReportGenerated   = "REPORT_GENERATED"
	ActionAnalysisRun       = "CROSS_IMPACT_ANALYZED"
	ActionDocumentIngested  = "DOCUMENT_INGESTED"
	ActionDocumentUploaded  = "DOCUMENT_UPLOADED"
	ActionSourceToggled     = "SOURCE_TOGGLED"
	ActionUserAdded         = "USER_ADDED"
	ActionUserDeactivated   = "USER_DEACTIVATED"
	ActionUserRoleChanged   = "USER_ROLE_CHANGED"
)

// Resource types referenced by audit events.
const (
	ResourceGap        = "compliance_gap"
	ResourceTask       = "analysis_task"
	ResourceAmendment  = "policy_amendment"
	ResourceReport     = "executive_report"
	ResourceAnalysis   = "cross_impact_analysis"
	ResourceDocument   = "regulatory_document"
	ResourceSource     = "monitoring_source"
	ResourceUser       = "system_user"
	ResourceRegulation = "regulatory_item"
)

// AuditEvent is an immutable record of a user or system action.
type AuditEvent struct {
	ID           string         `gorm:"primaryKey" json:"id" yaml:"id"`
	Timestamp    time.Time      `gorm:"index" json:"timestamp" yaml:"timestamp"`
	UserID       string         `gorm:"index" json:"userId" yaml:"userId"`
	UserName     string         `json:"userName" yaml:"userName"`
	UserRole     string         `json:"userRole" yaml:"userRole"`
	Action       string         `gorm:"index" json:"action" yaml:"action"`
	ResourceType string         `json:"resourceType" yaml:"resourceType"`
	ResourceID   string         `json:"resourceId" yaml:"resourceId"`
	ResourceName string         `json:"resourceName" yaml:"resourceName"`
	Details      string         `json:"details" yaml:"details"`
	IPAddress    string         `json:"ipAddress" yaml:"ipAddress"`
	SessionID    string         `json:"sessionId" yaml:"sessionId"`
	Metadata     datatypes.JSON `json:"metadata,omitempty" yaml:"-"`
}
