package models

import "time"

// Navigation tabs of the workspace shell.
const (
	TabDashboard  = "dashboard"
	TabGaps       = "gaps"
	TabAmendments = "amendments"
	TabReports    = "reports"
	TabAnalysis   = "analysis"
	TabAudit      = "audit"
	TabUsers      = "users"
	TabIngestion  = "ingestion"
)

var tabMap = map[string]bool{
	TabDashboard:  true,
	TabGaps:       true,
	TabAmendments: true,
	TabReports:    true,
	TabAnalysis:   true,
	TabAudit:      true,
	TabUsers:      true,
	TabIngestion:  true,
}

// CardActionTabs maps a regulatory card button to the tab it opens.
var CardActionTabs = map[string]string{
	"view_gaps":       TabGaps,
	"amend_policies":  TabAmendments,
	"generate_report": TabReports,
}

// WorkspaceSession holds the navigation state shared between screens of one client.
type WorkspaceSession struct {
	SessionID            string    `gorm:"primaryKey" json:"sessionId"`
	ActiveTab            string    `json:"activeTab"`
	SelectedRegulationID string    `json:"selectedRegulationId,omitempty"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

// IsValidTab reports whether tab names a workspace screen.
func IsValidTab(tab string) bool {
	return tabMap[tab]
}
