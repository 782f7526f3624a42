package seed

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cntrlcomply/backend/models"
	"gopkg.in/yaml.v3"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

//go:embed seed.yaml
var fixtureYAML []byte

// auditFixture mirrors models.AuditEvent with metadata as a plain map.
type auditFixture struct {
	ID           string                 `yaml:"id"`
	Timestamp    time.Time              `yaml:"timestamp"`
	UserID       string                 `yaml:"userId"`
	UserName     string                 `yaml:"userName"`
	UserRole     string                 `yaml:"userRole"`
	Action       string                 `yaml:"action"`
	ResourceType string                 `yaml:"resourceType"`
	ResourceID   string                 `yaml:"resourceId"`
	ResourceName string                 `yaml:"resourceName"`
	Details      string                 `yaml:"details"`
	IPAddress    string                 `yaml:"ipAddress"`
	SessionID    string                 `yaml:"sessionId"`
	Metadata     map[string]interface{} `yaml:"metadata"`
}

// Fixtures is the full demo data set loaded at startup.
type Fixtures struct {
	RegulatoryItems   []models.RegulatoryItem   `yaml:"regulatoryItems"`
	Gaps              []models.ComplianceGap    `yaml:"gaps"`
	Amendments        []models.PolicyAmendment  `yaml:"amendments"`
	AnalysisDocuments []models.AnalysisDocument `yaml:"analysisDocuments"`
	Users             []models.SystemUser       `yaml:"users"`
	Roles             []models.UserRole         `yaml:"roles"`
	Sources           []models.MonitoringSource `yaml:"sources"`
	IngestedDocuments []models.IngestedDocument `yaml:"ingestedDocuments"`
	AuditEvents       []auditFixture            `yaml:"auditEvents"`
}

// Load parses the embedded fixtures.
func Load() (*Fixtures, error) {
	return Parse(fixtureYAML)
}

// Parse decodes a fixture document.
func Parse(data []byte) (*Fixtures, error) {
	var f Fixtures
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse seed fixtures: %w", err)
	}
	return &f, nil
}

// Raw returns the embedded fixture document.
func Raw() []byte {
	return fixtureYAML
}

// Audit converts the audit fixtures into models.
func (f *Fixtures) Audit() ([]models.AuditEvent, error) {
	events := make([]models.AuditEvent, 0, len(f.AuditEvents))
	for _, a := range f.AuditEvents {
		var meta datatypes.JSON
		if len(a.Metadata) > 0 {
			b, err := json.Marshal(a.Metadata)
			if err != nil {
				return nil, fmt.Errorf("audit event %s: %w", a.ID, err)
			}
			meta = datatypes.JSON(b)
		}
		events = append(events, models.AuditEvent{
			ID:           a.ID,
			Timestamp:    a.Timestamp,
			UserID:       a.UserID,
			UserName:     a.UserName,
			UserRole:     a.UserRole,
			Action:       a.Action,
			ResourceType: a.ResourceType,
			ResourceID:   a.ResourceID,
			ResourceName: a.ResourceName,
			Details:      a.Details,
			IPAddress:    a.IPAddress,
			SessionID:    a.SessionID,
			Metadata:     meta,
		})
	}
	return events, nil
}

// Apply inserts the fixtures. Rows that already exist are left untouched, so
// Apply can run against a database that was seeded before.
func Apply(db *gorm.DB, f *Fixtures) error {
	events, err := f.Audit()
	if err != nil {
		return err
	}
	for i := range f.Amendments {
		if f.Amendments[i].Status == "" {
			f.Amendments[i].Status = models.AmendmentPending
		}
	}

	return db.Transaction(func(tx *gorm.DB) error {
		batches := []struct {
			name  string
			n     int
			value interface{}
		}{
			{"regulatory items", len(f.RegulatoryItems), &f.RegulatoryItems},
			{"gaps", len(f.Gaps), &f.Gaps},
			{"amendments", len(f.Amendments), &f.Amendments},
			{"analysis documents", len(f.AnalysisDocuments), &f.AnalysisDocuments},
			{"users", len(f.Users), &f.Users},
			{"roles", len(f.Roles), &f.Roles},
			{"sources", len(f.Sources), &f.Sources},
			{"ingested documents", len(f.IngestedDocuments), &f.IngestedDocuments},
			{"audit events", len(events), &events},
		}
		for _, b := range batches {
			if b.n == 0 {
				continue
			}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(b.value).Error; err != nil {
				return fmt.Errorf("failed to seed %s: %w", b.name, err)
			}
		}
		return nil
	})
}
