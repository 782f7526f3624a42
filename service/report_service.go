package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/cntrlcomply/backend/models"
	"github.com/cntrlcomply/backend/notify"
	"github.com/cntrlcomply/backend/provider"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Export formats.
const (
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
)

var reportChanges = []models.PolicyChange{
	{
		ID: "pc1", PolicyName: "AML/CFT Policy", SectionModified: "Customer Due Diligence",
		ChangeType:        models.ChangeModification,
		ChangeDescription: "Enhanced requirements for high-risk customers, including additional verification steps for politically exposed persons.",
		RegulatorySource:  "Section 4.2 of PSN01 Amendments", ImpactLevel: "high", DateModified: "2024-06-15",
	},
	{
		ID: "pc2", PolicyName: "AML/CFT Policy", SectionModified: "Transaction Monitoring",
		ChangeType:        models.ChangeAddition,
		ChangeDescription: "Added new thresholds for transaction monitoring alerts based on updated MAS guidance.",
		RegulatorySource:  "Section 5.3 of PSN01 Amendments", ImpactLevel: "medium", DateModified: "2024-06-15",
	},
	{
		ID: "pc3", PolicyName: "Technology Risk Management Policy", SectionModified: "Access Controls",
		ChangeType:        models.ChangeModification,
		ChangeDescription: "Updated password policy to align with new cybersecurity requirements.",
		RegulatorySource:  "Section 3.1 of TRM Guidelines", ImpactLevel: "medium", DateModified: "2024-06-14",
	},
	{
		ID: "pc4", PolicyName: "Data Protection Policy", SectionModified: "Data Retention",
		ChangeType:        models.ChangeAddition,
		ChangeDescription: "Added specified retention periods for transaction data in accordance with new requirements.",
		RegulatorySource:  "Section 8.2 of PSN01 Amendments", ImpactLevel: "high", DateModified: "2024-06-12",
	},
	{
		ID: "pc5", PolicyName: "Technology Risk Management Policy", SectionModified: "Incident Response",
		ChangeType:        models.ChangeModification,
		ChangeDescription: "Updated incident response procedures to include new notification timelines.",
		RegulatorySource:  "Section 7.4 of TRM Guidelines", ImpactLevel: "low", DateModified: "2024-06-10",
	},
}

var markdownReport = template.Must(template.New("report").Parse(`# Executive Report: {{.RegulationTitle}}

Generated: {{.GeneratedAt.Format "2006-01-02 15:04 MST"}}

## Summary

{{.Summary}}

| Total changes | High-impact changes |
|---------------|---------------------|
| {{.TotalChanges}} | {{.HighImpactChanges}} |

## Policy Changes
{{range .PolicyChanges}}
### {{.PolicyName}}: {{.SectionModified}}

- Impact: {{.ImpactLevel}}
- Change type: {{.ChangeType}}
- Source: {{.RegulatorySource}}
- Modified: {{.DateModified}}

{{.ChangeDescription}}
{{end}}`))

// ReportService builds executive summaries of the policy changes made for a regulation.
type ReportService struct {
	db       *gorm.DB
	log      *zap.SugaredLogger
	audit    *AuditService
	notifier notify.Notifier
	api      provider.Provider
}

func NewReportService(db *gorm.DB, log *zap.SugaredLogger, audit *AuditService, notifier notify.Notifier, api provider.Provider) *ReportService {
	return &ReportService{db: db, log: log, audit: audit, notifier: notifier, api: api}
}

func summarize(title string, changes []models.PolicyChange) (total, high int, summary string) {
	policies := make(map[string]bool)
	for _, c := range changes {
		policies[c.PolicyName] = true
		if c.ImpactLevel == "high" {
			high++
		}
	}
	total = len(changes)
	summary = fmt.Sprintf("This report summarizes changes made to company policies in response to %s. "+
		"A total of %d changes were made across %d policy documents, with %d high-impact changes requiring immediate attention.",
		title, total, len(policies), high)
	return total, high, summary
}

// Generate creates and stores the executive report for a regulation.
func (s *ReportService) Generate(ctx context.Context, regulationID string) (*models.ExecutiveReport, error) {
	var reg models.RegulatoryItem
	if err := s.db.WithContext(ctx).First(&reg, "id = ?", regulationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("regulation", regulationID)
		}
		return nil, fmt.Errorf("failed to load regulation: %w", err)
	}

	if _, err := s.api.GenerateExecutiveReport(ctx, reg.ID); err != nil {
		s.log.Errorf("[ReportService] report for %s failed: %v", reg.ID, err)
		s.notifier.Publish(notify.Failure("Report generation failed", "Failed to generate executive report"))
		return nil, fmt.Errorf("failed to generate executive report: %w", err)
	}

	changes := append([]models.PolicyChange(nil), reportChanges...)
	total, high, summary := summarize(reg.Title, changes)
	report := &models.ExecutiveReport{
		ID:                "report-" + uuid.NewString(),
		RegulationID:      reg.ID,
		RegulationTitle:   reg.Title,
		Summary:           summary,
		TotalChanges:      total,
		HighImpactChanges: high,
		PolicyChanges:     changes,
		GeneratedAt:       now().UTC(),
	}

	err := s.audit.Transaction(ctx, s.db, func(tx *gorm.DB) error {
		if err := tx.Create(report).Error; err != nil {
			return fmt.Errorf("failed to store report: %w", err)
		}
		return s.audit.RecordTx(ctx, tx, models.AuditEvent{
			Action:       models.ActionReportGenerated,
			ResourceType: models.ResourceReport,
			ResourceID:   report.ID,
			ResourceName: reg.Title + " Impact Summary Report",
			Details:      "Generated executive summary report",
			Metadata:     Metadata(map[string]interface{}{"reportType": "executive", "regulationId": reg.ID, "policyChanges": total}),
		})
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Publish(notify.Success("Report generated successfully", "Executive summary is ready for review and export"))
	return report, nil
}

// Get returns a stored report.
func (s *ReportService) Get(ctx context.Context, id string) (*models.ExecutiveReport, error) {
	var r models.ExecutiveReport
	if err := s.db.WithContext(ctx).First(&r, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("report", id)
		}
		return nil, fmt.Errorf("failed to load report: %w", err)
	}
	return &r, nil
}

// List returns the reports of one regulation, or all reports, newest first.
func (s *ReportService) List(ctx context.Context, regulationID string) ([]models.ExecutiveReport, error) {
	q := s.db.WithContext(ctx)
	if regulationID != "" {
		q = q.Where("regulation_id = ?", regulationID)
	}
	var out []models.ExecutiveReport
	if err := q.Order("generated_at DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	return out, nil
}

// Export renders a report. It returns the body and its content type.
func (s *ReportService) Export(ctx context.Context, id, format string) ([]byte, string, error) {
	format = strings.ToLower(format)
	if format == "" || format == "md" {
		format = FormatMarkdown
	}
	if format != FormatMarkdown && format != FormatJSON {
		return nil, "", invalid("Unsupported format", "Reports can be exported as markdown or json")
	}

	r, err := s.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}

	if format == FormatJSON {
		b, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return nil, "", fmt.Errorf("failed to encode report: %w", err)
		}
		return b, "application/json", nil
	}

	var buf bytes.Buffer
	if err := markdownReport.Execute(&buf, r); err != nil {
		return nil, "", fmt.Errorf("failed to render report: %w", err)
	}
	return buf.Bytes(), "text/markdown; charset=utf-8", nil
}
