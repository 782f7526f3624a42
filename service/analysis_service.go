package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/cntrlcomply/backend/models"
	"github.com/cntrlcomply/backend/notify"
	"github.com/cntrlcomply/backend/provider"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// The canned cross-impact outcome. It does not depend on the documents selected.
var (
	crossImpactLevel = "High"

	crossImpactPolicies = []string{
		"1.1.a Customer identification procedures",
		"1.2.a Transaction monitoring systems",
		"1.3.a Risk assessment frameworks",
	}
	crossImpactRecommendations = []string{
		"1.1.b Update customer onboarding procedures to include enhanced due diligence",
		"1.2.b Implement real-time transaction monitoring for high-risk customers",
		"1.3.b Review and update risk scoring algorithms",
	}
	crossImpactConflicts = []string{
		"1.1.c Conflicting timeline requirements between PSN01 and internal policy",
		"1.2.c Technology requirements may exceed current system capabilities",
		"1.3.c Risk scoring thresholds diverge from the updated MAS risk assessment guidance",
	}
)

// DocumentContent is the full text of an analysis document.
type DocumentContent struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Type    string `json:"type"`
	Content string `json:"content"`
}

// AnalysisService runs cross-impact analysis over regulations and policies.
type AnalysisService struct {
	db       *gorm.DB
	log      *zap.SugaredLogger
	audit    *AuditService
	notifier notify.Notifier
	api      provider.Provider
}

func NewAnalysisService(db *gorm.DB, log *zap.SugaredLogger, audit *AuditService, notifier notify.Notifier, api provider.Provider) *AnalysisService {
	return &AnalysisService{db: db, log: log, audit: audit, notifier: notifier, api: api}
}

// ListDocuments returns the selectable documents. docType "regulation" returns
// everything that is not internal policy, "policy" only internal policy.
func (s *AnalysisService) ListDocuments(ctx context.Context, docType string) ([]models.AnalysisDocument, error) {
	var docs []models.AnalysisDocument
	if err := s.db.WithContext(ctx).Order("id").Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("failed to list analysis documents: %w", err)
	}
	switch docType {
	case "":
		return docs, nil
	case models.DocTypeRegulation, models.DocTypePolicy:
		wantPolicy := docType == models.DocTypePolicy
		out := make([]models.AnalysisDocument, 0, len(docs))
		for _, d := range docs {
			if d.IsPolicy() == wantPolicy {
				out = append(out, d)
			}
		}
		return out, nil
	default:
		return nil, invalid("Invalid document type", "Document type must be regulation or policy")
	}
}

// GetDocumentContent returns the text of one document.
func (s *AnalysisService) GetDocumentContent(ctx context.Context, id string) (*DocumentContent, error) {
	var d models.AnalysisDocument
	if err := s.db.WithContext(ctx).First(&d, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("document", id)
		}
		return nil, fmt.Errorf("failed to load document: %w", err)
	}
	return &DocumentContent{ID: d.ID, Title: d.Title, Type: d.Type, Content: d.Content}, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// RunCrossImpact analyzes the selected documents against each other. At least
// two distinct documents are required.
func (s *AnalysisService) RunCrossImpact(ctx context.Context, documentIDs []string) (*models.CrossImpactRun, error) {
	ids := dedupe(documentIDs)
	if len(ids) < 2 {
		s.notifier.Publish(notify.Failure("Selection Required", "Please select at least 2 documents for cross-impact analysis"))
		return nil, ErrInsufficientSelection
	}

	var docs []models.AnalysisDocument
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("failed to load documents: %w", err)
	}
	if len(docs) != len(ids) {
		found := make(map[string]bool, len(docs))
		for _, d := range docs {
			found[d.ID] = true
		}
		for _, id := range ids {
			if !found[id] {
				return nil, notFound("document", id)
			}
		}
	}

	var regulationIDs, policyIDs []string
	for _, d := range docs {
		if d.IsPolicy() {
			policyIDs = append(policyIDs, d.ID)
		} else {
			regulationIDs = append(regulationIDs, d.ID)
		}
	}
	sort.Strings(regulationIDs)
	sort.Strings(policyIDs)

	if _, err := s.api.AnalyzeCrossImpact(ctx, regulationIDs, policyIDs); err != nil {
		s.log.Errorf("[AnalysisService] cross-impact failed for %v: %v", ids, err)
		s.notifier.Publish(notify.Failure("Analysis Failed", "Failed to complete cross-impact analysis"))
		return nil, fmt.Errorf("failed to run cross-impact analysis: %w", err)
	}

	run := &models.CrossImpactRun{
		ID:               "run-" + uuid.NewString(),
		DocumentIDs:      datatypes.JSONSlice[string](ids),
		ImpactLevel:      crossImpactLevel,
		AffectedPolicies: append(datatypes.JSONSlice[string]{}, crossImpactPolicies...),
		Recommendations:  append(datatypes.JSONSlice[string]{}, crossImpactRecommendations...),
		Conflicts:        append(datatypes.JSONSlice[string]{}, crossImpactConflicts...),
		TotalConflicts:   len(crossImpactConflicts),
		CreatedAt:        now().UTC(),
	}

	err := s.audit.Transaction(ctx, s.db, func(tx *gorm.DB) error {
		if err := tx.Create(run).Error; err != nil {
			return fmt.Errorf("failed to store analysis run: %w", err)
		}
		return s.audit.RecordTx(ctx, tx, models.AuditEvent{
			Action:       models.ActionAnalysisRun,
			ResourceType: models.ResourceAnalysis,
			ResourceID:   run.ID,
			ResourceName: fmt.Sprintf("Cross-impact analysis of %d documents", len(ids)),
			Details:      fmt.Sprintf("Found %d conflicts, impact level %s", run.TotalConflicts, run.ImpactLevel),
			Metadata:     Metadata(map[string]interface{}{"regulationIds": regulationIDs, "policyIds": policyIDs}),
		})
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Publish(notify.Success("Analysis Complete", "Cross-impact analysis has been completed successfully"))
	return run, nil
}

// ListRuns returns stored analyses, newest first.
func (s *AnalysisService) ListRuns(ctx context.Context) ([]models.CrossImpactRun, error) {
	var runs []models.CrossImpactRun
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("failed to list analysis runs: %w", err)
	}
	return runs, nil
}
