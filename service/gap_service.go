package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/cntrlcomply/backend/models"
	"github.com/cntrlcomply/backend/notify"
	"github.com/cntrlcomply/backend/provider"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AssignRequest is the task assignment form.
type AssignRequest struct {
	AssigneeID string `json:"assigneeId"`
	DueDate    string `json:"dueDate"`
	Priority   string `json:"priority"`
	Notes      string `json:"notes"`
}

var assignmentPriorities = map[string]bool{
	models.PriorityHigh:   true,
	models.PriorityMedium: true,
	models.PriorityLow:    true,
}

var analystRoles = []string{models.RoleSeniorAnalyst, models.RoleJuniorAnalyst}

// GapService reviews detected compliance gaps.
type GapService struct {
	db       *gorm.DB
	log      *zap.SugaredLogger
	audit    *AuditService
	notifier notify.Notifier
	api      provider.Provider
}

func NewGapService(db *gorm.DB, log *zap.SugaredLogger, audit *AuditService, notifier notify.Notifier, api provider.Provider) *GapService {
	return &GapService{db: db, log: log, audit: audit, notifier: notifier, api: api}
}

// ListGaps returns the gaps of one regulation, or every gap when regulationID is empty.
func (s *GapService) ListGaps(ctx context.Context, regulationID string) ([]models.ComplianceGap, error) {
	q := s.db.WithContext(ctx)
	if regulationID != "" {
		q = q.Where("regulation_id = ?", regulationID)
	}
	var gaps []models.ComplianceGap
	if err := q.Order("id").Find(&gaps).Error; err != nil {
		return nil, fmt.Errorf("failed to list gaps: %w", err)
	}
	return gaps, nil
}

func loadGap(tx *gorm.DB, id string) (*models.ComplianceGap, error) {
	var gap models.ComplianceGap
	if err := tx.First(&gap, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("gap", id)
		}
		return nil, fmt.Errorf("failed to load gap: %w", err)
	}
	return &gap, nil
}

// GetGap returns one gap.
func (s *GapService) GetGap(ctx context.Context, id string) (*models.ComplianceGap, error) {
	return loadGap(s.db.WithContext(ctx), id)
}

// AcknowledgeGap marks a gap acknowledged. Acknowledging twice is a no-op and
// only the first call is audited.
func (s *GapService) AcknowledgeGap(ctx context.Context, id string) (*models.ComplianceGap, error) {
	var gap *models.ComplianceGap
	err := s.audit.Transaction(ctx, s.db, func(tx *gorm.DB) error {
		var err error
		if gap, err = loadGap(tx, id); err != nil {
			return err
		}
		if gap.Acknowledged {
			return nil
		}
		gap.Acknowledged = true
		if err := tx.Model(gap).Update("acknowledged", true).Error; err != nil {
			return fmt.Errorf("failed to acknowledge gap: %w", err)
		}
		return s.audit.RecordTx(ctx, tx, models.AuditEvent{
			Action:       models.ActionGapAcknowledged,
			ResourceType: models.ResourceGap,
			ResourceID:   gap.ID,
			ResourceName: gap.Description,
			Details:      "Acknowledged compliance gap in " + gap.PolicySection,
			Metadata:     Metadata(map[string]interface{}{"regulationId": gap.RegulationID, "severity": gap.Severity}),
		})
	})
	if err != nil {
		return nil, err
	}
	return gap, nil
}

// DismissGap deletes exactly one gap.
func (s *GapService) DismissGap(ctx context.Context, id string) error {
	err := s.audit.Transaction(ctx, s.db, func(tx *gorm.DB) error {
		gap, err := loadGap(tx, id)
		if err != nil {
			return err
		}
		res := tx.Delete(&models.ComplianceGap{}, "id = ?", id)
		if res.Error != nil {
			return fmt.Errorf("failed to dismiss gap: %w", res.Error)
		}
		if res.RowsAffected != 1 {
			return notFound("gap", id)
		}
		return s.audit.RecordTx(ctx, tx, models.AuditEvent{
			Action:       models.ActionGapDismissed,
			ResourceType: models.ResourceGap,
			ResourceID:   gap.ID,
			ResourceName: gap.Description,
			Details:      "Dismissed compliance gap in " + gap.PolicySection,
			Metadata:     Metadata(map[string]interface{}{"regulationId": gap.RegulationID}),
		})
	})
	if err != nil {
		return err
	}
	s.log.Infof("[GapService] dismissed gap %s", id)
	return nil
}

// Analysts returns the active users a gap can be assigned to.
func (s *GapService) Analysts(ctx context.Context) ([]models.SystemUser, error) {
	var users []models.SystemUser
	err := s.db.WithContext(ctx).
		Where("role IN ? AND status = ?", analystRoles, models.UserActive).
		Order("name").Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list analysts: %w", err)
	}
	return users, nil
}

func missingAssignment() error {
	return invalid("Missing information", "Please select an assignee and due date")
}

// AssignGap hands a gap to an analyst, replacing any earlier assignment.
func (s *GapService) AssignGap(ctx context.Context, id string, req AssignRequest) (*models.ComplianceGap, error) {
	if req.AssigneeID == "" || req.DueDate == "" {
		return nil, toastInvalid(s.notifier, missingAssignment())
	}
	if _, err := models.DaysUntil(req.DueDate, now()); err != nil {
		return nil, toastInvalid(s.notifier, missingAssignment())
	}
	if req.Priority == "" {
		req.Priority = models.PriorityMedium
	}
	if !assignmentPriorities[req.Priority] {
		return nil, toastInvalid(s.notifier, invalid("Invalid priority", "Priority must be high, medium or low"))
	}

	var gap *models.ComplianceGap
	err := s.audit.Transaction(ctx, s.db, func(tx *gorm.DB) error {
		var analyst models.SystemUser
		err := tx.Where("id = ? AND role IN ? AND status = ?", req.AssigneeID, analystRoles, models.UserActive).
			First(&analyst).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return missingAssignment()
		}
		if err != nil {
			return fmt.Errorf("failed to load analyst: %w", err)
		}

		if gap, err = loadGap(tx, id); err != nil {
			return err
		}
		assignedAt := now().UTC()
		gap.Assignment = models.TaskAssignment{
			AssigneeID:   analyst.ID,
			AssigneeName: analyst.Name,
			DueDate:      req.DueDate,
			Priority:     req.Priority,
			Notes:        req.Notes,
			AssignedAt:   &assignedAt,
		}
		if err := tx.Save(gap).Error; err != nil {
			return fmt.Errorf("failed to assign gap: %w", err)
		}

		actor := ActorFrom(ctx)
		return s.audit.RecordTx(ctx, tx, models.AuditEvent{
			Action:       models.ActionTaskAssigned,
			ResourceType: models.ResourceTask,
			ResourceID:   gap.ID,
			ResourceName: gap.Description,
			Details:      fmt.Sprintf("Task assigned to %s by %s with %s priority", analyst.Name, actor.UserName, req.Priority),
			Metadata: Metadata(map[string]interface{}{
				"assignedBy": actor.UserID,
				"assignee":   analyst.ID,
				"priority":   req.Priority,
				"dueDate":    req.DueDate,
			}),
		})
	})
	if err != nil {
		return nil, toastInvalid(s.notifier, err)
	}

	s.notifier.Publish(notify.Success("Task assigned successfully", "Gap analysis assigned to "+gap.Assignment.AssigneeName))
	return gap, nil
}

// AnalyzeRegulation asks the compliance API for gaps in a regulation and
// stores those whose policy section is not already flagged.
func (s *GapService) AnalyzeRegulation(ctx context.Context, regulationID string) ([]models.ComplianceGap, error) {
	var reg models.RegulatoryItem
	if err := s.db.WithContext(ctx).First(&reg, "id = ?", regulationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("regulation", regulationID)
		}
		return nil, fmt.Errorf("failed to load regulation: %w", err)
	}

	result, err := s.api.AnalyzeDocument(ctx, reg.ID, reg.Content)
	if err != nil {
		s.log.Errorf("[GapService] analysis of %s failed: %v", reg.ID, err)
		s.notifier.Publish(notify.Failure("Analysis failed", "Failed to analyze document for compliance gaps"))
		return nil, fmt.Errorf("failed to analyze regulation: %w", err)
	}

	added := []models.ComplianceGap{}
	err = s.audit.Transaction(ctx, s.db, func(tx *gorm.DB) error {
		for _, g := range result.Gaps {
			var n int64
			if err := tx.Model(&models.ComplianceGap{}).
				Where("regulation_id = ? AND policy_section = ?", reg.ID, g.PolicySection).
				Count(&n).Error; err != nil {
				return fmt.Errorf("failed to check existing gaps: %w", err)
			}
			if n > 0 {
				continue
			}
			g.RegulationID = reg.ID
			if err := tx.Select("id").First(&models.ComplianceGap{}, "id = ?", g.ID).Error; err == nil || g.ID == "" {
				g.ID = "gap-" + uuid.NewString()
			}
			if err := tx.Create(&g).Error; err != nil {
				return fmt.Errorf("failed to store gap: %w", err)
			}
			if err := s.audit.RecordTx(WithActor(ctx, SystemActor), tx, models.AuditEvent{
				Action:       models.ActionGapDetected,
				ResourceType: models.ResourceGap,
				ResourceID:   g.ID,
				ResourceName: g.Description,
				Details:      "Automated gap detection found policy mismatch with " + reg.Title,
				Metadata:     Metadata(map[string]interface{}{"confidence": g.Confidence, "regulationId": reg.ID}),
			}); err != nil {
				return err
			}
			added = append(added, g)
		}

		var total int64
		if err := tx.Model(&models.ComplianceGap{}).Where("regulation_id = ?", reg.ID).Count(&total).Error; err != nil {
			return fmt.Errorf("failed to count gaps: %w", err)
		}
		updates := map[string]interface{}{"gaps_found": total}
		if total > 0 && reg.Status != models.StatusCompleted {
			updates["status"] = models.StatusGapsIdentified
		}
		return tx.Model(&reg).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Publish(notify.Success("Analysis complete", fmt.Sprintf("%d new compliance gaps identified", len(added))))
	return added, nil
}
