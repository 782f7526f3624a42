package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/cntrlcomply/backend/models"
	"github.com/cntrlcomply/backend/notify"
	"github.com/cntrlcomply/backend/provider"
	"github.com/google/uuid"
	"github.com/sergi/go-diff/diffmatchpatch"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AmendmentConfig sets the review delay, drawn uniformly from [MinDelay, MaxDelay].
type AmendmentConfig struct {
	MinDelay time.Duration
	MaxDelay time.Duration
}

// DefaultAmendmentConfig waits between one and two seconds.
func DefaultAmendmentConfig() AmendmentConfig {
	return AmendmentConfig{MinDelay: time.Second, MaxDelay: 2 * time.Second}
}

// ScaleAmendmentDelay multiplies both bounds by scale.
func ScaleAmendmentDelay(cfg AmendmentConfig, scale float64) AmendmentConfig {
	cfg.MinDelay = time.Duration(float64(cfg.MinDelay) * scale)
	cfg.MaxDelay = time.Duration(float64(cfg.MaxDelay) * scale)
	return cfg
}

// AmendmentService drives the amendment workbench.
type AmendmentService struct {
	db       *gorm.DB
	log      *zap.SugaredLogger
	audit    *AuditService
	notifier notify.Notifier
	api      provider.Provider
	cfg      AmendmentConfig
}

func NewAmendmentService(db *gorm.DB, log *zap.SugaredLogger, audit *AuditService, notifier notify.Notifier, api provider.Provider, cfg AmendmentConfig) *AmendmentService {
	return &AmendmentService{db: db, log: log, audit: audit, notifier: notifier, api: api, cfg: cfg}
}

// ListAmendments returns the amendments of one regulation, or all when regulationID is empty.
func (s *AmendmentService) ListAmendments(ctx context.Context, regulationID string) ([]models.PolicyAmendment, error) {
	q := s.db.WithContext(ctx)
	if regulationID != "" {
		q = q.Where("regulation_id = ?", regulationID)
	}
	var out []models.PolicyAmendment
	if err := q.Order("created_at, id").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list amendments: %w", err)
	}
	return out, nil
}

func loadAmendment(tx *gorm.DB, id string) (*models.PolicyAmendment, error) {
	var a models.PolicyAmendment
	if err := tx.First(&a, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("amendment", id)
		}
		return nil, fmt.Errorf("failed to load amendment: %w", err)
	}
	return &a, nil
}

// Get returns one amendment.
func (s *AmendmentService) Get(ctx context.Context, id string) (*models.PolicyAmendment, error) {
	return loadAmendment(s.db.WithContext(ctx), id)
}

// wait blocks for the review delay or until ctx is done.
func (s *AmendmentService) wait(ctx context.Context) error {
	d := s.cfg.MinDelay
	if spread := s.cfg.MaxDelay - s.cfg.MinDelay; spread > 0 {
		d += time.Duration(rand.Int63n(int64(spread)))
	}
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// checkPending fails fast on unknown or already decided amendments, before the delay.
func (s *AmendmentService) checkPending(ctx context.Context, id string) error {
	a, err := loadAmendment(s.db.WithContext(ctx), id)
	if err != nil {
		return err
	}
	if a.IsTerminal() {
		return fmt.Errorf("amendment %s is %s: %w", id, a.Status, ErrInvalidTransition)
	}
	return nil
}

func (s *AmendmentService) decide(ctx context.Context, id, status, action, title, description string) (*models.PolicyAmendment, error) {
	if err := s.checkPending(ctx, id); err != nil {
		return nil, err
	}
	if err := s.wait(ctx); err != nil {
		return nil, err
	}

	var out *models.PolicyAmendment
	err := s.audit.Transaction(ctx, s.db, func(tx *gorm.DB) error {
		a, err := loadAmendment(tx, id)
		if err != nil {
			return err
		}
		if !models.CanTransition(a.Status, status) {
			return fmt.Errorf("amendment %s cannot move from %s to %s: %w", id, a.Status, status, ErrInvalidTransition)
		}
		actor := ActorFrom(ctx)
		decidedAt := now().UTC()
		a.Status = status
		a.DecidedBy = actor.UserID
		a.DecidedAt = &decidedAt
		if err := tx.Save(a).Error; err != nil {
			return fmt.Errorf("failed to update amendment: %w", err)
		}
		out = a
		return s.audit.RecordTx(ctx, tx, models.AuditEvent{
			Action:       action,
			ResourceType: models.ResourceAmendment,
			ResourceID:   a.ID,
			ResourceName: a.PolicySection,
			Details:      fmt.Sprintf("Policy amendment %s for %s", status, a.PolicySection),
			Metadata:     Metadata(map[string]interface{}{"regulationId": a.RegulationID, "gapId": a.GapID, "changeType": a.ChangeType}),
		})
	})
	if err != nil {
		return nil, err
	}
	s.notifier.Publish(notify.Success(title, description))
	return out, nil
}

// Approve moves a pending amendment to approved after the review delay.
func (s *AmendmentService) Approve(ctx context.Context, id string) (*models.PolicyAmendment, error) {
	return s.decide(ctx, id, models.AmendmentApproved, models.ActionAmendmentApproved,
		"Amendment approved", "The policy amendment has been approved")
}

// Reject moves a pending amendment to rejected after the review delay.
func (s *AmendmentService) Reject(ctx context.Context, id string) (*models.PolicyAmendment, error) {
	return s.decide(ctx, id, models.AmendmentRejected, models.ActionAmendmentRejected,
		"Amendment rejected", "The policy amendment has been rejected")
}

// SaveEdit replaces the proposed text of a pending amendment.
func (s *AmendmentService) SaveEdit(ctx context.Context, id, text string) (*models.PolicyAmendment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, toastInvalid(s.notifier, invalid("Missing information", "Proposed text cannot be empty"))
	}
	if err := s.checkPending(ctx, id); err != nil {
		return nil, err
	}
	if err := s.wait(ctx); err != nil {
		return nil, err
	}

	var out *models.PolicyAmendment
	err := s.audit.Transaction(ctx, s.db, func(tx *gorm.DB) error {
		a, err := loadAmendment(tx, id)
		if err != nil {
			return err
		}
		if a.IsTerminal() {
			return fmt.Errorf("amendment %s is %s: %w", id, a.Status, ErrInvalidTransition)
		}
		previous := a.ProposedText
		a.ProposedText = text
		a.Edited = true
		if err := tx.Save(a).Error; err != nil {
			return fmt.Errorf("failed to update amendment: %w", err)
		}
		out = a
		return s.audit.RecordTx(ctx, tx, models.AuditEvent{
			Action:       models.ActionAmendmentEdited,
			ResourceType: models.ResourceAmendment,
			ResourceID:   a.ID,
			ResourceName: a.PolicySection,
			Details:      "Edited proposed text for " + a.PolicySection,
			Metadata:     Metadata(map[string]interface{}{"previousLength": len(previous), "newLength": len(text)}),
		})
	})
	if err != nil {
		return nil, err
	}
	s.notifier.Publish(notify.Success("Amendment updated", "Your changes to the proposed text have been saved"))
	return out, nil
}

// DiffSegment is one run of an amendment diff.
type DiffSegment struct {
	Op   string `json:"op"`
	Text string `json:"text"`
}

// AmendmentDiff compares original and proposed policy text.
type AmendmentDiff struct {
	ID       string        `json:"id"`
	Segments []DiffSegment `json:"segments"`
	Patch    string        `json:"patch"`
}

var diffOps = map[diffmatchpatch.Operation]string{
	diffmatchpatch.DiffEqual:  "equal",
	diffmatchpatch.DiffInsert: "insert",
	diffmatchpatch.DiffDelete: "delete",
}

// Diff returns the word-level changes between original and proposed text.
func (s *AmendmentService) Diff(ctx context.Context, id string) (*AmendmentDiff, error) {
	a, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(a.OriginalText, a.ProposedText, false)
	diffs = dmp.DiffCleanupSemantic(diffs)

	out := &AmendmentDiff{ID: a.ID, Segments: make([]DiffSegment, 0, len(diffs))}
	for _, d := range diffs {
		out.Segments = append(out.Segments, DiffSegment{Op: diffOps[d.Type], Text: d.Text})
	}
	out.Patch = dmp.PatchToText(dmp.PatchMake(a.OriginalText, diffs))
	return out, nil
}

// GenerateForGap drafts amendments for a gap through the compliance API.
func (s *AmendmentService) GenerateForGap(ctx context.Context, gapID string) ([]models.PolicyAmendment, error) {
	gap, err := loadGap(s.db.WithContext(ctx), gapID)
	if err != nil {
		return nil, err
	}

	result, err := s.api.GenerateAmendments(ctx, gap.ID)
	if err != nil {
		s.log.Errorf("[AmendmentService] generation for %s failed: %v", gap.ID, err)
		s.notifier.Publish(notify.Failure("Amendment generation failed", "Failed to generate policy amendments"))
		return nil, fmt.Errorf("failed to generate amendments: %w", err)
	}

	created := make([]models.PolicyAmendment, 0, len(result.Amendments))
	err = s.audit.Transaction(ctx, s.db, func(tx *gorm.DB) error {
		for _, a := range result.Amendments {
			if a.ID == "" {
				a.ID = "amend-" + uuid.NewString()
			}
			a.RegulationID = gap.RegulationID
			a.GapID = gap.ID
			a.PolicySection = gap.PolicySection
			if gap.CurrentPolicy != "" {
				a.OriginalText = gap.CurrentPolicy
			}
			if !models.IsValidChangeType(a.ChangeType) {
				a.ChangeType = models.ChangeModification
			}
			a.Status = models.AmendmentPending
			if err := tx.Create(&a).Error; err != nil {
				return fmt.Errorf("failed to store amendment: %w", err)
			}
			if err := s.audit.RecordTx(ctx, tx, models.AuditEvent{
				Action:       models.ActionAmendmentDrafted,
				ResourceType: models.ResourceAmendment,
				ResourceID:   a.ID,
				ResourceName: a.PolicySection,
				Details:      "Drafted policy amendment for gap " + gap.ID,
				Metadata:     Metadata(map[string]interface{}{"gapId": gap.ID, "regulationId": gap.RegulationID}),
			}); err != nil {
				return err
			}
			created = append(created, a)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Publish(notify.Success("Amendments generated", fmt.Sprintf("%d draft amendments ready for review", len(created))))
	return created, nil
}
