package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/cntrlcomply/backend/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// WorkspaceService keeps per-session navigation state: the active tab and the
// regulation the gap, amendment and report screens operate on.
type WorkspaceService struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func NewWorkspaceService(db *gorm.DB, log *zap.SugaredLogger) *WorkspaceService {
	return &WorkspaceService{db: db, log: log}
}

// Get returns the session, creating it on the dashboard tab on first use.
func (s *WorkspaceService) Get(ctx context.Context, sessionID string) (*models.WorkspaceSession, error) {
	return s.get(ctx, s.db, sessionID)
}

func (s *WorkspaceService) get(ctx context.Context, tx *gorm.DB, sessionID string) (*models.WorkspaceSession, error) {
	if sessionID == "" {
		return nil, invalid("Missing session", "A session id is required")
	}
	session := models.WorkspaceSession{SessionID: sessionID}
	err := tx.WithContext(ctx).
		Where(models.WorkspaceSession{SessionID: sessionID}).
		Attrs(models.WorkspaceSession{ActiveTab: models.TabDashboard, UpdatedAt: now().UTC()}).
		FirstOrCreate(&session).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load workspace session: %w", err)
	}
	return &session, nil
}

// SetActiveTab switches the session to tab.
func (s *WorkspaceService) SetActiveTab(ctx context.Context, sessionID, tab string) (*models.WorkspaceSession, error) {
	if !models.IsValidTab(tab) {
		return nil, invalid("Invalid tab", fmt.Sprintf("%q is not a workspace tab", tab))
	}
	var out *models.WorkspaceSession
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		session, err := s.get(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		session.ActiveTab = tab
		session.UpdatedAt = now().UTC()
		if err := tx.Save(session).Error; err != nil {
			return fmt.Errorf("failed to save workspace session: %w", err)
		}
		out = session
		return nil
	})
	return out, err
}

// SelectRegulation handles a regulatory card action: it records the selected
// regulation and opens the tab the action belongs to, in one update.
func (s *WorkspaceService) SelectRegulation(ctx context.Context, sessionID, regulationID, action string) (*models.WorkspaceSession, error) {
	tab, ok := models.CardActionTabs[action]
	if !ok {
		return nil, invalid("Invalid action", fmt.Sprintf("%q is not a regulatory card action", action))
	}

	var out *models.WorkspaceSession
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var reg models.RegulatoryItem
		if err := tx.Select("id").First(&reg, "id = ?", regulationID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("regulation", regulationID)
			}
			return fmt.Errorf("failed to load regulation: %w", err)
		}
		session, err := s.get(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		session.SelectedRegulationID = regulationID
		session.ActiveTab = tab
		session.UpdatedAt = now().UTC()
		if err := tx.Save(session).Error; err != nil {
			return fmt.Errorf("failed to save workspace session: %w", err)
		}
		out = session
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Infof("[Workspace] session %s selected %s via %s", sessionID, regulationID, action)
	return out, nil
}
