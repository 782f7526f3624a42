package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/cntrlcomply/backend/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RegulatoryFilter narrows the regulatory horizon. Empty fields match everything.
type RegulatoryFilter struct {
	Status   string `form:"status"`
	Priority string `form:"priority"`
	Type     string `form:"type"`
}

// RegulatoryView is a regulatory item as shown on a dashboard card.
type RegulatoryView struct {
	models.RegulatoryItem
	DaysUntilClosing int `json:"daysUntilClosing"`
}

// DashboardStats are recomputed from the stored records on every call.
type DashboardStats struct {
	TotalDocuments   int64 `json:"totalDocuments"`
	PendingGaps      int64 `json:"pendingGaps"`
	CompletedReviews int64 `json:"completedReviews"`
	UrgentItems      int64 `json:"urgentItems"`
	GapsFound        int64 `json:"gapsFound"`
	CompletionRate   int   `json:"completionRate"`
}

// Dashboard is the landing screen payload.
type Dashboard struct {
	Stats DashboardStats   `json:"stats"`
	Items []RegulatoryView `json:"items"`
}

type RegulatoryService struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func NewRegulatoryService(db *gorm.DB, log *zap.SugaredLogger) *RegulatoryService {
	return &RegulatoryService{db: db, log: log}
}

func view(item models.RegulatoryItem) RegulatoryView {
	days, err := models.DaysUntil(item.ClosingDate, now())
	if err != nil {
		days = 0
	}
	return RegulatoryView{RegulatoryItem: item, DaysUntilClosing: days}
}

// List returns regulatory items ordered by closing date.
func (s *RegulatoryService) List(ctx context.Context, filter RegulatoryFilter) ([]RegulatoryView, error) {
	q := s.db.WithContext(ctx)
	if filter.Status != "" {
		if !models.IsValidRegulatoryStatus(filter.Status) {
			return nil, invalid("Invalid status", fmt.Sprintf("%q is not a regulatory status", filter.Status))
		}
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Priority != "" {
		if !models.IsValidPriority(filter.Priority) {
			return nil, invalid("Invalid priority", fmt.Sprintf("%q is not a priority", filter.Priority))
		}
		q = q.Where("priority = ?", filter.Priority)
	}
	if filter.Type != "" {
		q = q.Where("type = ?", filter.Type)
	}

	var items []models.RegulatoryItem
	if err := q.Order("closing_date, id").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to list regulatory items: %w", err)
	}
	views := make([]RegulatoryView, 0, len(items))
	for _, item := range items {
		views = append(views, view(item))
	}
	return views, nil
}

// Get returns one regulatory item.
func (s *RegulatoryService) Get(ctx context.Context, id string) (*RegulatoryView, error) {
	var item models.RegulatoryItem
	if err := s.db.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("regulation", id)
		}
		return nil, fmt.Errorf("failed to load regulation: %w", err)
	}
	v := view(item)
	return &v, nil
}

// Stats computes the dashboard counters.
func (s *RegulatoryService) Stats(ctx context.Context) (*DashboardStats, error) {
	db := s.db.WithContext(ctx)
	var st DashboardStats

	if err := db.Model(&models.RegulatoryItem{}).Count(&st.TotalDocuments).Error; err != nil {
		return nil, fmt.Errorf("failed to count regulatory items: %w", err)
	}
	if err := db.Model(&models.ComplianceGap{}).Where("acknowledged = ?", false).Count(&st.PendingGaps).Error; err != nil {
		return nil, fmt.Errorf("failed to count pending gaps: %w", err)
	}
	if err := db.Model(&models.RegulatoryItem{}).Where("status = ?", models.StatusCompleted).Count(&st.CompletedReviews).Error; err != nil {
		return nil, fmt.Errorf("failed to count completed reviews: %w", err)
	}
	if err := db.Model(&models.RegulatoryItem{}).Where("priority = ?", models.PriorityUrgent).Count(&st.UrgentItems).Error; err != nil {
		return nil, fmt.Errorf("failed to count urgent items: %w", err)
	}
	if err := db.Model(&models.RegulatoryItem{}).Select("COALESCE(SUM(gaps_found), 0)").Scan(&st.GapsFound).Error; err != nil {
		return nil, fmt.Errorf("failed to sum gaps found: %w", err)
	}
	st.CompletionRate = models.CompletionRate(int(st.CompletedReviews), int(st.TotalDocuments))
	return &st, nil
}

// Dashboard returns the stats and every regulatory item.
func (s *RegulatoryService) Dashboard(ctx context.Context) (*Dashboard, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return nil, err
	}
	items, err := s.List(ctx, RegulatoryFilter{})
	if err != nil {
		return nil, err
	}
	return &Dashboard{Stats: *stats, Items: items}, nil
}
