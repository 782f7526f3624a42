package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/cntrlcomply/backend/models"
	"github.com/cntrlcomply/backend/search"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SearchService answers free-text queries across regulations and documents.
type SearchService struct {
	db    *gorm.DB
	log   *zap.SugaredLogger
	index search.Index
}

func NewSearchService(db *gorm.DB, log *zap.SugaredLogger, index search.Index) *SearchService {
	return &SearchService{db: db, log: log, index: index}
}

// Search returns matching documents. A blank query is a validation error.
func (s *SearchService) Search(ctx context.Context, query string) ([]search.Document, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, invalid("Missing query", "Please enter a search term")
	}
	docs, err := s.index.Search(ctx, query)
	if err != nil {
		s.log.Errorf("[SearchService] query %q failed: %v", query, err)
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	return docs, nil
}

// Reindex pushes every searchable record into the index and returns the count.
func (s *SearchService) Reindex(ctx context.Context) (int, error) {
	db := s.db.WithContext(ctx)
	var regs []models.RegulatoryItem
	if err := db.Find(&regs).Error; err != nil {
		return 0, fmt.Errorf("failed to load regulatory items: %w", err)
	}
	var ingested []models.IngestedDocument
	if err := db.Find(&ingested).Error; err != nil {
		return 0, fmt.Errorf("failed to load ingested documents: %w", err)
	}
	var analysis []models.AnalysisDocument
	if err := db.Find(&analysis).Error; err != nil {
		return 0, fmt.Errorf("failed to load analysis documents: %w", err)
	}

	docs := make([]search.Document, 0, len(regs)+len(ingested)+len(analysis))
	for _, r := range regs {
		docs = append(docs, search.FromRegulatoryItem(r))
	}
	for _, d := range ingested {
		docs = append(docs, search.FromIngested(d))
	}
	for _, d := range analysis {
		docs = append(docs, search.FromAnalysisDocument(d))
	}
	if err := s.index.Index(ctx, docs...); err != nil {
		return 0, fmt.Errorf("failed to index documents: %w", err)
	}
	s.log.Infof("[SearchService] indexed %d documents", len(docs))
	return len(docs), nil
}
