package services

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/cntrlcomply/backend/models"
	"github.com/cntrlcomply/backend/provider"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Time ranges accepted by the audit filter.
var auditRanges = map[string]time.Duration{
	"1d":  24 * time.Hour,
	"24h": 24 * time.Hour,
	"7d":  7 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
	"90d": 90 * 24 * time.Hour,
	"all": 0,
	"":    0,
}

// AuditFilter narrows an audit listing. Empty fields match everything.
type AuditFilter struct {
	Action       string `form:"action"`
	UserID       string `form:"userId"`
	ResourceType string `form:"resourceType"`
	Range        string `form:"range"`
	Limit        int    `form:"limit"`
}

// AuditService records and queries the audit trail.
type AuditService struct {
	db     *gorm.DB
	log    *zap.SugaredLogger
	remote provider.Provider

	mu sync.Mutex
	// events awaiting commit, keyed by the open transaction's connection
	pending map[gorm.ConnPool][]models.AuditEvent
}

func NewAuditService(db *gorm.DB, log *zap.SugaredLogger) *AuditService {
	return &AuditService{db: db, log: log, pending: make(map[gorm.ConnPool][]models.AuditEvent)}
}

// Transaction runs fn in a transaction on db. Events recorded with RecordTx
// inside fn are mirrored only after the transaction commits; a rollback
// discards them.
func (s *AuditService) Transaction(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	var key gorm.ConnPool
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		key = tx.Statement.ConnPool
		s.mu.Lock()
		s.pending[key] = nil
		s.mu.Unlock()
		return fn(tx)
	})

	s.mu.Lock()
	events := s.pending[key]
	delete(s.pending, key)
	s.mu.Unlock()

	if err == nil {
		for _, e := range events {
			s.mirror(e)
		}
	}
	return err
}

// MirrorTo forwards every recorded event to the compliance API. Forwarding
// failures are logged and never reach the caller.
func (s *AuditService) MirrorTo(p provider.Provider) {
	s.remote = p
}

// Record stores an event, filling id, timestamp and actor fields from ctx.
func (s *AuditService) Record(ctx context.Context, event models.AuditEvent) error {
	return s.RecordTx(ctx, s.db, event)
}

// RecordTx stores an event using tx, so it commits or rolls back with the change it describes.
func (s *AuditService) RecordTx(ctx context.Context, tx *gorm.DB, event models.AuditEvent) error {
	actor := ActorFrom(ctx)
	if event.ID == "" {
		event.ID = "ae-" + uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = now().UTC()
	}
	if event.UserID == "" {
		event.UserID = actor.UserID
		event.UserName = actor.UserName
		event.UserRole = actor.UserRole
	}
	if event.IPAddress == "" {
		event.IPAddress = actor.IPAddress
	}
	if event.SessionID == "" {
		event.SessionID = actor.SessionID
	}

	if err := tx.WithContext(ctx).Create(&event).Error; err != nil {
		s.log.Errorf("[Audit] failed to record %s on %s: %v", event.Action, event.ResourceID, err)
		return fmt.Errorf("failed to record audit event: %w", err)
	}
	s.log.Infof("[Audit] %s %s/%s by %s", event.Action, event.ResourceType, event.ResourceID, event.UserID)

	if s.remote != nil {
		s.mu.Lock()
		queued, inTx := s.pending[tx.Statement.ConnPool]
		if inTx {
			s.pending[tx.Statement.ConnPool] = append(queued, event)
		}
		s.mu.Unlock()
		if !inTx {
			s.mirror(event)
		}
	}
	return nil
}

// mirror forwards e to the compliance API in the background.
func (s *AuditService) mirror(e models.AuditEvent) {
	if s.remote == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := s.remote.LogAuditEvent(ctx, e); err != nil {
			s.log.Warnf("[Audit] Failed to log audit event: %v", err)
		}
	}()
}

// Metadata marshals a map into the event metadata column.
func Metadata(m map[string]interface{}) datatypes.JSON {
	if len(m) == 0 {
		return nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	return datatypes.JSON(b)
}

func (s *AuditService) query(ctx context.Context, filter AuditFilter) (*gorm.DB, error) {
	window, ok := auditRanges[filter.Range]
	if !ok {
		return nil, invalid("Invalid time range", "Choose one of 1d, 7d, 30d, 90d or all")
	}
	q := s.db.WithContext(ctx).Model(&models.AuditEvent{})
	if filter.Action != "" && filter.Action != "all" {
		q = q.Where("action = ?", filter.Action)
	}
	if filter.UserID != "" {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if filter.ResourceType != "" {
		q = q.Where("resource_type = ?", filter.ResourceType)
	}
	if window > 0 {
		q = q.Where("timestamp >= ?", now().UTC().Add(-window))
	}
	return q, nil
}

// List returns matching events, newest first.
func (s *AuditService) List(ctx context.Context, filter AuditFilter) ([]models.AuditEvent, error) {
	q, err := s.query(ctx, filter)
	if err != nil {
		return nil, err
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	var events []models.AuditEvent
	if err := q.Order("timestamp DESC").Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	return events, nil
}

var auditCSVHeader = []string{
	"id", "timestamp", "user_id", "user_name", "user_role", "action",
	"resource_type", "resource_id", "resource_name", "details",
	"ip_address", "session_id", "metadata",
}

// ExportCSV writes matching events to w as CSV.
func (s *AuditService) ExportCSV(ctx context.Context, w io.Writer, filter AuditFilter) (int, error) {
	events, err := s.List(ctx, filter)
	if err != nil {
		return 0, err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(auditCSVHeader); err != nil {
		return 0, fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, e := range events {
		row := []string{
			e.ID, e.Timestamp.UTC().Format(time.RFC3339), e.UserID, e.UserName, e.UserRole,
			e.Action, e.ResourceType, e.ResourceID, e.ResourceName, e.Details,
			e.IPAddress, e.SessionID, string(e.Metadata),
		}
		if err := cw.Write(row); err != nil {
			return 0, fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, fmt.Errorf("failed to flush csv: %w", err)
	}
	s.log.Infof("[Audit] exported %d events", len(events))
	return len(events), nil
}

// AuditSummary counts events per action.
type AuditSummary struct {
	Total    int64            `json:"total"`
	ByAction map[string]int64 `json:"byAction"`
}

// Summary counts matching events grouped by action.
func (s *AuditService) Summary(ctx context.Context, filter AuditFilter) (*AuditSummary, error) {
	filter.Action = ""
	q, err := s.query(ctx, filter)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		Action string
		Count  int64
	}
	if err := q.Select("action, COUNT(*) AS count").Group("action").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to summarize audit events: %w", err)
	}
	out := &AuditSummary{ByAction: make(map[string]int64, len(rows))}
	for _, r := range rows {
		out.ByAction[r.Action] = r.Count
		out.Total += r.Count
	}
	return out, nil
}
