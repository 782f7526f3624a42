package services

import (
	"context"
	"sync"
	"testing"

	"github.com/cntrlcomply/backend/initializers"
	"github.com/cntrlcomply/backend/models"
	"github.com/cntrlcomply/backend/notify"
	"github.com/cntrlcomply/backend/provider"
	"github.com/cntrlcomply/backend/seed"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MockProvider implements provider.Provider for testing
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) AnalyzeDocument(ctx context.Context, documentID, content string) (*provider.AnalysisResult, error) {
	args := m.Called(ctx, documentID, content)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.AnalysisResult), args.Error(1)
}

func (m *MockProvider) IngestDocument(ctx context.Context, url string, metadata map[string]string) (*provider.IngestResult, error) {
	args := m.Called(ctx, url, metadata)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.IngestResult), args.Error(1)
}

func (m *MockProvider) GenerateAmendments(ctx context.Context, gapID string) (*provider.AmendmentResult, error) {
	args := m.Called(ctx, gapID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.AmendmentResult), args.Error(1)
}

func (m *MockProvider) ApproveAmendment(ctx context.Context, amendmentID string) (*provider.Ack, error) {
	args := m.Called(ctx, amendmentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.Ack), args.Error(1)
}

func (m *MockProvider) GenerateExecutiveReport(ctx context.Context, documentID string) (*provider.ReportResult, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.ReportResult), args.Error(1)
}

func (m *MockProvider) AnalyzeCrossImpact(ctx context.Context, documentIDs, policyIDs []string) (*provider.CrossImpactResult, error) {
	args := m.Called(ctx, documentIDs, policyIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.CrossImpactResult), args.Error(1)
}

func (m *MockProvider) ScanRegulatorySource(ctx context.Context, sourceURL string) (*provider.ScanResult, error) {
	args := m.Called(ctx, sourceURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.ScanResult), args.Error(1)
}

func (m *MockProvider) CreateTask(ctx context.Context, task provider.TaskRequest) (*provider.TaskResult, error) {
	args := m.Called(ctx, task)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.TaskResult), args.Error(1)
}

func (m *MockProvider) LogAuditEvent(ctx context.Context, event models.AuditEvent) (*provider.Ack, error) {
	args := m.Called(ctx, event)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.Ack), args.Error(1)
}

func (m *MockProvider) UploadDocument(ctx context.Context, req provider.UploadRequest) (*provider.UploadResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.UploadResult), args.Error(1)
}

func (m *MockProvider) GetUploadStatus(ctx context.Context, documentID string) (*provider.UploadStatus, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.UploadStatus), args.Error(1)
}

func (m *MockProvider) GetUploadedDocuments(ctx context.Context, documentIDs []string) ([]provider.UploadStatus, error) {
	args := m.Called(ctx, documentIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]provider.UploadStatus), args.Error(1)
}

// MockStore implements storage.ObjectStore for testing
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	args := m.Called(ctx, key, data, contentType)
	return args.String(0), args.Error(1)
}

// toastRecorder collects published toasts.
type toastRecorder struct {
	mu     sync.Mutex
	toasts []notify.Toast
}

func (r *toastRecorder) Publish(t notify.Toast) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toasts = append(r.toasts, t)
}

func (r *toastRecorder) All() []notify.Toast {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Toast(nil), r.toasts...)
}

func (r *toastRecorder) Last() notify.Toast {
	all := r.All()
	if len(all) == 0 {
		return notify.Toast{}
	}
	return all[len(all)-1]
}

// newTestDB returns a migrated in-memory database holding the demo fixtures.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := initializers.OpenMemoryDB(nil)
	require.NoError(t, err)
	require.NoError(t, initializers.AutoMigrate(db))
	fixtures, err := seed.Load()
	require.NoError(t, err)
	require.NoError(t, seed.Apply(db, fixtures))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

type testEnv struct {
	db     *gorm.DB
	log    *zap.SugaredLogger
	audit  *AuditService
	toasts *toastRecorder
	api    *MockProvider
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := newTestDB(t)
	log := zap.NewNop().Sugar()
	return &testEnv{
		db:     db,
		log:    log,
		audit:  NewAuditService(db, log),
		toasts: &toastRecorder{},
		api:    &MockProvider{},
	}
}

func (e *testEnv) auditCount(t *testing.T, action string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(&models.AuditEvent{}).Where("action = ?", action).Count(&n).Error)
	return n
}
