package controller

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/cntrlcomply/backend/initializers"
	"github.com/cntrlcomply/backend/middleware"
	"github.com/cntrlcomply/backend/models"
	"github.com/cntrlcomply/backend/notify"
	"github.com/cntrlcomply/backend/provider"
	"github.com/cntrlcomply/backend/search"
	"github.com/cntrlcomply/backend/seed"
	services "github.com/cntrlcomply/backend/service"
	"github.com/cntrlcomply/backend/storage"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type testServer struct {
	router *gin.Engine
	hub    *notify.Hub
	db     *gorm.DB
}

func newTestServer(t *testing.T, cfg RouterConfig) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

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

	log := zap.NewNop().Sugar()
	hub := notify.NewHub(notify.DefaultConfig(), log)
	api := provider.NewMockProvider(provider.Config{}, log)
	audit := services.NewAuditService(db, log)
	index := search.NewDBIndex(db)

	c := NewController(Services{
		Workspace:  services.NewWorkspaceService(db, log),
		Regulatory: services.NewRegulatoryService(db, log),
		Gaps:       services.NewGapService(db, log, audit, hub, api),
		Amendments: services.NewAmendmentService(db, log, audit, hub, api, services.AmendmentConfig{}),
		Analysis:   services.NewAnalysisService(db, log, audit, hub, api),
		Reports:    services.NewReportService(db, log, audit, hub, api),
		Audit:      audit,
		Users:      services.NewUserService(db, log, audit, hub),
		Ingestion:  services.NewIngestionService(db, log, audit, hub, api, &storage.URLStore{Bucket: "uploads"}, index),
		Search:     services.NewSearchService(db, log, index),
	}, hub, log)

	return &testServer{router: NewRouter(c, cfg), hub: hub, db: db}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, RouterConfig{})
	w := s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])
}

func TestWorkspaceFlow(t *testing.T) {
	s := newTestServer(t, RouterConfig{})

	w := s.do(t, http.MethodGet, "/workspace", nil)
	require.Equal(t, http.StatusOK, w.Code)
	session := w.Header().Get(middleware.HeaderSessionID)
	require.NotEmpty(t, session)
	assert.Equal(t, models.TabDashboard, decode(t, w)["activeTab"])

	w = s.do(t, http.MethodPost, "/workspace/select",
		gin.H{"regulationId": "reg-1", "action": "view_gaps"}, middleware.HeaderSessionID, session)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "gaps", body["activeTab"])
	assert.Equal(t, "reg-1", body["selectedRegulationId"])

	w = s.do(t, http.MethodPost, "/workspace/select",
		gin.H{"regulationId": "reg-1", "action": "launch"}, middleware.HeaderSessionID, session)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid action", decode(t, w)["error"])

	w = s.do(t, http.MethodPut, "/workspace/tab", gin.H{"tab": "settings"}, middleware.HeaderSessionID, session)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/workspace", nil, middleware.HeaderSessionID, session)
	assert.Equal(t, "gaps", decode(t, w)["activeTab"])
}

func TestDismissGap(t *testing.T) {
	s := newTestServer(t, RouterConfig{})

	w := s.do(t, http.MethodDelete, "/gaps/gap-1", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(t, http.MethodDelete, "/gaps/gap-1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, "/gaps", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, decode(t, w)["total"])
}

func TestAssignGapValidation(t *testing.T) {
	s := newTestServer(t, RouterConfig{})

	w := s.do(t, http.MethodPost, "/gaps/gap-2/assign", gin.H{"assigneeId": "marcus-tan"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Missing information", decode(t, w)["error"])

	w = s.do(t, http.MethodPost, "/gaps/gap-2/assign",
		gin.H{"assigneeId": "marcus-tan", "dueDate": "2024-07-01", "priority": "high"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Task assigned successfully", decode(t, w)["message"])
}

func TestAmendmentTerminalState(t *testing.T) {
	s := newTestServer(t, RouterConfig{})

	w := s.do(t, http.MethodPost, "/amendments/amend-1/approve", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.AmendmentApproved, decode(t, w)["status"])

	w = s.do(t, http.MethodPost, "/amendments/amend-1/reject", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPut, "/amendments/amend-2", gin.H{"text": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/amendments/amend-2/diff", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, decode(t, w)["patch"])
}

func TestCrossImpact(t *testing.T) {
	s := newTestServer(t, RouterConfig{})

	w := s.do(t, http.MethodPost, "/analysis/cross-impact", gin.H{"documentIds": []string{"reg-1"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Selection Required", decode(t, w)["error"])

	w = s.do(t, http.MethodPost, "/api/analyze", gin.H{"regulationIds": []string{"reg-1"}, "policyIds": []string{"pol-1"}})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.EqualValues(t, 3, body["totalConflicts"])
	assert.Equal(t, "High", body["impactLevel"])

	recent := s.hub.Recent()
	require.NotEmpty(t, recent)
	last := recent[len(recent)-1]
	assert.Equal(t, "Analysis Complete", last.Title)
	assert.Equal(t, notify.VariantDefault, last.Variant)

	w = s.do(t, http.MethodGet, "/api/documents?type=policy", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, decode(t, w)["total"])

	w = s.do(t, http.MethodGet, "/api/documents?type=memo", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func multipartUpload(t *testing.T, fields map[string]string, fileName, contentType string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if fileName != "" {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, fileName))
		h.Set("Content-Type", contentType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/ingestion/uploads", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadDocument(t *testing.T) {
	s := newTestServer(t, RouterConfig{})
	fields := map[string]string{"title": "KYC Policy", "tag": "internal_policy"}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, multipartUpload(t, fields, "notes.txt", "text/plain", []byte("hello")))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid file type", decode(t, w)["error"])
	recent := s.hub.Recent()
	require.NotEmpty(t, recent)
	assert.Equal(t, "Invalid file type", recent[len(recent)-1].Title)
	assert.Equal(t, notify.VariantDestructive, recent[len(recent)-1].Variant)

	var count int64
	require.NoError(t, s.db.Model(&models.UploadedDocument{}).Count(&count).Error)
	assert.Zero(t, count)

	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, multipartUpload(t, fields, "", "", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Missing required fields", decode(t, w)["error"])

	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, multipartUpload(t, fields, "kyc.pdf", "application/pdf", []byte("%PDF-1.4")))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	doc := decode(t, w)["document"].(map[string]interface{})
	assert.Equal(t, "KYC Policy", doc["title"])

	w = s.do(t, http.MethodGet, "/ingestion/uploads/"+doc["id"].(string), nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUsers(t *testing.T) {
	s := newTestServer(t, RouterConfig{})

	w := s.do(t, http.MethodPost, "/users", gin.H{"name": "Tana Chen", "email": "tana2@company.com", "role": "junior_analyst"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPost, "/users", gin.H{"name": "Wei Lim"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Missing information", decode(t, w)["error"])

	w = s.do(t, http.MethodPost, "/users", gin.H{"name": "Wei Lim", "email": "wei.lim@company.com", "role": "junior_analyst"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "wei-lim", decode(t, w)["id"])

	w = s.do(t, http.MethodGet, "/roles/external_auditor/permissions/approve_amendments", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["allowed"])
}

func TestReportsAndAuditExport(t *testing.T) {
	s := newTestServer(t, RouterConfig{})

	w := s.do(t, http.MethodPost, "/reports", gin.H{"regulationId": "reg-9"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPost, "/reports", gin.H{"regulationId": "reg-1"})
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode(t, w)["id"].(string)

	w = s.do(t, http.MethodGet, "/reports/"+id+"/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Body.String(), "# Executive Report"))

	w = s.do(t, http.MethodGet, "/reports/"+id+"/export?format=pdf", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/audit/export?range=all", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, w.Body.String(), "REPORT_GENERATED")
}

func TestActorHeadersReachAudit(t *testing.T) {
	s := newTestServer(t, RouterConfig{})

	w := s.do(t, http.MethodPost, "/gaps/gap-3/acknowledge", nil,
		middleware.HeaderUserID, "marcus-tan", middleware.HeaderUserName, "Marcus Tan", middleware.HeaderUserRole, "senior_analyst")
	require.Equal(t, http.StatusOK, w.Code)

	var event models.AuditEvent
	require.NoError(t, s.db.Where("action = ? AND resource_id = ?", models.ActionGapAcknowledged, "gap-3").First(&event).Error)
	assert.Equal(t, "marcus-tan", event.UserID)
	assert.Equal(t, w.Header().Get(middleware.HeaderSessionID), event.SessionID)
}

func TestStrictRateLimit(t *testing.T) {
	s := newTestServer(t, RouterConfig{Strict: middleware.NewRateLimiter(1, 1)})

	w := s.do(t, http.MethodPost, "/search/reindex", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = s.do(t, http.MethodPost, "/search/reindex", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "Too Many Requests", decode(t, w)["error"])

	// unguarded routes are unaffected
	w = s.do(t, http.MethodGet, "/search?q=PSN01", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", &services.ValidationError{Title: "Missing query"}, http.StatusBadRequest},
		{"selection", services.ErrInsufficientSelection, http.StatusBadRequest},
		{"not found", fmt.Errorf("gap %q: %w", "x", services.ErrNotFound), http.StatusNotFound},
		{"transition", services.ErrInvalidTransition, http.StatusConflict},
		{"conflict", services.ErrConflict, http.StatusConflict},
		{"provider", &provider.APIError{Endpoint: provider.EndpointCrossImpact}, http.StatusBadGateway},
		{"other", errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _, _ := classify(tt.err)
			assert.Equal(t, tt.status, status)
		})
	}
}
