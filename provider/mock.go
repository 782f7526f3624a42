package provider

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/cntrlcomply/backend/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultFailureRate is the share of calls that fail when nothing else is configured.
const DefaultFailureRate = 0.05

// randomFloat draws the number compared against the failure rate.
var randomFloat = rand.Float64

// now is replaced in tests that need stable timestamps.
var now = time.Now

var defaultDelays = map[string]time.Duration{
	EndpointAnalyzeDocument:    1 * time.Second,
	EndpointIngestDocument:     1 * time.Second,
	EndpointGenerateAmendments: 1 * time.Second,
	EndpointApproveAmendment:   1 * time.Second,
	EndpointGenerateReport:     2 * time.Second,
	EndpointCrossImpact:        3 * time.Second,
	EndpointScanSource:         3 * time.Second,
	EndpointCreateTask:         500 * time.Millisecond,
	EndpointAuditLog:           200 * time.Millisecond,
	EndpointUploadDocument:     1500 * time.Millisecond,
	EndpointUploadStatus:       300 * time.Millisecond,
	EndpointUploadedDocuments:  300 * time.Millisecond,
}

// Config tunes the mock.
type Config struct {
	// FailureRate is the probability in [0,1] that a call fails.
	FailureRate float64
	// DelayScale multiplies every endpoint delay; 0 disables delays.
	DelayScale float64
}

// MockProvider implements Provider with canned responses.
type MockProvider struct {
	cfg    Config
	delays map[string]time.Duration
	log    *zap.SugaredLogger
}

// NewMockProvider builds a mock provider. A nil logger disables logging.
func NewMockProvider(cfg Config, log *zap.SugaredLogger) *MockProvider {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	delays := make(map[string]time.Duration, len(defaultDelays))
	for endpoint, d := range defaultDelays {
		delays[endpoint] = time.Duration(float64(d) * cfg.DelayScale)
	}
	return &MockProvider{cfg: cfg, delays: delays, log: log}
}

// call waits out the endpoint delay, then fails with probability FailureRate.
func (p *MockProvider) call(ctx context.Context, endpoint string, data interface{}) error {
	if d := p.delays[endpoint]; d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return err
	}

	p.log.Debugw("[MockAPI] call", "endpoint", endpoint, "data", data)

	if randomFloat() < p.cfg.FailureRate {
		p.log.Warnf("[MockAPI] synthetic failure on %s", endpoint)
		return &APIError{Endpoint: endpoint}
	}
	return nil
}

func (p *MockProvider) AnalyzeDocument(ctx context.Context, documentID, content string) (*AnalysisResult, error) {
	if err := p.call(ctx, EndpointAnalyzeDocument, map[string]string{"documentId": documentID}); err != nil {
		return nil, err
	}
	if documentID == "" {
		documentID = "doc-1"
	}
	return &AnalysisResult{Gaps: []models.ComplianceGap{{
		ID:             fmt.Sprintf("gap-%s-cdd", documentID),
		RegulationID:   documentID,
		Description:    "Customer identification requirements need enhancement",
		RegulationText: "Enhanced due diligence measures must be applied to all high-risk customers...",
		PolicySection:  "Section 3.2 - Customer Due Diligence",
		CurrentPolicy:  "Standard KYC procedures apply to all customers...",
		Severity:       models.SeverityHigh,
		Confidence:     0.94,
	}}}, nil
}

func (p *MockProvider) IngestDocument(ctx context.Context, url string, metadata map[string]string) (*IngestResult, error) {
	if err := p.call(ctx, EndpointIngestDocument, url); err != nil {
		return nil, err
	}
	return &IngestResult{
		DocumentID: "doc-" + uuid.NewString(),
		Status:     models.DocumentProcessing,
		Message:    "Document ingestion started",
	}, nil
}

func (p *MockProvider) GenerateAmendments(ctx context.Context, gapID string) (*AmendmentResult, error) {
	if err := p.call(ctx, EndpointGenerateAmendments, gapID); err != nil {
		return nil, err
	}
	return &AmendmentResult{Amendments: []models.PolicyAmendment{{
		ID:            "amend-" + uuid.NewString(),
		GapID:         gapID,
		PolicySection: "Section 3.2 - Customer Due Diligence",
		OriginalText:  "Standard KYC procedures apply...",
		ProposedText:  "Enhanced due diligence measures must be applied...",
		ChangeType:    models.ChangeModification,
		Status:        models.AmendmentPending,
		Rationale:     "To comply with new MAS requirements",
	}}}, nil
}

func (p *MockProvider) ApproveAmendment(ctx context.Context, amendmentID string) (*Ack, error) {
	if err := p.call(ctx, EndpointApproveAmendment, amendmentID); err != nil {
		return nil, err
	}
	return &Ack{Success: true}, nil
}

func (p *MockProvider) GenerateExecutiveReport(ctx context.Context, documentID string) (*ReportResult, error) {
	if err := p.call(ctx, EndpointGenerateReport, documentID); err != nil {
		return nil, err
	}
	return &ReportResult{
		ReportID:          "report-" + uuid.NewString(),
		Summary:           "Executive summary generated successfully",
		TotalChanges:      5,
		HighImpactChanges: 2,
	}, nil
}

func (p *MockProvider) AnalyzeCrossImpact(ctx context.Context, documentIDs, policyIDs []string) (*CrossImpactResult, error) {
	err := p.call(ctx, EndpointCrossImpact, map[string][]string{"documentIds": documentIDs, "policyIds": policyIDs})
	if err != nil {
		return nil, err
	}
	return &CrossImpactResult{Results: []map[string]interface{}{{"success": true}}}, nil
}

func (p *MockProvider) ScanRegulatorySource(ctx context.Context, sourceURL string) (*ScanResult, error) {
	if err := p.call(ctx, EndpointScanSource, sourceURL); err != nil {
		return nil, err
	}
	return &ScanResult{}, nil
}

func (p *MockProvider) CreateTask(ctx context.Context, task TaskRequest) (*TaskResult, error) {
	if err := p.call(ctx, EndpointCreateTask, task); err != nil {
		return nil, err
	}
	return &TaskResult{
		ID:        "task-" + uuid.NewString(),
		GapID:     task.GapID,
		Status:    "open",
		CreatedAt: now().UTC(),
	}, nil
}

func (p *MockProvider) LogAuditEvent(ctx context.Context, event models.AuditEvent) (*Ack, error) {
	if err := p.call(ctx, EndpointAuditLog, event.Action); err != nil {
		return nil, err
	}
	return &Ack{Success: true}, nil
}

func (p *MockProvider) UploadDocument(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	if err := p.call(ctx, EndpointUploadDocument, req.FileName); err != nil {
		return nil, err
	}
	return &UploadResult{
		DocumentID: "upload-" + uuid.NewString(),
		Status:     models.UploadProcessing,
		Message:    "Document uploaded and queued for analysis",
	}, nil
}

func (p *MockProvider) GetUploadStatus(ctx context.Context, documentID string) (*UploadStatus, error) {
	if err := p.call(ctx, EndpointUploadStatus, documentID); err != nil {
		return nil, err
	}
	return &UploadStatus{DocumentID: documentID, Status: models.UploadCompleted, Progress: 100}, nil
}

func (p *MockProvider) GetUploadedDocuments(ctx context.Context, documentIDs []string) ([]UploadStatus, error) {
	if err := p.call(ctx, EndpointUploadedDocuments, documentIDs); err != nil {
		return nil, err
	}
	out := make([]UploadStatus, 0, len(documentIDs))
	for _, id := range documentIDs {
		out = append(out, UploadStatus{DocumentID: id, Status: models.UploadCompleted, Progress: 100})
	}
	return out, nil
}
