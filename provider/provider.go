// Package provider is the client side of the compliance analysis API. The only
// implementation is MockProvider, which answers every call with canned data
// after an artificial delay and fails a configurable share of calls.
package provider

import (
	"context"
	"errors"
	"time"

	"github.com/cntrlcomply/backend/models"
)

// ErrProviderFailure is wrapped by every synthetic API failure.
var ErrProviderFailure = errors.New("compliance api failure")

// APIError reports a failed call to one endpoint.
type APIError struct {
	Endpoint string
}

func (e *APIError) Error() string {
	return "API Error: Failed to " + e.Endpoint
}

func (e *APIError) Unwrap() error {
	return ErrProviderFailure
}

// Endpoint paths, used for delays, logging and error messages.
const (
	EndpointAnalyzeDocument    = "/documents/analyze"
	EndpointIngestDocument     = "/documents/ingest"
	EndpointGenerateAmendments = "/amendments/generate"
	EndpointApproveAmendment   = "/amendments/approve"
	EndpointGenerateReport     = "/reports/generate"
	EndpointCrossImpact        = "/analysis/cross-impact"
	EndpointScanSource         = "/monitoring/scan"
	EndpointCreateTask         = "/tasks/create"
	EndpointAuditLog           = "/audit/log"
	EndpointUploadDocument     = "/documents/upload"
	EndpointUploadStatus       = "/documents/upload/status"
	EndpointUploadedDocuments  = "/documents/uploaded"
)

type AnalysisResult struct {
	Gaps []models.ComplianceGap `json:"gaps"`
}

type IngestResult struct {
	DocumentID string `json:"documentId"`
	Status     string `json:"status"`
	Message    string `json:"message"`
}

type AmendmentResult struct {
	Amendments []models.PolicyAmendment `json:"amendments"`
}

type Ack struct {
	Success bool `json:"success"`
}

type ReportResult struct {
	ReportID          string `json:"reportId"`
	Summary           string `json:"summary"`
	TotalChanges      int    `json:"totalChanges"`
	HighImpactChanges int    `json:"highImpactChanges"`
}

type CrossImpactResult struct {
	Results []map[string]interface{} `json:"results"`
}

type ScanResult struct {
	Documents []models.IngestedDocument `json:"documents"`
}

// TaskRequest is the body of a task creation call.
type TaskRequest struct {
	GapID        string `json:"gapId"`
	AssigneeID   string `json:"assigneeId"`
	AssigneeName string `json:"assigneeName"`
	DueDate      string `json:"dueDate"`
	Priority     string `json:"priority"`
	Notes        string `json:"notes"`
}

type TaskResult struct {
	ID        string    `json:"id"`
	GapID     string    `json:"gapId"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// UploadRequest describes a stored file handed to the API for processing.
type UploadRequest struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	Tag          string `json:"tag"`
	DocumentDate string `json:"documentDate"`
	FileName     string `json:"fileName"`
	ContentType  string `json:"contentType"`
	Size         int64  `json:"size"`
	URL          string `json:"url"`
}

type UploadResult struct {
	DocumentID string `json:"documentId"`
	Status     string `json:"status"`
	Message    string `json:"message"`
}

type UploadStatus struct {
	DocumentID string `json:"documentId"`
	Status     string `json:"status"`
	Progress   int    `json:"progress"`
}

// Provider is the compliance analysis API.
type Provider interface {
	AnalyzeDocument(ctx context.Context, documentID, content string) (*AnalysisResult, error)
	IngestDocument(ctx context.Context, url string, metadata map[string]string) (*IngestResult, error)
	GenerateAmendments(ctx context.Context, gapID string) (*AmendmentResult, error)
	// ApproveAmendment is kept for API parity; approvals are local and never call it.
	ApproveAmendment(ctx context.Context, amendmentID string) (*Ack, error)
	GenerateExecutiveReport(ctx context.Context, documentID string) (*ReportResult, error)
	AnalyzeCrossImpact(ctx context.Context, documentIDs, policyIDs []string) (*CrossImpactResult, error)
	ScanRegulatorySource(ctx context.Context, sourceURL string) (*ScanResult, error)
	// CreateTask is kept for API parity; gap assignment is local and never calls it.
	CreateTask(ctx context.Context, task TaskRequest) (*TaskResult, error)
	LogAuditEvent(ctx context.Context, event models.AuditEvent) (*Ack, error)
	UploadDocument(ctx context.Context, req UploadRequest) (*UploadResult, error)
	GetUploadStatus(ctx context.Context, documentID string) (*UploadStatus, error)
	GetUploadedDocuments(ctx context.Context, documentIDs []string) ([]UploadStatus, error)
}
