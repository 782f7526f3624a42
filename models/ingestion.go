package models

import "time"

const (
	SourceActive  = "active"
	SourceError   = "error"
	SourcePending = "pending"
)

const (
	DocumentNew        = "new"
	DocumentProcessing = "processing"
	DocumentAnalyzed   = "analyzed"
	DocumentFailed     = "failed"
)

const (
	UploadUploading  = "uploading"
	UploadProcessing = "processing"
	UploadCompleted  = "completed"
	UploadFailed     = "failed"
)

// MaxUploadSize is the largest accepted upload, 10 MiB.
const MaxUploadSize = 10 * 1024 * 1024

// AllowedUploadTypes maps accepted MIME types to their file extension.
var AllowedUploadTypes = map[string]string{
	"application/pdf":    "pdf",
	"application/msword": "doc",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": "docx",
}

// DocumentTags are the labels an uploaded document may carry.
var DocumentTags = map[string]string{
	"mas_consultation":     "MAS Consultation Paper",
	"mas_guideline":        "MAS Guideline",
	"mas_notice":           "MAS Notice",
	"mas_circular":         "MAS Circular",
	"internal_policy":      "Internal Policy",
	"compliance_manual":    "Compliance Manual",
	"risk_assessment":      "Risk Assessment",
	"audit_report":         "Audit Report",
	"regulatory_framework": "Regulatory Framework",
	"other":                "Other",
}

// MonitoringSource is a regulator website watched for new publications.
type MonitoringSource struct {
	ID             string     `gorm:"primaryKey" json:"id" yaml:"id"`
	Name           string     `json:"name" yaml:"name"`
	URL            string     `json:"url" yaml:"url"`
	Enabled        bool       `json:"enabled" yaml:"enabled"`
	LastCheck      *time.Time `json:"lastCheck" yaml:"lastCheck"`
	Status         string     `json:"status" yaml:"status"`
	DocumentsFound int        `json:"documentsFound" yaml:"documentsFound"`
}

// IngestedDocument is a publication discovered by a source scan.
type IngestedDocument struct {
	ID              string    `gorm:"primaryKey" json:"id" yaml:"id"`
	Title           string    `json:"title" yaml:"title"`
	Source          string    `json:"source" yaml:"source"`
	DetectedDate    time.Time `gorm:"index" json:"detectedDate" yaml:"detectedDate"`
	PublicationDate string    `json:"publicationDate" yaml:"publicationDate"`
	DocumentType    string    `json:"documentType" yaml:"documentType"`
	Status          string    `json:"status" yaml:"status"`
	Confidence      float64   `json:"confidence" yaml:"confidence"`
}

// UploadedDocument is a file submitted through the manual upload form.
type UploadedDocument struct {
	ID           string    `gorm:"primaryKey" json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Tag          string    `json:"tag"`
	DocumentDate string    `json:"documentDate"`
	FileName     string    `json:"fileName"`
	ContentType  string    `json:"contentType"`
	Size         int64     `json:"size"`
	URL          string    `json:"url"`
	Status       string    `json:"status"`
	Progress     int       `json:"progress"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// IsAllowedUploadType reports whether contentType is PDF, DOC or DOCX.
func IsAllowedUploadType(contentType string) bool {
	_, ok := AllowedUploadTypes[contentType]
	return ok
}

// IsValidDocumentTag reports whether tag is one of DocumentTags.
func IsValidDocumentTag(tag string) bool {
	_, ok := DocumentTags[tag]
	return ok
}
