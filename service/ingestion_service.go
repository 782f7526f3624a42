package services

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cntrlcomply/backend/models"
	"github.com/cntrlcomply/backend/notify"
	"github.com/cntrlcomply/backend/provider"
	"github.com/cntrlcomply/backend/search"
	"github.com/cntrlcomply/backend/storage"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// scannedDocument is the publication every successful scan discovers.
var scannedDocument = models.IngestedDocument{
	Title:           "Updated AML/CFT Requirements for Digital Payment Services",
	Source:          "MAS Guidelines & Notices",
	PublicationDate: "2024-06-17",
	DocumentType:    "notice",
	Status:          models.DocumentNew,
	Confidence:      0.94,
}

// UploadForm is a manual document upload. Size is the declared file size;
// Data may be empty when the file is rejected for size.
type UploadForm struct {
	Title        string
	Description  string
	Tag          string
	DocumentDate string
	FileName     string
	ContentType  string
	Size         int64
	Data         []byte
}

// ScanReport summarizes one manual or scheduled scan.
type ScanReport struct {
	Scanned   int                       `json:"scanned"`
	Failed    []string                  `json:"failed"`
	Documents []models.IngestedDocument `json:"documents"`
}

// IngestionService watches regulator sources and accepts manual uploads.
type IngestionService struct {
	db       *gorm.DB
	log      *zap.SugaredLogger
	audit    *AuditService
	notifier notify.Notifier
	api      provider.Provider
	store    storage.ObjectStore
	index    search.Index
	scanning atomic.Bool
}

func NewIngestionService(db *gorm.DB, log *zap.SugaredLogger, audit *AuditService, notifier notify.Notifier,
	api provider.Provider, store storage.ObjectStore, index search.Index) *IngestionService {
	return &IngestionService{db: db, log: log, audit: audit, notifier: notifier, api: api, store: store, index: index}
}

// ListSources returns the monitored sources.
func (s *IngestionService) ListSources(ctx context.Context) ([]models.MonitoringSource, error) {
	var sources []models.MonitoringSource
	if err := s.db.WithContext(ctx).Order("id").Find(&sources).Error; err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	return sources, nil
}

// ToggleSource enables or disables monitoring of one source.
func (s *IngestionService) ToggleSource(ctx context.Context, id string, enabled bool) (*models.MonitoringSource, error) {
	var src models.MonitoringSource
	err := s.audit.Transaction(ctx, s.db, func(tx *gorm.DB) error {
		if err := tx.First(&src, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("source", id)
			}
			return fmt.Errorf("failed to load source: %w", err)
		}
		src.Enabled = enabled
		if err := tx.Model(&src).Update("enabled", enabled).Error; err != nil {
			return fmt.Errorf("failed to toggle source: %w", err)
		}
		return s.audit.RecordTx(ctx, tx, models.AuditEvent{
			Action:       models.ActionSourceToggled,
			ResourceType: models.ResourceSource,
			ResourceID:   src.ID,
			ResourceName: src.Name,
			Details:      fmt.Sprintf("Monitoring %s", enabledWord(enabled)),
			Metadata:     Metadata(map[string]interface{}{"enabled": enabled}),
		})
	})
	if err != nil {
		return nil, err
	}

	word := enabledWord(enabled)
	verb := "deactivated"
	if enabled {
		verb = "activated"
	}
	s.notifier.Publish(notify.Success("Monitoring "+word, "Source monitoring has been "+verb))
	return &src, nil
}

func enabledWord(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}

// ManualScan checks every enabled source. Only one scan runs at a time.
func (s *IngestionService) ManualScan(ctx context.Context) (*ScanReport, error) {
	if !s.scanning.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("a scan is already running: %w", ErrConflict)
	}
	defer s.scanning.Store(false)

	var sources []models.MonitoringSource
	if err := s.db.WithContext(ctx).Where("enabled = ?", true).Order("id").Find(&sources).Error; err != nil {
		return nil, fmt.Errorf("failed to load sources: %w", err)
	}
	if len(sources) == 0 {
		return nil, invalid("No sources enabled", "Enable at least one monitoring source before scanning")
	}

	report := &ScanReport{Failed: []string{}, Documents: []models.IngestedDocument{}}
	found := make(map[string][]models.IngestedDocument)
	var succeeded []models.MonitoringSource
	for _, src := range sources {
		res, err := s.api.ScanRegulatorySource(ctx, src.URL)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.log.Warnf("[IngestionService] scan of %s failed: %v", src.ID, err)
			report.Failed = append(report.Failed, src.ID)
			continue
		}
		report.Scanned++
		succeeded = append(succeeded, src)
		found[src.ID] = append(found[src.ID], res.Documents...)
	}

	if len(succeeded) == 0 {
		s.markFailed(ctx, sources)
		s.notifier.Publish(notify.Failure("Scan failed", "Failed to scan regulatory sources"))
		return nil, fmt.Errorf("failed to scan regulatory sources: %w", provider.ErrProviderFailure)
	}

	owner := succeeded[0]
	for _, src := range succeeded {
		if src.Name == scannedDocument.Source {
			owner = src
		}
	}
	doc := scannedDocument
	doc.ID = "doc-" + uuid.NewString()
	doc.DetectedDate = now().UTC()
	found[owner.ID] = append(found[owner.ID], doc)

	sysCtx := WithActor(ctx, SystemActor)
	err := s.audit.Transaction(ctx, s.db, func(tx *gorm.DB) error {
		checked := now().UTC()
		for _, src := range sources {
			docs, ok := found[src.ID]
			updates := map[string]interface{}{"last_check": checked, "status": models.SourceActive}
			if !ok {
				updates["status"] = models.SourceError
			}
			if len(docs) > 0 {
				updates["documents_found"] = gorm.Expr("documents_found + ?", len(docs))
			}
			if err := tx.Model(&models.MonitoringSource{}).Where("id = ?", src.ID).Updates(updates).Error; err != nil {
				return fmt.Errorf("failed to update source %s: %w", src.ID, err)
			}
			for _, d := range docs {
				if d.ID == "" {
					d.ID = "doc-" + uuid.NewString()
				}
				if d.DetectedDate.IsZero() {
					d.DetectedDate = checked
				}
				if err := tx.Create(&d).Error; err != nil {
					return fmt.Errorf("failed to store ingested document: %w", err)
				}
				if err := s.audit.RecordTx(sysCtx, tx, models.AuditEvent{
					Action:       models.ActionDocumentIngested,
					ResourceType: models.ResourceDocument,
					ResourceID:   d.ID,
					ResourceName: d.Title,
					Details:      "Automatically ingested new regulatory document from " + d.Source,
					Metadata:     Metadata(map[string]interface{}{"source": src.ID, "confidence": d.Confidence}),
				}); err != nil {
					return err
				}
				report.Documents = append(report.Documents, d)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.indexDocuments(ctx, report.Documents)
	n := len(report.Documents)
	noun := "document"
	if n != 1 {
		noun = "documents"
	}
	s.notifier.Publish(notify.Success("Scan completed", fmt.Sprintf("%d new regulatory %s detected and ingested", n, noun)))
	return report, nil
}

// markFailed records a scan in which no source answered.
func (s *IngestionService) markFailed(ctx context.Context, sources []models.MonitoringSource) {
	checked := now().UTC()
	for _, src := range sources {
		err := s.db.WithContext(ctx).Model(&models.MonitoringSource{}).Where("id = ?", src.ID).
			Updates(map[string]interface{}{"last_check": checked, "status": models.SourceError}).Error
		if err != nil {
			s.log.Errorf("[IngestionService] failed to update source %s: %v", src.ID, err)
		}
	}
}

func (s *IngestionService) indexDocuments(ctx context.Context, docs []models.IngestedDocument) {
	if s.index == nil || len(docs) == 0 {
		return
	}
	out := make([]search.Document, 0, len(docs))
	for _, d := range docs {
		out = append(out, search.FromIngested(d))
	}
	if err := s.index.Index(ctx, out...); err != nil {
		s.log.Warnf("[IngestionService] failed to index %d documents: %v", len(out), err)
	}
}

// ListDocuments returns discovered publications, newest first.
func (s *IngestionService) ListDocuments(ctx context.Context) ([]models.IngestedDocument, error) {
	var docs []models.IngestedDocument
	if err := s.db.WithContext(ctx).Order("detected_date DESC").Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("failed to list ingested documents: %w", err)
	}
	return docs, nil
}

// IngestURL hands a single publication URL to the compliance API.
func (s *IngestionService) IngestURL(ctx context.Context, url string, metadata map[string]string) (*models.IngestedDocument, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, invalid("Missing required fields", "Please provide a document URL")
	}
	res, err := s.api.IngestDocument(ctx, url, metadata)
	if err != nil {
		s.log.Errorf("[IngestionService] ingest of %s failed: %v", url, err)
		s.notifier.Publish(notify.Failure("Ingestion failed", "Failed to ingest document"))
		return nil, fmt.Errorf("failed to ingest document: %w", err)
	}

	doc := &models.IngestedDocument{
		ID:              res.DocumentID,
		Title:           metadata["title"],
		Source:          metadata["source"],
		DetectedDate:    now().UTC(),
		PublicationDate: metadata["publicationDate"],
		DocumentType:    metadata["documentType"],
		Status:          models.DocumentProcessing,
	}
	if doc.Title == "" {
		doc.Title = path.Base(url)
	}
	if doc.Source == "" {
		doc.Source = "Manual"
	}

	err = s.audit.Transaction(ctx, s.db, func(tx *gorm.DB) error {
		if err := tx.Create(doc).Error; err != nil {
			return fmt.Errorf("failed to store ingested document: %w", err)
		}
		return s.audit.RecordTx(ctx, tx, models.AuditEvent{
			Action:       models.ActionDocumentIngested,
			ResourceType: models.ResourceDocument,
			ResourceID:   doc.ID,
			ResourceName: doc.Title,
			Details:      "Ingested document from " + url,
			Metadata:     Metadata(map[string]interface{}{"url": url}),
		})
	})
	if err != nil {
		return nil, err
	}
	s.indexDocuments(ctx, []models.IngestedDocument{*doc})
	s.notifier.Publish(notify.Success("Document ingested", res.Message))
	return doc, nil
}

func validateUpload(form *UploadForm) error {
	hasFile := form.FileName != "" || form.Size > 0
	if hasFile {
		if !models.IsAllowedUploadType(form.ContentType) {
			return invalid("Invalid file type", "Please upload PDF, DOC, or DOCX files only")
		}
		if form.Size > models.MaxUploadSize {
			return invalid("File too large", "Please upload files smaller than 10MB")
		}
	}
	form.Title = strings.TrimSpace(form.Title)
	if form.Title == "" && form.FileName != "" {
		base := path.Base(form.FileName)
		form.Title = strings.TrimSuffix(base, path.Ext(base))
	}
	if !hasFile || form.Title == "" || form.Tag == "" {
		return invalid("Missing required fields", "Please fill in title, tag, and select a file")
	}
	if !models.IsValidDocumentTag(form.Tag) {
		return invalid("Invalid tag", fmt.Sprintf("%q is not a document tag", form.Tag))
	}
	return nil
}

// Upload stores a file and queues it for analysis. Invalid uploads are
// rejected before anything is stored.
func (s *IngestionService) Upload(ctx context.Context, form UploadForm) (*models.UploadedDocument, error) {
	if err := validateUpload(&form); err != nil {
		return nil, toastInvalid(s.notifier, err)
	}

	created := now().UTC()
	key := storage.ObjectKey(created, form.FileName)
	url, err := s.store.Put(ctx, key, form.Data, form.ContentType)
	if err != nil {
		s.log.Errorf("[IngestionService] failed to store %s: %v", form.FileName, err)
		s.notifier.Publish(notify.Failure("Upload failed", "Failed to upload document"))
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}

	doc := &models.UploadedDocument{
		ID:           "upload-" + uuid.NewString(),
		Title:        form.Title,
		Description:  form.Description,
		Tag:          form.Tag,
		DocumentDate: form.DocumentDate,
		FileName:     form.FileName,
		ContentType:  form.ContentType,
		Size:         form.Size,
		URL:          url,
		Status:       models.UploadUploading,
		CreatedAt:    created,
		UpdatedAt:    created,
	}
	if err := s.db.WithContext(ctx).Create(doc).Error; err != nil {
		return nil, fmt.Errorf("failed to store upload record: %w", err)
	}

	_, err = s.api.UploadDocument(ctx, provider.UploadRequest{
		Title:        doc.Title,
		Description:  doc.Description,
		Tag:          doc.Tag,
		DocumentDate: doc.DocumentDate,
		FileName:     doc.FileName,
		ContentType:  doc.ContentType,
		Size:         doc.Size,
		URL:          doc.URL,
	})
	if err != nil {
		s.log.Errorf("[IngestionService] upload of %s failed: %v", doc.ID, err)
		if uerr := s.setUploadStatus(context.WithoutCancel(ctx), doc, models.UploadFailed, 0); uerr != nil {
			s.log.Errorf("[IngestionService] failed to mark %s failed: %v", doc.ID, uerr)
		}
		s.notifier.Publish(notify.Failure("Upload failed", "Failed to upload document"))
		return nil, fmt.Errorf("failed to upload document: %w", err)
	}

	err = s.audit.Transaction(ctx, s.db, func(tx *gorm.DB) error {
		doc.Status = models.UploadProcessing
		doc.Progress = 50
		doc.UpdatedAt = now().UTC()
		if err := tx.Save(doc).Error; err != nil {
			return fmt.Errorf("failed to update upload: %w", err)
		}
		return s.audit.RecordTx(ctx, tx, models.AuditEvent{
			Action:       models.ActionDocumentUploaded,
			ResourceType: models.ResourceDocument,
			ResourceID:   doc.ID,
			ResourceName: doc.Title,
			Details:      fmt.Sprintf("Uploaded %s tagged %s", doc.FileName, models.DocumentTags[doc.Tag]),
			Metadata:     Metadata(map[string]interface{}{"size": doc.Size, "contentType": doc.ContentType}),
		})
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Publish(notify.Success("File uploaded successfully", "Document has been uploaded and queued for analysis"))
	return doc, nil
}

func (s *IngestionService) setUploadStatus(ctx context.Context, doc *models.UploadedDocument, status string, progress int) error {
	doc.Status = status
	doc.Progress = progress
	doc.UpdatedAt = now().UTC()
	return s.db.WithContext(ctx).Model(doc).
		Updates(map[string]interface{}{"status": status, "progress": progress, "updated_at": doc.UpdatedAt}).Error
}

func isUploadPending(status string) bool {
	return status == models.UploadUploading || status == models.UploadProcessing
}

// UploadStatus returns an upload, asking the API for progress while it is pending.
func (s *IngestionService) UploadStatus(ctx context.Context, id string) (*models.UploadedDocument, error) {
	var doc models.UploadedDocument
	if err := s.db.WithContext(ctx).First(&doc, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("upload", id)
		}
		return nil, fmt.Errorf("failed to load upload: %w", err)
	}
	if !isUploadPending(doc.Status) {
		return &doc, nil
	}
	st, err := s.api.GetUploadStatus(ctx, doc.ID)
	if err != nil {
		s.log.Warnf("[IngestionService] status of %s unavailable: %v", doc.ID, err)
		return &doc, nil
	}
	if err := s.setUploadStatus(ctx, &doc, st.Status, st.Progress); err != nil {
		return nil, fmt.Errorf("failed to update upload: %w", err)
	}
	return &doc, nil
}

// ListUploads returns uploads, newest first.
func (s *IngestionService) ListUploads(ctx context.Context) ([]models.UploadedDocument, error) {
	var docs []models.UploadedDocument
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("failed to list uploads: %w", err)
	}
	return docs, nil
}

// RefreshUploads polls the API for every pending upload and returns how many changed.
func (s *IngestionService) RefreshUploads(ctx context.Context) (int, error) {
	var pending []models.UploadedDocument
	err := s.db.WithContext(ctx).
		Where("status IN ?", []string{models.UploadUploading, models.UploadProcessing}).
		Find(&pending).Error
	if err != nil {
		return 0, fmt.Errorf("failed to load pending uploads: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	ids := make([]string, 0, len(pending))
	byID := make(map[string]*models.UploadedDocument, len(pending))
	for i := range pending {
		ids = append(ids, pending[i].ID)
		byID[pending[i].ID] = &pending[i]
	}
	statuses, err := s.api.GetUploadedDocuments(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to refresh uploads: %w", err)
	}

	changed := 0
	for _, st := range statuses {
		doc, ok := byID[st.DocumentID]
		if !ok || (doc.Status == st.Status && doc.Progress == st.Progress) {
			continue
		}
		if err := s.setUploadStatus(ctx, doc, st.Status, st.Progress); err != nil {
			return changed, fmt.Errorf("failed to update upload %s: %w", doc.ID, err)
		}
		changed++
	}
	return changed, nil
}

// Monitor scans the enabled sources and refreshes pending uploads every
// interval until ctx is done.
func (s *IngestionService) Monitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	s.log.Infof("[Monitor] scanning every %s", interval)

	for {
		select {
		case <-ctx.Done():
			s.log.Info("[Monitor] stopped")
			return
		case <-ticker.C:
			s.tick(WithActor(ctx, SystemActor))
		}
	}
}

func (s *IngestionService) tick(ctx context.Context) {
	if report, err := s.ManualScan(ctx); err != nil {
		if _, ok := IsValidation(err); ok || errors.Is(err, ErrConflict) {
			s.log.Debugf("[Monitor] scan skipped: %v", err)
		} else if ctx.Err() == nil {
			s.log.Warnf("[Monitor] scan failed: %v", err)
		}
	} else {
		s.log.Infof("[Monitor] scanned %d sources, %d new documents", report.Scanned, len(report.Documents))
	}

	if n, err := s.RefreshUploads(ctx); err != nil {
		if ctx.Err() == nil {
			s.log.Warnf("[Monitor] upload refresh failed: %v", err)
		}
	} else if n > 0 {
		s.log.Infof("[Monitor] %d uploads updated", n)
	}
}
