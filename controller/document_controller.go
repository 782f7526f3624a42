package controller

import (
	"errors"
	"io"
	"net/http"

	"github.com/cntrlcomply/backend/models"
	services "github.com/cntrlcomply/backend/service"
	"github.com/gin-gonic/gin"
)

// ListAnalysisDocuments returns the documents selectable for cross-impact analysis.
func (c *Controller) ListAnalysisDocuments(ctx *gin.Context) {
	docs, err := c.analysis.ListDocuments(ctx.Request.Context(), ctx.Query("type"))
	if err != nil {
		c.fail(ctx, "ListAnalysisDocuments", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"documents": docs, "total": len(docs)})
}

func (c *Controller) GetDocumentContent(ctx *gin.Context) {
	doc, err := c.analysis.GetDocumentContent(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		c.fail(ctx, "GetDocumentContent", err)
		return
	}
	ctx.JSON(http.StatusOK, doc)
}

type crossImpactRequest struct {
	DocumentIDs   []string `json:"documentIds"`
	RegulationIDs []string `json:"regulationIds"`
	PolicyIDs     []string `json:"policyIds"`
}

func (r crossImpactRequest) ids() []string {
	ids := make([]string, 0, len(r.DocumentIDs)+len(r.RegulationIDs)+len(r.PolicyIDs))
	ids = append(ids, r.DocumentIDs...)
	ids = append(ids, r.RegulationIDs...)
	return append(ids, r.PolicyIDs...)
}

// RunCrossImpact analyzes the selected regulations against the selected policies.
func (c *Controller) RunCrossImpact(ctx *gin.Context) {
	var req crossImpactRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, err)
		return
	}
	run, err := c.analysis.RunCrossImpact(ctx.Request.Context(), req.ids())
	if err != nil {
		c.fail(ctx, "RunCrossImpact", err)
		return
	}
	ctx.JSON(http.StatusOK, run)
}

func (c *Controller) ListAnalysisRuns(ctx *gin.Context) {
	runs, err := c.analysis.ListRuns(ctx.Request.Context())
	if err != nil {
		c.fail(ctx, "ListAnalysisRuns", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"runs": runs, "total": len(runs)})
}

func (c *Controller) ListSources(ctx *gin.Context) {
	sources, err := c.ingestion.ListSources(ctx.Request.Context())
	if err != nil {
		c.fail(ctx, "ListSources", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"sources": sources})
}

// ToggleSource enables or disables monitoring of one source.
func (c *Controller) ToggleSource(ctx *gin.Context) {
	var req struct {
		Enabled *bool `json:"enabled" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, err)
		return
	}
	source, err := c.ingestion.ToggleSource(ctx.Request.Context(), ctx.Param("id"), *req.Enabled)
	if err != nil {
		c.fail(ctx, "ToggleSource", err)
		return
	}
	ctx.JSON(http.StatusOK, source)
}

// ManualScan checks every enabled source now.
func (c *Controller) ManualScan(ctx *gin.Context) {
	report, err := c.ingestion.ManualScan(ctx.Request.Context())
	if err != nil {
		c.fail(ctx, "ManualScan", err)
		return
	}
	ctx.JSON(http.StatusOK, report)
}

func (c *Controller) ListIngestedDocuments(ctx *gin.Context) {
	docs, err := c.ingestion.ListDocuments(ctx.Request.Context())
	if err != nil {
		c.fail(ctx, "ListIngestedDocuments", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"documents": docs, "total": len(docs)})
}

// IngestURL queues a document published at a URL.
func (c *Controller) IngestURL(ctx *gin.Context) {
	var req struct {
		URL      string            `json:"url"`
		Metadata map[string]string `json:"metadata"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, err)
		return
	}
	doc, err := c.ingestion.IngestURL(ctx.Request.Context(), req.URL, req.Metadata)
	if err != nil {
		c.fail(ctx, "IngestURL", err)
		return
	}
	ctx.JSON(http.StatusAccepted, doc)
}

// UploadDocument accepts a multipart upload. Oversized files are never read;
// the declared size is enough for the service to reject them.
func (c *Controller) UploadDocument(ctx *gin.Context) {
	form := services.UploadForm{
		Title:        ctx.PostForm("title"),
		Description:  ctx.PostForm("description"),
		Tag:          ctx.PostForm("tag"),
		DocumentDate: ctx.PostForm("documentDate"),
	}

	file, header, err := ctx.Request.FormFile("file")
	switch {
	case err == nil:
		defer file.Close()
		form.FileName = header.Filename
		form.ContentType = header.Header.Get("Content-Type")
		form.Size = header.Size
		if header.Size <= models.MaxUploadSize {
			data, err := io.ReadAll(io.LimitReader(file, models.MaxUploadSize+1))
			if err != nil {
				c.fail(ctx, "UploadDocument", err)
				return
			}
			form.Data = data
		}
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		// left to validation
	default:
		badRequest(ctx, err)
		return
	}

	doc, err := c.ingestion.Upload(ctx.Request.Context(), form)
	if err != nil {
		c.fail(ctx, "UploadDocument", err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{
		"message":  "File uploaded successfully",
		"document": doc,
	})
}

func (c *Controller) ListUploads(ctx *gin.Context) {
	uploads, err := c.ingestion.ListUploads(ctx.Request.Context())
	if err != nil {
		c.fail(ctx, "ListUploads", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"uploads": uploads, "total": len(uploads)})
}

// UploadStatus returns an upload, polling the provider while it is in flight.
func (c *Controller) UploadStatus(ctx *gin.Context) {
	doc, err := c.ingestion.UploadStatus(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		c.fail(ctx, "UploadStatus", err)
		return
	}
	ctx.JSON(http.StatusOK, doc)
}

func (c *Controller) Search(ctx *gin.Context) {
	docs, err := c.search.Search(ctx.Request.Context(), ctx.Query("q"))
	if err != nil {
		c.fail(ctx, "Search", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"results": docs, "total": len(docs)})
}

// Reindex rebuilds the search index from the database.
func (c *Controller) Reindex(ctx *gin.Context) {
	n, err := c.search.Reindex(ctx.Request.Context())
	if err != nil {
		c.fail(ctx, "Reindex", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"indexed": n})
}
