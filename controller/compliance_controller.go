package controller

import (
	"bytes"
	"fmt"
	"net/http"

	services "github.com/cntrlcomply/backend/service"
	"github.com/gin-gonic/gin"
)

// GenerateReport builds the executive report for a regulation.
func (c *Controller) GenerateReport(ctx *gin.Context) {
	var req struct {
		RegulationID string `json:"regulationId" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, err)
		return
	}
	report, err := c.reports.Generate(ctx.Request.Context(), req.RegulationID)
	if err != nil {
		c.fail(ctx, "GenerateReport", err)
		return
	}
	ctx.JSON(http.StatusCreated, report)
}

func (c *Controller) ListReports(ctx *gin.Context) {
	reports, err := c.reports.List(ctx.Request.Context(), ctx.Query("regulationId"))
	if err != nil {
		c.fail(ctx, "ListReports", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"reports": reports, "total": len(reports)})
}

func (c *Controller) GetReport(ctx *gin.Context) {
	report, err := c.reports.Get(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		c.fail(ctx, "GetReport", err)
		return
	}
	ctx.JSON(http.StatusOK, report)
}

// ExportReport downloads a report as markdown (default) or JSON.
func (c *Controller) ExportReport(ctx *gin.Context) {
	format := ctx.DefaultQuery("format", services.FormatMarkdown)
	body, contentType, err := c.reports.Export(ctx.Request.Context(), ctx.Param("id"), format)
	if err != nil {
		c.fail(ctx, "ExportReport", err)
		return
	}
	ext := "md"
	if contentType == "application/json" {
		ext = "json"
	}
	ctx.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.%s"`, ctx.Param("id"), ext))
	ctx.Data(http.StatusOK, contentType, body)
}

func bindAuditFilter(ctx *gin.Context) (services.AuditFilter, bool) {
	var filter services.AuditFilter
	if err := ctx.ShouldBindQuery(&filter); err != nil {
		badRequest(ctx, err)
		return filter, false
	}
	return filter, true
}

// ListAuditEvents returns the audit trail, newest first.
func (c *Controller) ListAuditEvents(ctx *gin.Context) {
	filter, ok := bindAuditFilter(ctx)
	if !ok {
		return
	}
	events, err := c.audit.List(ctx.Request.Context(), filter)
	if err != nil {
		c.fail(ctx, "ListAuditEvents", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"events": events, "total": len(events)})
}

// ExportAuditEvents streams the filtered trail as CSV.
func (c *Controller) ExportAuditEvents(ctx *gin.Context) {
	filter, ok := bindAuditFilter(ctx)
	if !ok {
		return
	}
	var buf bytes.Buffer
	n, err := c.audit.ExportCSV(ctx.Request.Context(), &buf, filter)
	if err != nil {
		c.fail(ctx, "ExportAuditEvents", err)
		return
	}
	c.log.Infof("[ExportAuditEvents] exported %d events", n)
	ctx.Header("Content-Disposition", `attachment; filename="audit-trail.csv"`)
	ctx.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func (c *Controller) AuditSummary(ctx *gin.Context) {
	filter, ok := bindAuditFilter(ctx)
	if !ok {
		return
	}
	summary, err := c.audit.Summary(ctx.Request.Context(), filter)
	if err != nil {
		c.fail(ctx, "AuditSummary", err)
		return
	}
	ctx.JSON(http.StatusOK, summary)
}
