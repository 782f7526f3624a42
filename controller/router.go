package controller

import (
	"github.com/cntrlcomply/backend/middleware"
	"github.com/gin-gonic/gin"
)

// RouterConfig carries the middleware settings for NewRouter.
type RouterConfig struct {
	CORSOrigins []string
	// Global applies to every route; Strict additionally guards writes that
	// reach the provider or storage. Either may be nil.
	Global *middleware.RateLimiter
	Strict *middleware.RateLimiter
}

// NewRouter wires every route onto a gin engine.
func NewRouter(c *Controller, cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.Logger(c.log), middleware.CORSMiddleware(cfg.CORSOrigins))
	if cfg.Global != nil {
		router.Use(cfg.Global.Limit())
	}
	router.Use(middleware.Session())

	strict := func(h gin.HandlerFunc) []gin.HandlerFunc {
		if cfg.Strict == nil {
			return []gin.HandlerFunc{h}
		}
		return []gin.HandlerFunc{cfg.Strict.Limit(), h}
	}

	// Healthcheck endpoint
	router.GET("/health", c.Health)

	router.GET("/workspace", c.GetWorkspace)
	router.PUT("/workspace/tab", c.SetActiveTab)
	router.POST("/workspace/select", c.SelectRegulation)

	router.GET("/dashboard", c.GetDashboard)
	router.GET("/regulations", c.ListRegulations)
	router.GET("/regulations/:id", c.GetRegulation)
	router.POST("/regulations/:id/analyze", strict(c.AnalyzeRegulation)...)

	router.GET("/gaps", c.ListGaps)
	router.GET("/gaps/analysts", c.Analysts)
	router.POST("/gaps/:id/acknowledge", c.AcknowledgeGap)
	router.DELETE("/gaps/:id", c.DismissGap)
	router.POST("/gaps/:id/assign", c.AssignGap)
	router.POST("/gaps/:id/amendments", strict(c.GenerateAmendments)...)

	router.GET("/amendments", c.ListAmendments)
	router.GET("/amendments/:id", c.GetAmendment)
	router.GET("/amendments/:id/diff", c.AmendmentDiff)
	router.POST("/amendments/:id/approve", c.ApproveAmendment)
	router.POST("/amendments/:id/reject", c.RejectAmendment)
	router.PUT("/amendments/:id", c.EditAmendment)

	router.GET("/analysis/documents", c.ListAnalysisDocuments)
	router.POST("/analysis/cross-impact", strict(c.RunCrossImpact)...)
	router.GET("/analysis/runs", c.ListAnalysisRuns)

	router.GET("/reports", c.ListReports)
	router.POST("/reports", strict(c.GenerateReport)...)
	router.GET("/reports/:id", c.GetReport)
	router.GET("/reports/:id/export", c.ExportReport)

	router.GET("/audit", c.ListAuditEvents)
	router.GET("/audit/export", c.ExportAuditEvents)
	router.GET("/audit/summary", c.AuditSummary)

	router.GET("/users", c.ListUsers)
	router.POST("/users", c.AddUser)
	router.PATCH("/users/:id/deactivate", c.DeactivateUser)
	router.PUT("/users/:id/role", c.UpdateUserRole)
	router.GET("/roles", c.ListRoles)
	router.GET("/roles/:id/permissions/:permission", c.CheckPermission)

	router.GET("/ingestion/sources", c.ListSources)
	router.PATCH("/ingestion/sources/:id", c.ToggleSource)
	router.POST("/ingestion/scan", strict(c.ManualScan)...)
	router.GET("/ingestion/documents", c.ListIngestedDocuments)
	router.POST("/ingestion/documents", strict(c.IngestURL)...)
	router.POST("/ingestion/uploads", strict(c.UploadDocument)...)
	router.GET("/ingestion/uploads", c.ListUploads)
	router.GET("/ingestion/uploads/:id", c.UploadStatus)

	router.GET("/search", c.Search)
	router.POST("/search/reindex", strict(c.Reindex)...)

	// document API consumed by the analysis client
	api := router.Group("/api")
	api.GET("/documents", c.ListAnalysisDocuments)
	api.GET("/documents/:id/content", c.GetDocumentContent)
	api.POST("/analyze", strict(c.RunCrossImpact)...)

	router.GET("/notifications", c.Notifications)
	router.GET("/ws/notifications", c.NotificationStream)

	return router
}
