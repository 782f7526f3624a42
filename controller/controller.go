package controller

import (
	"errors"
	"net/http"

	"github.com/cntrlcomply/backend/middleware"
	"github.com/cntrlcomply/backend/notify"
	"github.com/cntrlcomply/backend/provider"
	services "github.com/cntrlcomply/backend/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Controller serves the HTTP API on top of the services.
type Controller struct {
	log        *zap.SugaredLogger
	workspace  *services.WorkspaceService
	regulatory *services.RegulatoryService
	gaps       *services.GapService
	amendments *services.AmendmentService
	analysis   *services.AnalysisService
	reports    *services.ReportService
	audit      *services.AuditService
	users      *services.UserService
	ingestion  *services.IngestionService
	search     *services.SearchService
	hub        *notify.Hub
}

// Services bundles everything the controller dispatches to.
type Services struct {
	Workspace  *services.WorkspaceService
	Regulatory *services.RegulatoryService
	Gaps       *services.GapService
	Amendments *services.AmendmentService
	Analysis   *services.AnalysisService
	Reports    *services.ReportService
	Audit      *services.AuditService
	Users      *services.UserService
	Ingestion  *services.IngestionService
	Search     *services.SearchService
}

func NewController(svc Services, hub *notify.Hub, log *zap.SugaredLogger) *Controller {
	return &Controller{
		log:        log,
		workspace:  svc.Workspace,
		regulatory: svc.Regulatory,
		gaps:       svc.Gaps,
		amendments: svc.Amendments,
		analysis:   svc.Analysis,
		reports:    svc.Reports,
		audit:      svc.Audit,
		users:      svc.Users,
		ingestion:  svc.Ingestion,
		search:     svc.Search,
		hub:        hub,
	}
}

// fail writes the error response matching err and logs server-side failures.
func (c *Controller) fail(ctx *gin.Context, op string, err error) {
	status, title, details := classify(err)
	if status >= http.StatusInternalServerError {
		c.log.Errorf("[%s] %v", op, err)
	} else {
		c.log.Debugf("[%s] %v", op, err)
	}
	_ = ctx.Error(err)
	ctx.JSON(status, gin.H{"error": title, "details": details})
}

func classify(err error) (int, string, string) {
	if v, ok := services.IsValidation(err); ok {
		return http.StatusBadRequest, v.Title, v.Description
	}
	switch {
	case errors.Is(err, services.ErrInsufficientSelection):
		return http.StatusBadRequest, "Selection Required", "Please select at least 2 documents for cross-impact analysis"
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound, "Not Found", err.Error()
	case errors.Is(err, services.ErrInvalidTransition):
		return http.StatusConflict, "Invalid transition", err.Error()
	case errors.Is(err, services.ErrConflict):
		return http.StatusConflict, "Conflict", err.Error()
	case errors.Is(err, provider.ErrProviderFailure):
		return http.StatusBadGateway, "API Error", err.Error()
	default:
		return http.StatusInternalServerError, "Internal Server Error", err.Error()
	}
}

// badRequest reports a body or query that could not be bound.
func badRequest(ctx *gin.Context, err error) {
	ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
}

func sessionID(ctx *gin.Context) string {
	return ctx.Writer.Header().Get(middleware.HeaderSessionID)
}

// Health reports liveness.
func (c *Controller) Health(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "ok", "subscribers": c.hub.Count()})
}

// Notifications returns the toasts still held in the hub backlog.
func (c *Controller) Notifications(ctx *gin.Context) {
	toasts := c.hub.Recent()
	ctx.JSON(http.StatusOK, gin.H{"toasts": toasts, "total": len(toasts)})
}

// NotificationStream upgrades to a websocket carrying every published toast.
func (c *Controller) NotificationStream(ctx *gin.Context) {
	c.hub.ServeWS(ctx.Writer, ctx.Request)
}
