package controller

import (
	"net/http"

	services "github.com/cntrlcomply/backend/service"
	"github.com/gin-gonic/gin"
)

// GetWorkspace returns the caller's session, creating it on first use.
func (c *Controller) GetWorkspace(ctx *gin.Context) {
	session, err := c.workspace.Get(ctx.Request.Context(), sessionID(ctx))
	if err != nil {
		c.fail(ctx, "GetWorkspace", err)
		return
	}
	ctx.JSON(http.StatusOK, session)
}

// SetActiveTab switches the session to another tab.
func (c *Controller) SetActiveTab(ctx *gin.Context) {
	var req struct {
		Tab string `json:"tab" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, err)
		return
	}
	session, err := c.workspace.SetActiveTab(ctx.Request.Context(), sessionID(ctx), req.Tab)
	if err != nil {
		c.fail(ctx, "SetActiveTab", err)
		return
	}
	ctx.JSON(http.StatusOK, session)
}

// SelectRegulation applies a regulatory card action to the session.
func (c *Controller) SelectRegulation(ctx *gin.Context) {
	var req struct {
		RegulationID string `json:"regulationId" binding:"required"`
		Action       string `json:"action" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, err)
		return
	}
	session, err := c.workspace.SelectRegulation(ctx.Request.Context(), sessionID(ctx), req.RegulationID, req.Action)
	if err != nil {
		c.fail(ctx, "SelectRegulation", err)
		return
	}
	ctx.JSON(http.StatusOK, session)
}

// GetDashboard returns the stats and regulatory cards.
func (c *Controller) GetDashboard(ctx *gin.Context) {
	dashboard, err := c.regulatory.Dashboard(ctx.Request.Context())
	if err != nil {
		c.fail(ctx, "GetDashboard", err)
		return
	}
	ctx.JSON(http.StatusOK, dashboard)
}

// ListRegulations filters regulatory items by status, priority and type.
func (c *Controller) ListRegulations(ctx *gin.Context) {
	var filter services.RegulatoryFilter
	if err := ctx.ShouldBindQuery(&filter); err != nil {
		badRequest(ctx, err)
		return
	}
	items, err := c.regulatory.List(ctx.Request.Context(), filter)
	if err != nil {
		c.fail(ctx, "ListRegulations", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"regulations": items, "total": len(items)})
}

func (c *Controller) GetRegulation(ctx *gin.Context) {
	item, err := c.regulatory.Get(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		c.fail(ctx, "GetRegulation", err)
		return
	}
	ctx.JSON(http.StatusOK, item)
}

// AnalyzeRegulation asks the provider for gaps and stores any new ones.
func (c *Controller) AnalyzeRegulation(ctx *gin.Context) {
	gaps, err := c.gaps.AnalyzeRegulation(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		c.fail(ctx, "AnalyzeRegulation", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"gaps": gaps, "total": len(gaps)})
}
