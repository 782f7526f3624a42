package controller

import (
	"net/http"

	services "github.com/cntrlcomply/backend/service"
	"github.com/gin-gonic/gin"
)

// ListGaps returns the gaps, optionally for one regulation.
func (c *Controller) ListGaps(ctx *gin.Context) {
	gaps, err := c.gaps.ListGaps(ctx.Request.Context(), ctx.Query("regulationId"))
	if err != nil {
		c.fail(ctx, "ListGaps", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"gaps": gaps, "total": len(gaps)})
}

func (c *Controller) AcknowledgeGap(ctx *gin.Context) {
	gap, err := c.gaps.AcknowledgeGap(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		c.fail(ctx, "AcknowledgeGap", err)
		return
	}
	ctx.JSON(http.StatusOK, gap)
}

func (c *Controller) DismissGap(ctx *gin.Context) {
	if err := c.gaps.DismissGap(ctx.Request.Context(), ctx.Param("id")); err != nil {
		c.fail(ctx, "DismissGap", err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

// Analysts lists the users a gap can be assigned to.
func (c *Controller) Analysts(ctx *gin.Context) {
	users, err := c.gaps.Analysts(ctx.Request.Context())
	if err != nil {
		c.fail(ctx, "Analysts", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"analysts": users})
}

// AssignGap turns a gap into a task for an analyst.
func (c *Controller) AssignGap(ctx *gin.Context) {
	var req services.AssignRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, err)
		return
	}
	gap, err := c.gaps.AssignGap(ctx.Request.Context(), ctx.Param("id"), req)
	if err != nil {
		c.fail(ctx, "AssignGap", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "Task assigned successfully", "gap": gap})
}

// GenerateAmendments drafts policy amendments for a gap.
func (c *Controller) GenerateAmendments(ctx *gin.Context) {
	amendments, err := c.amendments.GenerateForGap(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		c.fail(ctx, "GenerateAmendments", err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"amendments": amendments, "total": len(amendments)})
}

func (c *Controller) ListAmendments(ctx *gin.Context) {
	amendments, err := c.amendments.ListAmendments(ctx.Request.Context(), ctx.Query("regulationId"))
	if err != nil {
		c.fail(ctx, "ListAmendments", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"amendments": amendments, "total": len(amendments)})
}

func (c *Controller) GetAmendment(ctx *gin.Context) {
	a, err := c.amendments.Get(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		c.fail(ctx, "GetAmendment", err)
		return
	}
	ctx.JSON(http.StatusOK, a)
}

// ApproveAmendment blocks for the review delay; a dropped connection cancels it.
func (c *Controller) ApproveAmendment(ctx *gin.Context) {
	a, err := c.amendments.Approve(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		c.fail(ctx, "ApproveAmendment", err)
		return
	}
	ctx.JSON(http.StatusOK, a)
}

func (c *Controller) RejectAmendment(ctx *gin.Context) {
	a, err := c.amendments.Reject(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		c.fail(ctx, "RejectAmendment", err)
		return
	}
	ctx.JSON(http.StatusOK, a)
}

// EditAmendment saves reviewer text over the proposed amendment.
func (c *Controller) EditAmendment(ctx *gin.Context) {
	var req struct {
		Text string `json:"text"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, err)
		return
	}
	a, err := c.amendments.SaveEdit(ctx.Request.Context(), ctx.Param("id"), req.Text)
	if err != nil {
		c.fail(ctx, "EditAmendment", err)
		return
	}
	ctx.JSON(http.StatusOK, a)
}

func (c *Controller) AmendmentDiff(ctx *gin.Context) {
	diff, err := c.amendments.Diff(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		c.fail(ctx, "AmendmentDiff", err)
		return
	}
	ctx.JSON(http.StatusOK, diff)
}
