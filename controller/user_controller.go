package controller

import (
	"net/http"

	services "github.com/cntrlcomply/backend/service"
	"github.com/gin-gonic/gin"
)

func (c *Controller) ListUsers(ctx *gin.Context) {
	users, err := c.users.ListUsers(ctx.Request.Context())
	if err != nil {
		c.fail(ctx, "ListUsers", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"users": users, "total": len(users)})
}

// AddUser creates a user; the id is derived from the name.
func (c *Controller) AddUser(ctx *gin.Context) {
	var req services.NewUserRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, err)
		return
	}
	user, err := c.users.AddUser(ctx.Request.Context(), req)
	if err != nil {
		c.fail(ctx, "AddUser", err)
		return
	}
	ctx.JSON(http.StatusCreated, user)
}

func (c *Controller) DeactivateUser(ctx *gin.Context) {
	user, err := c.users.DeactivateUser(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		c.fail(ctx, "DeactivateUser", err)
		return
	}
	ctx.JSON(http.StatusOK, user)
}

func (c *Controller) UpdateUserRole(ctx *gin.Context) {
	var req struct {
		Role string `json:"role" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, err)
		return
	}
	user, err := c.users.UpdateRole(ctx.Request.Context(), ctx.Param("id"), req.Role)
	if err != nil {
		c.fail(ctx, "UpdateUserRole", err)
		return
	}
	ctx.JSON(http.StatusOK, user)
}

func (c *Controller) ListRoles(ctx *gin.Context) {
	roles, err := c.users.ListRoles(ctx.Request.Context())
	if err != nil {
		c.fail(ctx, "ListRoles", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"roles": roles})
}

// CheckPermission reports whether a role grants a permission.
func (c *Controller) CheckPermission(ctx *gin.Context) {
	role, perm := ctx.Param("id"), ctx.Param("permission")
	allowed, err := c.users.HasPermission(ctx.Request.Context(), role, perm)
	if err != nil {
		c.fail(ctx, "CheckPermission", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"role": role, "permission": perm, "allowed": allowed})
}
