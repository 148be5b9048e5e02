package controllers

import (
	"net/http"

	"github.com/civicwatch/backend/internal/middleware"
	"github.com/civicwatch/backend/internal/services"
	"github.com/gin-gonic/gin"
)

// AdminController serves the moderation dashboard.
type AdminController struct {
	admin  *services.AdminService
	issues *services.IssueService
}

func NewAdminController(admin *services.AdminService, issues *services.IssueService) *AdminController {
	return &AdminController{admin: admin, issues: issues}
}

func (ac *AdminController) GetIssues(c *gin.Context) {
	issues, err := ac.admin.ListIssues(c.Request.Context(), middleware.CurrentSession(c))
	if err != nil {
		respondError(c, err, "Failed to fetch issues")
		return
	}
	c.JSON(http.StatusOK, issues)
}

func (ac *AdminController) GetIssue(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	issue, err := ac.admin.GetIssue(c.Request.Context(), middleware.CurrentSession(c), id)
	if err != nil {
		respondError(c, err, "Failed to fetch issue")
		return
	}
	c.JSON(http.StatusOK, issue)
}

func (ac *AdminController) UpdateIssue(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req services.TransitionInput
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidBody(c)
		return
	}

	issue, err := ac.issues.Transition(c.Request.Context(), middleware.CurrentSession(c), id, req)
	if err != nil {
		respondError(c, err, "Failed to update issue")
		return
	}
	c.JSON(http.StatusOK, issue)
}

func (ac *AdminController) GetOverview(c *gin.Context) {
	overview, err := ac.admin.Overview(c.Request.Context(), middleware.CurrentSession(c))
	if err != nil {
		respondError(c, err, "Failed to fetch overview")
		return
	}
	c.JSON(http.StatusOK, overview)
}

func (ac *AdminController) GetStats(c *gin.Context) {
	stats, err := ac.admin.Stats(c.Request.Context(), middleware.CurrentSession(c))
	if err != nil {
		respondError(c, err, "Failed to fetch stats")
		return
	}
	c.JSON(http.StatusOK, stats)
}
