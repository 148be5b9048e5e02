package controllers

import (
	"net/http"
	"strconv"

	"github.com/civicwatch/backend/internal/middleware"
	"github.com/civicwatch/backend/internal/services"
	"github.com/gin-gonic/gin"
)

type IssueController struct {
	issues *services.IssueService
}

func NewIssueController(issues *services.IssueService) *IssueController {
	return &IssueController{issues: issues}
}

// GetIssues handles GET /issues?status=&category=&priority=&search=&sort=&page=
func (ic *IssueController) GetIssues(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))

	filter := services.IssueFilter{
		Status:   c.Query("status"),
		Category: c.Query("category"),
		Priority: c.Query("priority"),
		Search:   c.Query("search"),
		Sort:     c.Query("sort"),
		Page:     page,
	}

	result, err := ic.issues.List(c.Request.Context(), middleware.CurrentSession(c), filter)
	if err != nil {
		respondError(c, err, "Failed to fetch issues")
		return
	}
	c.JSON(http.StatusOK, result)
}

func (ic *IssueController) GetFeaturedIssues(c *gin.Context) {
	issues, err := ic.issues.Featured(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to fetch featured issues")
		return
	}
	c.JSON(http.StatusOK, issues)
}

func (ic *IssueController) CreateIssue(c *gin.Context) {
	var req services.CreateIssueInput
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidBody(c)
		return
	}

	issue, err := ic.issues.Create(c.Request.Context(), middleware.CurrentSession(c), req)
	if err != nil {
		respondError(c, err, "Failed to create issue")
		return
	}
	c.JSON(http.StatusCreated, issue)
}

func (ic *IssueController) GetIssue(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	issue, err := ic.issues.Get(c.Request.Context(), middleware.CurrentSession(c), id)
	if err != nil {
		respondError(c, err, "Failed to fetch issue")
		return
	}
	c.JSON(http.StatusOK, issue)
}

// UpdateIssueStatus applies an admin status transition.
func (ic *IssueController) UpdateIssueStatus(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req services.TransitionInput
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidBody(c)
		return
	}

	issue, err := ic.issues.Transition(c.Request.Context(), middleware.CurrentSession(c), id, req)
	if err != nil {
		respondError(c, err, "Failed to update issue")
		return
	}
	c.JSON(http.StatusOK, issue)
}

func (ic *IssueController) DeleteIssue(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := ic.issues.Delete(c.Request.Context(), middleware.CurrentSession(c), id); err != nil {
		respondError(c, err, "Failed to delete issue")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
