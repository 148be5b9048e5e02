package controllers

import (
	"net/http"

	"github.com/civicwatch/backend/internal/middleware"
	"github.com/civicwatch/backend/internal/services"
	"github.com/gin-gonic/gin"
)

type EngagementController struct {
	engagement *services.EngagementService
}

func NewEngagementController(engagement *services.EngagementService) *EngagementController {
	return &EngagementController{engagement: engagement}
}

type CommentRequest struct {
	Content string `json:"content"`
}

func (ec *EngagementController) GetUpvotes(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	status, err := ec.engagement.Status(c.Request.Context(), middleware.CurrentSession(c), id)
	if err != nil {
		respondError(c, err, "Failed to fetch upvotes")
		return
	}
	c.JSON(http.StatusOK, status)
}

func (ec *EngagementController) Upvote(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	status, err := ec.engagement.Upvote(c.Request.Context(), middleware.CurrentSession(c), id)
	if err != nil {
		respondError(c, err, "Failed to upvote issue")
		return
	}
	c.JSON(http.StatusOK, status)
}

func (ec *EngagementController) RemoveUpvote(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	status, err := ec.engagement.RemoveUpvote(c.Request.Context(), middleware.CurrentSession(c), id)
	if err != nil {
		respondError(c, err, "Failed to remove upvote")
		return
	}
	c.JSON(http.StatusOK, status)
}

func (ec *EngagementController) GetComments(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	comments, err := ec.engagement.Comments(c.Request.Context(), middleware.CurrentSession(c), id)
	if err != nil {
		respondError(c, err, "Failed to fetch comments")
		return
	}
	c.JSON(http.StatusOK, comments)
}

func (ec *EngagementController) AddComment(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidBody(c)
		return
	}

	comment, err := ec.engagement.AddComment(c.Request.Context(), middleware.CurrentSession(c), id, req.Content)
	if err != nil {
		respondError(c, err, "Failed to add comment")
		return
	}
	c.JSON(http.StatusCreated, comment)
}
