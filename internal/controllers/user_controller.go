package controllers

import (
	"net/http"

	"github.com/civicwatch/backend/internal/middleware"
	"github.com/civicwatch/backend/internal/services"
	"github.com/gin-gonic/gin"
)

// UserController serves the caller's own account and reports.
type UserController struct {
	users  *services.UserService
	issues *services.IssueService
}

func NewUserController(users *services.UserService, issues *services.IssueService) *UserController {
	return &UserController{users: users, issues: issues}
}

func (uc *UserController) GetCurrentUser(c *gin.Context) {
	user, err := uc.users.Me(c.Request.Context(), middleware.CurrentSession(c))
	if err != nil {
		respondError(c, err, "Failed to get user")
		return
	}
	c.JSON(http.StatusOK, user)
}

func (uc *UserController) GetUserIssues(c *gin.Context) {
	issues, err := uc.issues.ListByUser(c.Request.Context(), middleware.CurrentSession(c))
	if err != nil {
		respondError(c, err, "Failed to fetch issues")
		return
	}
	c.JSON(http.StatusOK, issues)
}
