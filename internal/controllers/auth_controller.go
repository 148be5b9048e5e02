package controllers

import (
	"net/http"

	"github.com/civicwatch/backend/internal/services"
	"github.com/gin-gonic/gin"
)

type AuthController struct {
	users *services.UserService
}

func NewAuthController(users *services.UserService) *AuthController {
	return &AuthController{users: users}
}

func (ac *AuthController) Register(c *gin.Context) {
	var req services.RegisterInput
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidBody(c)
		return
	}

	user, err := ac.users.Register(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, "Failed to create user")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Registration successful",
		"user":    user,
	})
}

func (ac *AuthController) RegisterAdmin(c *gin.Context) {
	var req services.RegisterInput
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidBody(c)
		return
	}

	user, err := ac.users.RegisterAdmin(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, "Failed to create admin")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Admin registration successful",
		"user":    user,
	})
}

func (ac *AuthController) Login(c *gin.Context) {
	var req services.LoginInput
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidBody(c)
		return
	}

	result, err := ac.users.Login(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, "Failed to log in")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   "Login successful",
		"token":     result.Token,
		"expiresAt": result.ExpiresAt,
		"user":      result.User,
	})
}
