package routes

import (
	"github.com/civicwatch/backend/internal/auth"
	"github.com/civicwatch/backend/internal/config"
	"github.com/civicwatch/backend/internal/controllers"
	"github.com/civicwatch/backend/internal/middleware"
	"github.com/civicwatch/backend/internal/models"
	"github.com/civicwatch/backend/internal/services"
	"github.com/civicwatch/backend/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Dependencies are the shared resources the routes are built on.
type Dependencies struct {
	Config *config.Config
	DB     *gorm.DB
	Tokens *auth.TokenManager
	Store  storage.Store

	// Redis and Limiter are nil when no Redis address is configured.
	Redis   *redis.Client
	Limiter middleware.RateLimiter
}

// SetupRoutes configures all application routes
func SetupRoutes(r *gin.Engine, deps Dependencies) {
	// Initialize services
	issueService := services.NewIssueService(deps.DB)
	engagementService := services.NewEngagementService(deps.DB)
	adminService := services.NewAdminService(deps.DB)
	userService := services.NewUserService(deps.DB, deps.Tokens, deps.Config.AdminKeys)
	uploadService := services.NewUploadService(deps.Store, deps.Config.MaxUploadBytes)

	// Initialize controllers
	authController := controllers.NewAuthController(userService)
	userController := controllers.NewUserController(userService, issueService)
	issueController := controllers.NewIssueController(issueService)
	engagementController := controllers.NewEngagementController(engagementService)
	adminController := controllers.NewAdminController(adminService, issueService)
	uploadController := controllers.NewUploadController(uploadService)
	healthController := controllers.NewHealthController(deps.DB, deps.Redis)

	r.GET("/health", healthController.Check)

	if local, ok := deps.Store.(*storage.LocalStore); ok {
		r.Static(local.URLPrefix(), local.Dir())
	}

	requireAuth := middleware.RequireAuth()
	requireAdmin := middleware.RequireRole(models.RoleAdmin)

	api := r.Group("/api")
	api.Use(middleware.Session(deps.Tokens))
	{
		// Auth routes
		authRoutes := api.Group("/auth")
		{
			authRoutes.POST("/register", authController.Register)
			authRoutes.POST("/register-admin", authController.RegisterAdmin)
			authRoutes.POST("/login", authController.Login)
			authRoutes.GET("/me", requireAuth, userController.GetCurrentUser)
		}

		// Issues
		issues := api.Group("/issues")
		{
			issues.GET("", issueController.GetIssues)
			issues.POST("", requireAuth, middleware.IssueRateLimiter(deps.Limiter), issueController.CreateIssue)
			issues.GET("/featured", issueController.GetFeaturedIssues)
			issues.GET("/:id", issueController.GetIssue)
			issues.PATCH("/:id", requireAdmin, issueController.UpdateIssueStatus)
			issues.DELETE("/:id", requireAuth, issueController.DeleteIssue)

			issues.GET("/:id/upvotes", engagementController.GetUpvotes)
			issues.POST("/:id/upvotes", requireAuth, engagementController.Upvote)
			issues.DELETE("/:id/upvotes", requireAuth, engagementController.RemoveUpvote)

			issues.GET("/:id/comments", engagementController.GetComments)
			issues.POST("/:id/comments", requireAuth, engagementController.AddComment)
		}

		api.GET("/user/issues", requireAuth, userController.GetUserIssues)
		api.POST("/upload", requireAuth, uploadController.UploadImages)

		// Admin routes
		admin := api.Group("/admin")
		admin.Use(requireAdmin)
		{
			admin.GET("/issues", adminController.GetIssues)
			admin.GET("/issues/:id", adminController.GetIssue)
			admin.PATCH("/issues/:id", adminController.UpdateIssue)
			admin.GET("/overview", adminController.GetOverview)
			admin.GET("/stats", adminController.GetStats)
		}
	}
}
