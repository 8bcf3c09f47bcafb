package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/quiz-service/internal/auth"
	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/monitoring"
	"github.com/SAP-F-2025/quiz-service/internal/services"
	"github.com/SAP-F-2025/quiz-service/internal/utils"
)

// RouterConfig carries the route-level settings of the API
type RouterConfig struct {
	RateLimitRPS   float64
	RateLimitBurst int
}

type HandlerManager struct {
	serviceManager    services.ServiceManager
	userHandler       *UserHandler
	testHandler       *TestHandler
	questionHandler   *QuestionHandler
	attemptHandler    *AttemptHandler
	statisticsHandler *StatisticsHandler
	exportHandler     *ExportHandler
	authMiddleware    *AuthMiddleware
	authLimiter       *IPRateLimiter
	metrics           *monitoring.Metrics
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	verifier auth.Verifier,
	metrics *monitoring.Metrics,
	config RouterConfig,
	logger utils.Logger,
) *HandlerManager {
	return &HandlerManager{
		serviceManager:    serviceManager,
		userHandler:       NewUserHandler(serviceManager.Users(), logger),
		testHandler:       NewTestHandler(serviceManager.Tests(), logger),
		questionHandler:   NewQuestionHandler(serviceManager.Tests(), logger),
		attemptHandler:    NewAttemptHandler(serviceManager.Attempts(), logger),
		statisticsHandler: NewStatisticsHandler(serviceManager.Statistics(), logger),
		exportHandler:     NewExportHandler(serviceManager.Export(), logger),
		authMiddleware:    NewAuthMiddleware(verifier, logger),
		authLimiter:       NewIPRateLimiter(config.RateLimitRPS, config.RateLimitBurst),
		metrics:           metrics,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	router.GET("/health", hm.health)
	if hm.metrics != nil {
		router.GET("/metrics", hm.metrics.PrometheusHandler())
	}

	requireAuth := hm.authMiddleware.Require()
	optionalAuth := hm.authMiddleware.Optional()
	adminOnly := hm.authMiddleware.RequireRole(models.RoleAdmin)

	v1 := router.Group("/api/v1")
	{
		// User routes
		users := v1.Group("/users")
		{
			users.POST("/register", RateLimitMiddleware(hm.authLimiter), hm.userHandler.Register)
			users.POST("/login", RateLimitMiddleware(hm.authLimiter), hm.userHandler.Login)

			users.POST("/logout", requireAuth, hm.userHandler.Logout)
			users.GET("/me", requireAuth, hm.userHandler.Me)
			users.PUT("/password", requireAuth, hm.userHandler.ChangePassword)

			// self or admin, checked by the service
			users.GET("/:id", requireAuth, hm.userHandler.GetUser)

			users.GET("", requireAuth, adminOnly, hm.userHandler.ListUsers)
			users.PUT("/:id/role", requireAuth, adminOnly, hm.userHandler.SetRole)
		}

		// Test catalog routes
		tests := v1.Group("/tests")
		{
			tests.GET("", optionalAuth, hm.testHandler.ListTests)
			tests.GET("/:id", optionalAuth, hm.testHandler.GetTest)
			tests.GET("/:id/questions", optionalAuth, hm.testHandler.ListQuestions)

			tests.POST("", requireAuth, adminOnly, hm.testHandler.CreateTest)
			tests.PUT("/:id", requireAuth, adminOnly, hm.testHandler.UpdateTest)
			tests.DELETE("/:id", requireAuth, adminOnly, hm.testHandler.DeleteTest)
			tests.POST("/:id/questions", requireAuth, adminOnly, hm.testHandler.AddQuestion)
			tests.PUT("/:id/questions/order", requireAuth, adminOnly, hm.testHandler.ReorderQuestions)

			tests.GET("/:id/statistics", requireAuth, hm.statisticsHandler.GetTestStatistics)
			tests.GET("/:id/results/export", requireAuth, adminOnly, hm.exportHandler.ExportTestResults)
		}

		// Question routes
		questions := v1.Group("/questions")
		{
			questions.GET("/:id", optionalAuth, hm.questionHandler.GetQuestion)
			questions.GET("/:id/options", optionalAuth, hm.questionHandler.ListOptions)

			questions.PUT("/:id", requireAuth, adminOnly, hm.questionHandler.UpdateQuestion)
			questions.DELETE("/:id", requireAuth, adminOnly, hm.questionHandler.DeleteQuestion)
			questions.POST("/:id/options", requireAuth, adminOnly, hm.questionHandler.AddOption)
		}

		options := v1.Group("/options", requireAuth, adminOnly)
		{
			options.PUT("/:id", hm.questionHandler.UpdateOption)
			options.DELETE("/:id", hm.questionHandler.DeleteOption)
		}

		// Attempt routes
		attempts := v1.Group("/attempts", requireAuth)
		{
			attempts.POST("/start", hm.attemptHandler.StartAttempt)
			attempts.POST("/expire-overdue", adminOnly, hm.attemptHandler.ExpireOverdue)
			attempts.GET("/user/:userId", hm.attemptHandler.ListUserAttempts)

			attempts.GET("/:id", hm.attemptHandler.GetAttempt)
			attempts.POST("/:id/answers", hm.attemptHandler.SubmitAnswer)
			attempts.POST("/:id/finish", hm.attemptHandler.FinishAttempt)
			attempts.POST("/:id/expire", hm.attemptHandler.ExpireAttempt)
			attempts.GET("/:id/details", hm.attemptHandler.GetAttemptDetails)
			attempts.PUT("/:id/answers/:questionId/grade", adminOnly, hm.attemptHandler.GradeAnswer)
		}

		// Statistics routes
		statistics := v1.Group("/statistics", requireAuth)
		{
			statistics.GET("/global", hm.statisticsHandler.GetGlobalStatistics)
			statistics.GET("/user/:id", hm.statisticsHandler.GetUserStatistics)
		}
	}
}

func (hm *HandlerManager) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	if err := hm.serviceManager.HealthCheck(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, models.Response{
			Success:   false,
			Error:     err.Error(),
			Code:      "UNHEALTHY",
			Timestamp: time.Now(),
		})
		return
	}
	c.JSON(http.StatusOK, models.Response{
		Success:   true,
		Data:      gin.H{"status": "ok"},
		Timestamp: time.Now(),
	})
}
