package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/cbt-service/internal/metrics"
	"github.com/SAP-F-2025/cbt-service/internal/models"
	"github.com/SAP-F-2025/cbt-service/internal/repositories"
	"github.com/SAP-F-2025/cbt-service/internal/services"
	"github.com/SAP-F-2025/cbt-service/internal/utils"
)

type HandlerManager struct {
	examHandler    *ExamHandler
	attemptHandler *AttemptHandler
	resultHandler  *ResultHandler
	studentHandler *StudentHandler
	userHandler    *UserHandler

	serviceManager services.ServiceManager
	authMiddleware *CasdoorAuthMiddleware
	metrics        *metrics.Metrics
	rateLimiter    *RateLimiter
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	logger utils.Logger,
	authMiddleware *CasdoorAuthMiddleware,
	m *metrics.Metrics,
	rateLimiter *RateLimiter,
	userRepo repositories.UserRepository,
) *HandlerManager {
	return &HandlerManager{
		examHandler:    NewExamHandler(serviceManager.Exam(), logger),
		attemptHandler: NewAttemptHandler(serviceManager.Attempt(), logger),
		resultHandler:  NewResultHandler(serviceManager.Result(), logger),
		studentHandler: NewStudentHandler(serviceManager.Student(), logger),
		userHandler:    NewUserHandler(userRepo, logger),
		serviceManager: serviceManager,
		authMiddleware: authMiddleware,
		metrics:        m,
		rateLimiter:    rateLimiter,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	if hm.metrics != nil {
		router.Use(hm.metrics.MetricsMiddleware())
		router.GET("/metrics", hm.metrics.PrometheusHandler())
	}
	router.GET("/health", hm.health)

	staffOnly := hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher)
	attemptLimit := func(c *gin.Context) { c.Next() }
	if hm.rateLimiter != nil {
		attemptLimit = hm.rateLimiter.Middleware()
	}

	v1 := router.Group("/api/v1")
	v1.Use(hm.authMiddleware.AuthMiddleware())
	{
		exams := v1.Group("/exams")
		{
			// Authoring - Teachers and Admins only
			exams.POST("", staffOnly, hm.examHandler.CreateExam)
			exams.PUT("/:id", staffOnly, hm.examHandler.UpdateExam)
			exams.DELETE("/:id", staffOnly, hm.examHandler.DeleteExam)
			exams.GET("/:id/questions", staffOnly, hm.examHandler.ListQuestions)
			exams.POST("/:id/questions", staffOnly, hm.examHandler.AddQuestion)
			exams.POST("/:id/questions/import", staffOnly, hm.examHandler.ImportQuestions)
			exams.PUT("/:id/questions/:question_id", staffOnly, hm.examHandler.UpdateQuestion)
			exams.DELETE("/:id/questions/:question_id", staffOnly, hm.examHandler.DeleteQuestion)

			// Results - Teachers and Admins only
			exams.GET("/:id/results", staffOnly, hm.resultHandler.ListExamResults)
			exams.GET("/:id/results/export", staffOnly, hm.resultHandler.ExportExamResults)
			exams.POST("/:id/results/release", staffOnly, hm.resultHandler.ReleaseExamResults)

			// View exams - All authenticated users
			exams.GET("", hm.examHandler.ListExams)
			exams.GET("/:id", hm.examHandler.GetExam)

			// Sitting
			exams.POST("/:id/attempts", attemptLimit, hm.attemptHandler.StartAttempt)
			exams.GET("/:id/attempts/me", hm.attemptHandler.ListMyAttempts)
		}

		attempts := v1.Group("/attempts")
		{
			attempts.POST("/:id/submit", attemptLimit, hm.attemptHandler.SubmitAttempt)
			attempts.GET("/:id", hm.attemptHandler.GetAttempt)
			attempts.GET("/:id/result", hm.resultHandler.GetAttemptResult)
		}

		students := v1.Group("/students")
		{
			students.GET("/me", hm.studentHandler.GetMyProfile)
			students.GET("/me/stats", hm.studentHandler.GetStudentStats)
			students.POST("", staffOnly, hm.studentHandler.CreateStudent)
			students.POST("/import", staffOnly, hm.studentHandler.ImportStudents)
		}

		users := v1.Group("/users")
		{
			users.GET("/me", hm.userHandler.GetCurrentUser)
			users.GET("/:id", staffOnly, hm.userHandler.GetUser)
		}
	}
}

func (hm *HandlerManager) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	if err := hm.serviceManager.HealthCheck(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now().UTC()})
}
