package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/provex/proctor-backend/internal/config"
	"github.com/provex/proctor-backend/internal/handler"
	"github.com/provex/proctor-backend/internal/middleware"
	"github.com/provex/proctor-backend/internal/ratelimit"
	"github.com/provex/proctor-backend/internal/response"
	"github.com/provex/proctor-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth    *handler.AuthHandler
	Exam    *handler.ExamHandler
	Attempt *handler.AttemptHandler
	Proctor *handler.ProctorHandler
	WS      *handler.WSHandler
	Health  *handler.HealthHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	attemptService *service.AttemptService,
	limiter *ratelimit.Limiter,
	handlers *Handlers,
	cfg *config.Config,
	log zerolog.Logger,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Health check.
	router.GET("/health", handlers.Health.Health)

	// ─── 1. Auth Group (Public) ────────────────────────────────────────
	auth := router.Group("/api/v1/auth")
	{
		auth.POST("/login", handlers.Auth.Login)

		// Authenticated profile routes
		auth.POST("/logout", middleware.RequireStudentJWT(authService), handlers.Auth.Logout)
		auth.GET("/me", middleware.RequireStudentJWT(authService), handlers.Auth.Me)
	}

	// ─── 2. Student Group (JWT + Single Device) ────────────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(
		middleware.RequireStudentJWT(authService),
		middleware.CheckSingleDeviceSession(authService),
	)
	{
		studentAPI.GET("/exams", handlers.Exam.ListExams)
		studentAPI.GET("/exams/:examId", handlers.Exam.GetExam)

		studentAPI.POST("/exams/:examId/attempt", handlers.Attempt.StartAttempt)
		studentAPI.POST("/exams/:examId/attempt/resume", handlers.Attempt.ResumeAttempt)
		studentAPI.GET("/exams/:examId/attempt", handlers.Attempt.GetAttemptState)
		studentAPI.POST("/exams/:examId/attempt/submit", handlers.Attempt.SubmitAttempt)
		studentAPI.POST("/exams/:examId/attempt/violations", handlers.Attempt.ReportViolation)

		// Rate-limited hot path: question access shares the answer class.
		studentAPI.POST("/exams/:examId/attempt/questions/access",
			middleware.RateLimit(limiter, ratelimit.ClassAnswer, attemptService, log),
			handlers.Attempt.AccessQuestion,
		)
		studentAPI.POST("/exams/:examId/attempt/answers",
			middleware.RateLimit(limiter, ratelimit.ClassAnswer, attemptService, log),
			handlers.Attempt.SubmitAnswer,
		)
		studentAPI.POST("/exams/:examId/attempt/skips",
			middleware.RateLimit(limiter, ratelimit.ClassSkip, attemptService, log),
			handlers.Attempt.SkipQuestion,
		)
	}

	// ─── 3. WebSocket Group (Student WS Auth) ──────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireStudentWSAuth(authService))
	{
		ws.GET("/student/exams/:examId/stream", handlers.WS.AttemptStream)
	}

	// ─── 4. Proctor Group (JWT) ────────────────────────────────────────
	proctorAPI := router.Group("/api/v1/proctor")
	proctorAPI.Use(middleware.RequireProctorJWT(authService))
	{
		proctorAPI.GET("/exams/:examId/attempts", handlers.Proctor.ListAttempts)
		proctorAPI.GET("/exams/:examId/presence", handlers.Proctor.GetPresence)
		proctorAPI.POST("/exams/:examId/timer-sync", handlers.Proctor.BroadcastTimerSync)

		proctorAPI.GET("/attempts/:attemptId", handlers.Proctor.GetAttempt)
		proctorAPI.GET("/attempts/:attemptId/audit", handlers.Proctor.GetAuditTrail)
		proctorAPI.POST("/attempts/:attemptId/pause", handlers.Proctor.PauseAttempt)
		proctorAPI.POST("/attempts/:attemptId/unpause", handlers.Proctor.UnpauseAttempt)
		proctorAPI.POST("/attempts/:attemptId/invalidate", handlers.Proctor.InvalidateAttempt)
		proctorAPI.POST("/attempts/:attemptId/force-submit", handlers.Proctor.ForceSubmitAttempt)
	}

	return router
}
