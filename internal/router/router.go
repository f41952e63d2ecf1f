package router

import (
	"time"

	"github.com/edupulse/portal-backend/internal/config"
	"github.com/edupulse/portal-backend/internal/handler"
	"github.com/edupulse/portal-backend/internal/middleware"
	"github.com/edupulse/portal-backend/internal/response"
	"github.com/edupulse/portal-backend/internal/service"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth          *handler.AuthHandler
	StudentPortal *handler.StudentPortalHandler
	StudentAdmin  *handler.StudentAdminHandler
	ExamAdmin     *handler.ExamAdminHandler
	Time          *handler.TimeHandler
	WS            *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
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
	router.GET("/health", handlers.Time.HealthCheck)

	// ─── 0. Public Group (No Auth) ─────────────────────────────────────
	// The trusted time endpoint is public: login screens and lobbies poll it
	// before any token exists.
	router.GET("/api/v1/time", handlers.Time.GetServerTime)

	// Rate limiter for auth routes (30 requests per minute per IP).
	authLimiter := middleware.NewRateLimiter(30, time.Minute)

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/v1/auth")
	auth.Use(authLimiter.Middleware())
	{
		auth.POST("/student/login", handlers.Auth.StudentLogin)
		auth.POST("/admin/login", handlers.Auth.AdminLogin)

		// Authenticated profile routes
		auth.POST("/student/logout", middleware.RequireStudentJWT(authService), handlers.Auth.StudentLogout)
		auth.GET("/student/me", middleware.RequireStudentJWT(authService), handlers.Auth.GetStudentProfile)
		auth.GET("/admin/me", middleware.RequireAdminJWT(authService), handlers.Auth.GetAdminProfile)
	}

	// ─── 2. Student Group (JWT + Single Device) ────────────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(
		middleware.RequireStudentJWT(authService),
		middleware.CheckSingleDeviceSession(authService),
	)
	{
		studentAPI.GET("/lobby", handlers.StudentPortal.GetLobby)
		studentAPI.GET("/session", handlers.StudentPortal.GetActiveSession)
		studentAPI.GET("/exams/:exam_id/countdown", handlers.StudentPortal.GetCountdown)
		studentAPI.POST("/exams/:exam_id/instructions", handlers.StudentPortal.CheckEligibility)
		studentAPI.POST("/exams/:exam_id/instructions/dismiss", handlers.StudentPortal.DismissInstructions)
		studentAPI.POST("/exams/:exam_id/start", handlers.StudentPortal.StartSession)
		studentAPI.POST("/exams/:exam_id/complete", handlers.StudentPortal.CompleteSession)
	}

	// ─── 3. WebSocket Group (Student WS Auth) ──────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireStudentWSAuth(authService))
	{
		ws.GET("/student/exams/:exam_id/countdown", handlers.WS.CountdownStream)
	}

	// ─── 4. Admin Group (JWT) ──────────────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(middleware.RequireAdminJWT(authService))
	{
		// Exam catalog
		adminAPI.GET("/exams", handlers.ExamAdmin.ListExams)
		adminAPI.POST("/exams", handlers.ExamAdmin.CreateExam)
		adminAPI.GET("/exams/:exam_id", handlers.ExamAdmin.GetExam)
		adminAPI.PUT("/exams/:exam_id", handlers.ExamAdmin.UpdateExam)
		adminAPI.DELETE("/exams/:exam_id", handlers.ExamAdmin.DeleteExam)
		adminAPI.POST("/exams/:exam_id/publish", handlers.ExamAdmin.PublishExam)
		adminAPI.POST("/exams/:exam_id/archive", handlers.ExamAdmin.ArchiveExam)

		// Student accounts
		adminAPI.GET("/students", handlers.StudentAdmin.ListStudents)
		adminAPI.POST("/students", handlers.StudentAdmin.CreateStudent)
		adminAPI.PUT("/students/:student_id", handlers.StudentAdmin.UpdateStudent)
		adminAPI.DELETE("/students/:student_id", handlers.StudentAdmin.DeleteStudent)
		adminAPI.POST("/students/:student_id/reset-session", handlers.StudentAdmin.ResetStudentSession)
	}

	return router
}
