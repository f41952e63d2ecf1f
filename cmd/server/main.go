package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/edupulse/portal-backend/internal/clock"
	"github.com/edupulse/portal-backend/internal/config"
	"github.com/edupulse/portal-backend/internal/database"
	"github.com/edupulse/portal-backend/internal/gate"
	"github.com/edupulse/portal-backend/internal/handler"
	"github.com/edupulse/portal-backend/internal/logger"
	"github.com/edupulse/portal-backend/internal/repository"
	"github.com/edupulse/portal-backend/internal/router"
	"github.com/edupulse/portal-backend/internal/service"
	"github.com/edupulse/portal-backend/internal/validator"
	"github.com/edupulse/portal-backend/internal/worker"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting EduPulse Portal Backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Start Trusted Clock ──────────────────────────────────────────
	wall := clockwork.NewRealClock()
	trustedClock := clock.New(cfg.TimeServiceURL, clock.Source(cfg.ClockSource), cfg.TimeFetchTimeout, wall, log)
	trustedClock.Start(ctx)

	// ─── Initialize Repositories ───────────────────────────────────────
	studentRepo := repository.NewStudentRepository(pool)
	adminRepo := repository.NewAdminRepository(pool)
	examRepo := repository.NewExamRepository(pool)
	sessionRepo := repository.NewExamSessionRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg, rdb)
	studentService := service.NewStudentService(studentRepo, authService, log)
	adminService := service.NewAdminService(adminRepo, authService, log)
	examService := service.NewExamService(examRepo, rdb, log)
	sessionService := service.NewSessionService(sessionRepo, rdb, log)
	lobbyService := service.NewLobbyService(examService, sessionService, trustedClock, log)
	entryGate := gate.New(trustedClock, sessionService, sessionService, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:          handler.NewAuthHandler(authService, studentService, adminService),
		StudentPortal: handler.NewStudentPortalHandler(lobbyService, sessionService, entryGate),
		StudentAdmin:  handler.NewStudentAdminHandler(studentService, authService),
		ExamAdmin:     handler.NewExamAdminHandler(examService),
		Time:          handler.NewTimeHandler(trustedClock),
		WS:            handler.NewWSHandler(lobbyService, sessionService, trustedClock, wall, log, cfg.AllowedOrigins),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	refreshWorker := worker.NewRefreshWorker(examService, rdb, log)
	go refreshWorker.Start(workerCtx)

	// ─── Prewarm Schedule Cache ───────────────────────────────────────
	// Load the published schedule into Redis BEFORE accepting traffic so the
	// first lobby requests never race a cold cache.
	if err := examService.WarmScheduleCache(ctx); err != nil {
		log.Warn().Err(err).Msg("Schedule cache prewarm failed")
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop background workers and wait for queues to drain.
	workerCancel()
	time.Sleep(2 * time.Second) // Allow workers to drain.

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
