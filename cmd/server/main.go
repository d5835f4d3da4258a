package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/provex/proctor-backend/internal/audit"
	"github.com/provex/proctor-backend/internal/config"
	"github.com/provex/proctor-backend/internal/database"
	"github.com/provex/proctor-backend/internal/handler"
	"github.com/provex/proctor-backend/internal/logger"
	"github.com/provex/proctor-backend/internal/presence"
	"github.com/provex/proctor-backend/internal/ratelimit"
	"github.com/provex/proctor-backend/internal/repository"
	"github.com/provex/proctor-backend/internal/router"
	"github.com/provex/proctor-backend/internal/service"
	"github.com/provex/proctor-backend/internal/validator"
	"github.com/provex/proctor-backend/internal/websocket"
	"github.com/provex/proctor-backend/internal/worker"
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
		Msg("Starting Provex Proctor Backend")

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

	// ─── Initialize Repositories ───────────────────────────────────────
	userRepo := repository.NewUserRepository(pool)
	examRepo := repository.NewExamRepository(pool)
	attemptRepo := repository.NewAttemptRepository(pool)
	presenceRepo := repository.NewPresenceRepository(pool)
	auditRepo := repository.NewAuditRepository(pool)
	heartbeatLog := repository.NewHeartbeatLogRepository(rdb)

	// ─── Initialize Integrity Components ───────────────────────────────
	tracker := presence.NewTracker(presenceRepo, cfg.Integrity, log)
	limiter := ratelimit.New(cfg.RateLimit)
	defer limiter.Close()
	sink := audit.NewRedisSink(rdb, log)
	hub := websocket.NewHub(rdb, log)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg, rdb)
	attemptService := service.NewAttemptService(attemptRepo, examRepo, sink, heartbeatLog, tracker, cfg.Integrity, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:    handler.NewAuthHandler(authService, userRepo),
		Exam:    handler.NewExamHandler(examRepo),
		Attempt: handler.NewAttemptHandler(attemptService),
		Proctor: handler.NewProctorHandler(attemptService, attemptRepo, auditRepo, presenceRepo, hub, log),
		WS:      handler.NewWSHandler(attemptService, hub, limiter, log, cfg.AllowedOrigins),
		Health:  handler.NewHealthHandler(pool, rdb),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	auditWorker := worker.NewAuditWorker(auditRepo, rdb, log)
	go auditWorker.Start(workerCtx)
	go tracker.Run(workerCtx)
	go hub.Run(workerCtx)

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, attemptService, limiter, handlers, cfg, log)

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

	// 2. Stop background workers: the audit worker drains its queue and
	// the presence tracker performs its final flush.
	workerCancel()
	time.Sleep(2 * time.Second) // Allow workers to drain.

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
