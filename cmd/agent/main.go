package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/nexusedu/exam-agent/internal/auth"
	"github.com/nexusedu/exam-agent/internal/backend"
	"github.com/nexusedu/exam-agent/internal/config"
	"github.com/nexusedu/exam-agent/internal/handler"
	"github.com/nexusedu/exam-agent/internal/logger"
	"github.com/nexusedu/exam-agent/internal/proctor"
	"github.com/nexusedu/exam-agent/internal/router"
	"github.com/nexusedu/exam-agent/internal/session"
	"github.com/nexusedu/exam-agent/internal/store"
	"github.com/nexusedu/exam-agent/internal/validator"
	"github.com/nexusedu/exam-agent/internal/websocket"
	"github.com/nexusedu/exam-agent/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("listen", cfg.ListenAddr).
		Str("backend", cfg.BackendURL).
		Str("store", cfg.StoreDriver).
		Msg("Starting NexusEdu Exam Agent")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Token ─────────────────────────────────────────────────────────
	tokens := auth.NewFileTokenSource(cfg.TokenPath)
	studentID := "default"
	if token, err := tokens.Token(); err == nil {
		studentID = auth.Subject(token)
	} else {
		log.Warn().Msg("No cached token; run the login command before starting an exam")
	}

	// ─── Open Snapshot Store ───────────────────────────────────────────
	st, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open snapshot store")
	}
	defer st.Close()

	// ─── Wire Components ───────────────────────────────────────────────
	hub := websocket.NewHub()
	client := backend.New(cfg.BackendURL, cfg.BackendTimeout, tokens, log)
	lockdown := proctor.NewLockdownController(cfg.LockdownEnterCmd, cfg.LockdownExitCmd, hub, log)
	controller := session.NewController(studentID, st, client, lockdown, tokens, hub, log)
	monitor := proctor.New(controller, hub, log)

	// Resume an interrupted session before accepting any traffic.
	if err := controller.Restore(ctx); err != nil {
		log.Error().Err(err).Msg("Session restore failed")
	}

	// ─── Start Background Worker ───────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	reconciler := worker.NewReconcileWorker(client, controller, cfg.ReconcileInterval, log)
	go reconciler.Start(workerCtx)

	// ─── Setup Router ──────────────────────────────────────────────────
	handlers := &router.Handlers{
		Session: handler.NewSessionHandler(controller),
		WS:      handler.NewWSHandler(monitor, hub, log, cfg.AllowedOrigins),
	}
	r := router.SetupRouter(handlers, cfg)

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("Agent listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// Persist a final snapshot, then let the worker make its last attempt.
	controller.Shutdown(shutdownCtx)
	workerCancel()
	time.Sleep(1 * time.Second)

	log.Info().Msg("Shutdown complete")
}

// openStore selects the snapshot driver from config.
func openStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (store.Store, error) {
	if cfg.StoreDriver == config.StoreDriverRedis {
		return store.OpenRedis(ctx, cfg.RedisURL, log)
	}
	return store.OpenSQLite(cfg.SQLitePath)
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
