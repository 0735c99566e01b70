package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"translate-tg-bot/internal/access"
	"translate-tg-bot/internal/approval"
	"translate-tg-bot/internal/config"
	"translate-tg-bot/internal/limiter"
	"translate-tg-bot/internal/telegram"
	"translate-tg-bot/internal/translate"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	var logLevel slog.Level
	switch cfg.Logging.Level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	var handler slog.Handler
	if cfg.Logging.JSONFormat {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("bot failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	store, err := access.Open(cfg.Storage, access.WithPendingTTL(cfg.Approval.PendingTTL))
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close access store", "error", err)
		}
	}()

	adminID := cfg.Telegram.AdminUserID
	if err := store.SetAdmin(adminID); err != nil {
		return err
	}

	translator, err := translate.NewClient(cfg.Translator, logger)
	if err != nil {
		return err
	}

	api, err := telegram.NewAPI(cfg.Telegram)
	if err != nil {
		return err
	}

	transport := telegram.NewTransport(api, logger)

	// Workflow and router must share the same per-actor locks
	locks := &limiter.KeyedMutex{}
	workflow := approval.NewWorkflow(store, transport, adminID, locks, logger)
	router := approval.NewRouter(store, transport, adminID, locks, logger)

	// 0 = no global limit, just per-user
	inflight := limiter.NewInFlight(cfg.Translator.MaxConcurrent)

	dispatcher := telegram.NewDispatcher(adminID, workflow, router, translator, transport, inflight, logger)
	bot := telegram.NewBot(cfg.Telegram, api, dispatcher, logger)

	rootCtx, rootCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer rootCancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer rootCancel()
		if err := bot.Run(rootCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("bot error", "error", err)
		}
	}()

	logger.Info("bot started",
		"bot_username", bot.GetBotInfo().UserName,
		"admin_user_id", adminID,
		"storage_driver", cfg.Storage.Driver,
		"translator_url", cfg.Translator.BaseURL,
		"model", cfg.Translator.Model,
		"max_concurrent", cfg.Translator.MaxConcurrent,
	)

	<-rootCtx.Done()
	logger.Info("shutdown signal received")

	// Wait for graceful shutdown with timeout
	shutdownTimeout := 30 * time.Second
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("graceful shutdown complete")
	case <-time.After(shutdownTimeout):
		logger.Warn("shutdown timeout exceeded, forcing exit")
	}
	return nil
}
