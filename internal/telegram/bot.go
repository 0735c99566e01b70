package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"translate-tg-bot/internal/config"
)

// In-flight updates get this long to finish after shutdown starts
const drainTimeout = 25 * time.Second

// UpdateHandler processes one inbound update
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, update tgbotapi.Update)
}

// Bot represents the Telegram bot
type Bot struct {
	api     *tgbotapi.BotAPI
	handler UpdateHandler
	cfg     config.TelegramConfig
	logger  *slog.Logger

	// Track active update processing
	activeRequests sync.WaitGroup
}

// NewAPI connects to the Bot API with the configured token
func NewAPI(cfg config.TelegramConfig) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	return api, nil
}

// NewBot creates a new Telegram bot
func NewBot(cfg config.TelegramConfig, api *tgbotapi.BotAPI, handler UpdateHandler, logger *slog.Logger) *Bot {
	return &Bot{
		api:     api,
		handler: handler,
		cfg:     cfg,
		logger:  logger,
	}
}

// Run polls for updates and blocks until ctx is cancelled
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.cfg.PollingTimeout
	u.AllowedUpdates = []string{"message", "callback_query"}

	updates := b.api.GetUpdatesChan(u)

	b.logger.Info("bot started", "username", b.api.Self.UserName)

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("stopping bot, waiting for active requests")
			b.api.StopReceivingUpdates()
			b.drain()
			return ctx.Err()

		case update, ok := <-updates:
			if !ok {
				return nil
			}

			b.activeRequests.Add(1)
			go func(upd tgbotapi.Update) {
				defer b.activeRequests.Done()
				defer func() {
					if r := recover(); r != nil {
						b.logger.Error("panic while handling update", "update_id", upd.UpdateID, "panic", r)
					}
				}()

				reqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.cfg.RequestTimeout)
				defer cancel()

				b.handler.HandleUpdate(reqCtx, upd)
			}(update)
		}
	}
}

func (b *Bot) drain() {
	done := make(chan struct{})
	go func() {
		b.activeRequests.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.logger.Info("all active requests completed")
	case <-time.After(drainTimeout):
		b.logger.Warn("some requests may not have completed")
	}
}

// GetBotInfo returns information about the bot
func (b *Bot) GetBotInfo() tgbotapi.User {
	return b.api.Self
}
