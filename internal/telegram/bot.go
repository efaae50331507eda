package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// Bot wraps the Telegram bot API
type Bot struct {
	api      *tgbotapi.BotAPI
	logger   *logrus.Logger
	router   *Router
	commands []tgbotapi.BotCommand
}

// NewBot creates a new Telegram bot instance
func NewBot(token string, logger *logrus.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot API: %w", err)
	}

	logger.Infof("Authorized on account %s", api.Self.UserName)

	return newBot(api, logger), nil
}

func newBot(api *tgbotapi.BotAPI, logger *logrus.Logger) *Bot {
	return &Bot{
		api:    api,
		logger: logger,
		router: NewRouter(logger),
	}
}

// RegisterCommand registers a command handler on the router. The
// description is shown in the Telegram command menu.
func (b *Bot) RegisterCommand(command, description string, handler CommandHandler) {
	b.router.RegisterCommand(command, handler)
	b.commands = append(b.commands, tgbotapi.BotCommand{Command: command, Description: description})
}

// Start publishes the command menu and processes updates with long polling
// until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	// Delete webhook if exists and use polling
	if _, err := b.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("failed to delete webhook: %w", err)
	}

	if len(b.commands) > 0 {
		if _, err := b.api.Request(tgbotapi.NewSetMyCommands(b.commands...)); err != nil {
			b.logger.WithError(err).Warn("Failed to publish command menu")
		}
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	b.logger.Info("Bot started with long polling")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Stopping bot...")
			b.api.StopReceivingUpdates()
			return nil
		case update := <-updates:
			go b.handleUpdate(ctx, update)
		}
	}
}

// handleUpdate processes incoming updates
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Errorf("Panic in update handler: %v", r)
		}
	}()

	if update.Message != nil {
		b.router.HandleMessage(ctx, b.api, update.Message)
	}
}
