package telegram

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/CartBot/internal/apperr"
)

// Router handles message routing and command parsing
type Router struct {
	logger   *logrus.Logger
	handlers map[string]CommandHandler
}

// CommandHandler defines the interface for command handlers. ctx is
// cancelled when the bot stops.
type CommandHandler interface {
	Handle(ctx context.Context, bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error
}

// NewRouter creates a new message router
func NewRouter(logger *logrus.Logger) *Router {
	return &Router{
		logger:   logger,
		handlers: make(map[string]CommandHandler),
	}
}

// RegisterCommand registers a command handler
func (r *Router) RegisterCommand(command string, handler CommandHandler) {
	r.handlers[command] = handler
	r.logger.Debugf("Registered command: %s", command)
}

// HandleMessage handles incoming messages
func (r *Router) HandleMessage(ctx context.Context, bot *tgbotapi.BotAPI, message *tgbotapi.Message) {
	fields := logrus.Fields{
		"chat_id":    message.Chat.ID,
		"message_id": message.MessageID,
	}
	if message.From != nil {
		fields["telegram_id"] = message.From.ID
		fields["username"] = message.From.UserName
	}
	log := r.logger.WithFields(fields)

	if message.Text == "" || !message.IsCommand() {
		return
	}

	command := message.Command()
	args := strings.Fields(message.CommandArguments())
	log = log.WithField("command", command)
	log.Debug("Received command")

	handler, exists := r.handlers[command]
	if !exists {
		log.Warn("Unknown command")
		r.reply(bot, message.Chat.ID, "❓ Unknown command. Use /help to see available commands.")
		return
	}

	err := handler.Handle(ctx, bot, message, args)
	if err == nil {
		return
	}

	// Domain errors are the user's to fix and carry a readable message.
	if apperr.IsExpected(err) {
		log.WithField("code", apperr.CodeOf(err)).Info("Command rejected")
		r.reply(bot, message.Chat.ID, "⚠️ "+apperr.MessageOf(err))
		return
	}

	log.WithError(err).Error("Command handler failed")
	if apperr.KindOf(err) == apperr.KindUpstream {
		r.reply(bot, message.Chat.ID, "❌ "+apperr.MessageOf(err)+". Please try again.")
		return
	}
	r.reply(bot, message.Chat.ID, "❌ An error occurred while processing your command. Please try again.")
}

func (r *Router) reply(bot *tgbotapi.BotAPI, chatID int64, text string) {
	if _, err := bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		r.logger.WithError(err).Error("Failed to send reply")
	}
}
