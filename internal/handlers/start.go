package handlers

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/CartBot/internal/service"
)

// StartHandler handles the /start command. It registers the user and their
// personal list on first contact.
type StartHandler struct {
	deps
}

// NewStartHandler creates a new start command handler
func NewStartHandler(svc *service.Service, sessions *Sessions, logger *logrus.Logger) *StartHandler {
	return &StartHandler{deps{svc: svc, sessions: sessions, logger: logger}}
}

// Handle processes the /start command
func (h *StartHandler) Handle(ctx context.Context, bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	user, _, err := h.identify(ctx, message)
	if err != nil {
		return err
	}

	welcomeText := fmt.Sprintf(`🛒 *Welcome to CartBot, %s!*

Your personal shopping list is ready. Share a list with your household by creating a group and sending them the invite code.

• /buy <item> [xN] - Add to the list
• /list - Show the list
• /ask <request> - Let the assistant edit the list
• /newgroup <name> - Start a shared list
• /help - All commands`, user.FirstName)

	if err := sendMarkdown(bot, message.Chat.ID, welcomeText); err != nil {
		return fmt.Errorf("failed to send start message: %w", err)
	}

	h.log(message, nil).WithField("user_id", user.ID).Info("Sent start message")
	return nil
}
