package handlers

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// HelpHandler handles the /help command
type HelpHandler struct {
	logger *logrus.Logger
}

func NewHelpHandler(logger *logrus.Logger) *HelpHandler {
	return &HelpHandler{logger: logger}
}

func (h *HelpHandler) Handle(ctx context.Context, bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	helpText := `📚 *CartBot Help*

*Shopping list:*
• /list - Show the active list
• /buy <item> [xN] - Add an item, or add to its amount
• /done <item> - Check an item off (or back on)
• /remove <item> - Remove an item
• /clear - Remove checked items

*Assistant:*
• /ask <request> - e.g. "add 2 milk and remove the bread"

*Groups:*
• /groups - Show your lists
• /use <n> - Switch to list number n
• /newgroup <name> - Create a shared list
• /invite [new] - Show or renew the invite code
• /join <code> - Join a shared list
• /leave - Leave the active shared list`

	if err := sendMarkdown(bot, message.Chat.ID, helpText); err != nil {
		return fmt.Errorf("failed to send help message: %w", err)
	}

	h.logger.WithFields(logrus.Fields{
		"chat_id": message.Chat.ID,
	}).Info("Sent help message")

	return nil
}
