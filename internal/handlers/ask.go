package handlers

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/CartBot/internal/action"
	"github.com/Kerhoff/CartBot/internal/apperr"
	"github.com/Kerhoff/CartBot/internal/models"
	"github.com/Kerhoff/CartBot/internal/service"
)

// AskHandler handles /ask <request>: the assistant turns the request into
// list actions, which are applied right away.
type AskHandler struct {
	deps
}

func NewAskHandler(svc *service.Service, sessions *Sessions, logger *logrus.Logger) *AskHandler {
	return &AskHandler{deps{svc: svc, sessions: sessions, logger: logger}}
}

func (h *AskHandler) Handle(ctx context.Context, bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	if !h.svc.AssistantEnabled() {
		return apperr.ErrAssistant.WithMessage("the assistant is not available right now")
	}
	if len(args) == 0 {
		return usage(bot, message.Chat.ID, "/ask add two loaves of bread and remove the milk")
	}

	s, err := h.resolve(ctx, message)
	if err != nil {
		return err
	}

	prompt := strings.Join(args, " ")
	history := h.sessions.History(message.Chat.ID, message.From.ID)

	// Typing indicator; failures are irrelevant.
	_, _ = bot.Request(tgbotapi.NewChatAction(message.Chat.ID, tgbotapi.ChatTyping))

	reply, items, err := h.svc.AskAndApply(ctx, s.caller, s.groupID, service.AskInput{
		Prompt:         prompt,
		RecentMessages: history,
	})
	if err != nil {
		return err
	}

	h.sessions.Remember(message.Chat.ID, message.From.ID,
		models.Message{Role: models.MessageRoleUser, Content: prompt},
		models.Message{Role: models.MessageRoleAssistant, Content: reply.Message},
	)

	h.log(message, s).WithField("actions", len(reply.Actions)).Info("Applied assistant reply")
	return send(bot, message.Chat.ID, formatReply(reply.Message, reply.Actions, items))
}

func formatReply(message string, actions []action.Action, items []*models.ShoppingListItem) string {
	var b strings.Builder
	if message != "" {
		b.WriteString("🤖 ")
		b.WriteString(message)
	}
	if len(actions) == 0 {
		return b.String()
	}

	lines := lo.Map(actions, func(a action.Action, _ int) string {
		switch v := a.(type) {
		case action.Add:
			return fmt.Sprintf("➕ %s x%d", v.Name, v.Amount)
		case action.Update:
			return fmt.Sprintf("✏️ %s = %d", v.Name, v.Amount)
		case action.Delete:
			return "🗑 " + v.Name
		default:
			return "✅ " + a.ItemName()
		}
	})
	if b.Len() > 0 {
		b.WriteString("\n\n")
	}
	b.WriteString(strings.Join(lines, "\n"))
	b.WriteString("\n\n")
	b.WriteString(formatList("🛒 Updated list", items))
	return b.String()
}
