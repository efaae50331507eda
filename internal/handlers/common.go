// Package handlers implements the Telegram bot commands on top of the
// shopping list service.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/CartBot/internal/apperr"
	"github.com/Kerhoff/CartBot/internal/models"
	"github.com/Kerhoff/CartBot/internal/service"
)

// deps is shared by every command handler.
type deps struct {
	svc      *service.Service
	sessions *Sessions
	logger   *logrus.Logger
}

// session is the resolved context of one command.
type session struct {
	user    *models.User
	caller  service.Caller
	groupID string
}

func fromMessage(message *tgbotapi.Message) (*tgbotapi.User, error) {
	if message.From == nil {
		return nil, apperr.ErrUnauthenticated.WithMessage("commands must come from a user")
	}
	return message.From, nil
}

// identify registers the sender and returns them as a caller.
func (d deps) identify(ctx context.Context, message *tgbotapi.Message) (*models.User, service.Caller, error) {
	from, err := fromMessage(message)
	if err != nil {
		return nil, service.Caller{}, err
	}

	user, err := d.svc.EnsureTelegramUser(ctx, from.ID, from.UserName, from.FirstName, from.LastName)
	if err != nil {
		return nil, service.Caller{}, err
	}
	return user, service.Caller{UserID: user.ID, Anonymous: user.IsAnonymous}, nil
}

// resolve identifies the sender and picks their working group. A remembered
// group the user lost access to falls back to the personal list.
func (d deps) resolve(ctx context.Context, message *tgbotapi.Message) (*session, error) {
	user, caller, err := d.identify(ctx, message)
	if err != nil {
		return nil, err
	}

	if groupID, ok := d.sessions.ActiveGroup(message.From.ID); ok {
		_, err := d.svc.GetGroupDetails(ctx, caller, groupID)
		switch {
		case err == nil:
			return &session{user: user, caller: caller, groupID: groupID}, nil
		case errors.Is(err, apperr.ErrNotMember), errors.Is(err, apperr.ErrGroupNotFound):
			d.sessions.ClearActiveGroup(message.From.ID)
		default:
			return nil, err
		}
	}

	return &session{user: user, caller: caller, groupID: *user.PersonalGroupID}, nil
}

// send delivers plain text. Item and group names are user input, so no
// parse mode is applied.
func send(bot *tgbotapi.BotAPI, chatID int64, text string) error {
	if _, err := bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

func sendMarkdown(bot *tgbotapi.BotAPI, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

func usage(bot *tgbotapi.BotAPI, chatID int64, lines ...string) error {
	return send(bot, chatID, "Usage:\n"+strings.Join(lines, "\n"))
}

// formatList renders items the way the bot shows a list.
func formatList(title string, items []*models.ShoppingListItem) string {
	if len(items) == 0 {
		return title + "\n\nThe list is empty. Add something with /buy."
	}

	var b strings.Builder
	b.WriteString(title)
	b.WriteString("\n")
	for _, item := range items {
		mark := "⬜"
		if item.IsCompleted {
			mark = "✅"
		}
		fmt.Fprintf(&b, "\n%s %s", mark, item.Name)
		if item.Amount != 1 {
			fmt.Fprintf(&b, " x%d", item.Amount)
		}
	}
	return b.String()
}

func (d deps) log(message *tgbotapi.Message, s *session) *logrus.Entry {
	fields := logrus.Fields{"chat_id": message.Chat.ID}
	if message.From != nil {
		fields["telegram_id"] = message.From.ID
	}
	if s != nil {
		fields["user_id"] = s.caller.UserID
		fields["group_id"] = s.groupID
	}
	return d.logger.WithFields(fields)
}
