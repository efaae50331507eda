package handlers

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/CartBot/internal/action"
	"github.com/Kerhoff/CartBot/internal/service"
)

var quantityRegex = regexp.MustCompile(`^[xX](\d+)$`)

// parseBuyArgs splits "/buy Whole milk x2" into the item name and amount.
// A lone "x2" is read as an item name.
func parseBuyArgs(args []string) (string, int) {
	if len(args) > 1 {
		if m := quantityRegex.FindStringSubmatch(args[len(args)-1]); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				return strings.Join(args[:len(args)-1], " "), n
			}
		}
	}
	return strings.Join(args, " "), 1
}

// ---------------------------------------------------------------------------
// ListHandler – /list
// ---------------------------------------------------------------------------

// ListHandler shows the active group's list, newest first.
type ListHandler struct {
	deps
}

func NewListHandler(svc *service.Service, sessions *Sessions, logger *logrus.Logger) *ListHandler {
	return &ListHandler{deps{svc: svc, sessions: sessions, logger: logger}}
}

func (h *ListHandler) Handle(ctx context.Context, bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	s, err := h.resolve(ctx, message)
	if err != nil {
		return err
	}

	details, err := h.svc.GetGroupDetails(ctx, s.caller, s.groupID)
	if err != nil {
		return err
	}
	items, err := h.svc.GetItems(ctx, s.caller, s.groupID)
	if err != nil {
		return err
	}

	return send(bot, message.Chat.ID, formatList("🛒 "+details.Group.Name, items))
}

// ---------------------------------------------------------------------------
// BuyHandler – /buy <item> [xN]
// ---------------------------------------------------------------------------

// BuyHandler adds an item to the active list. Buying something already on
// the list adds to its amount.
type BuyHandler struct {
	deps
}

func NewBuyHandler(svc *service.Service, sessions *Sessions, logger *logrus.Logger) *BuyHandler {
	return &BuyHandler{deps{svc: svc, sessions: sessions, logger: logger}}
}

func (h *BuyHandler) Handle(ctx context.Context, bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	if len(args) == 0 {
		return usage(bot, message.Chat.ID, "/buy Milk x2", "/buy Whole wheat bread")
	}

	s, err := h.resolve(ctx, message)
	if err != nil {
		return err
	}

	name, amount := parseBuyArgs(args)
	item, err := h.svc.AddItem(ctx, s.caller, s.groupID, service.ItemInput{Name: name, Amount: amount})
	if err != nil {
		return err
	}

	h.log(message, s).WithField("item_id", item.ID).Info("Item added to shopping list")
	return send(bot, message.Chat.ID, fmt.Sprintf("🛒 %s x%d is on the list.", item.Name, item.Amount))
}

// ---------------------------------------------------------------------------
// Single-item actions – /done, /remove
// ---------------------------------------------------------------------------

// ItemActionHandler applies one action to a named item of the active list.
type ItemActionHandler struct {
	deps
	kind    action.Kind
	command string
	done    string
}

// NewDoneHandler handles /done <item>, which toggles the completed flag.
func NewDoneHandler(svc *service.Service, sessions *Sessions, logger *logrus.Logger) *ItemActionHandler {
	return &ItemActionHandler{
		deps:    deps{svc: svc, sessions: sessions, logger: logger},
		kind:    action.KindComplete,
		command: "/done",
		done:    "✅ Toggled %s.",
	}
}

// NewRemoveHandler handles /remove <item>.
func NewRemoveHandler(svc *service.Service, sessions *Sessions, logger *logrus.Logger) *ItemActionHandler {
	return &ItemActionHandler{
		deps:    deps{svc: svc, sessions: sessions, logger: logger},
		kind:    action.KindDelete,
		command: "/remove",
		done:    "🗑 Removed %s.",
	}
}

func (h *ItemActionHandler) Handle(ctx context.Context, bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	if len(args) == 0 {
		return usage(bot, message.Chat.ID, h.command+" Milk")
	}

	s, err := h.resolve(ctx, message)
	if err != nil {
		return err
	}

	name := strings.Join(args, " ")
	raw := action.Raw{Action: string(h.kind), Name: name}
	if _, err := h.svc.ExecuteActions(ctx, s.caller, s.groupID, []action.Raw{raw}); err != nil {
		return err
	}

	h.log(message, s).WithField("action", h.kind).Info("Applied item action")
	return send(bot, message.Chat.ID, fmt.Sprintf(h.done, name))
}

// ---------------------------------------------------------------------------
// ClearHandler – /clear
// ---------------------------------------------------------------------------

// ClearHandler removes every completed item from the active list.
type ClearHandler struct {
	deps
}

func NewClearHandler(svc *service.Service, sessions *Sessions, logger *logrus.Logger) *ClearHandler {
	return &ClearHandler{deps{svc: svc, sessions: sessions, logger: logger}}
}

func (h *ClearHandler) Handle(ctx context.Context, bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	s, err := h.resolve(ctx, message)
	if err != nil {
		return err
	}

	removed, err := h.svc.ClearCompleted(ctx, s.caller, s.groupID)
	if err != nil {
		return err
	}

	if removed == 0 {
		return send(bot, message.Chat.ID, "Nothing to clear, no item is checked off.")
	}
	return send(bot, message.Chat.ID, fmt.Sprintf("🧹 Cleared %d checked item(s).", removed))
}
