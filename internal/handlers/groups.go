package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/CartBot/internal/apperr"
	"github.com/Kerhoff/CartBot/internal/models"
	"github.com/Kerhoff/CartBot/internal/service"
)

// ---------------------------------------------------------------------------
// GroupsHandler – /groups
// ---------------------------------------------------------------------------

// GroupsHandler lists the user's groups numbered for /use.
type GroupsHandler struct {
	deps
}

func NewGroupsHandler(svc *service.Service, sessions *Sessions, logger *logrus.Logger) *GroupsHandler {
	return &GroupsHandler{deps{svc: svc, sessions: sessions, logger: logger}}
}

func (h *GroupsHandler) Handle(ctx context.Context, bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	s, err := h.resolve(ctx, message)
	if err != nil {
		return err
	}

	groups, err := h.svc.GetMyGroups(ctx, s.caller)
	if err != nil {
		return err
	}

	var b strings.Builder
	b.WriteString("📋 Your lists:\n")
	for i, g := range groups {
		marker := "  "
		if g.ID == s.groupID {
			marker = "👉"
		}
		fmt.Fprintf(&b, "\n%s %d. %s (%d items", marker, i+1, g.Name, g.ItemCount)
		if !g.IsPersonal {
			fmt.Fprintf(&b, ", %d members", g.MemberCount)
		}
		if g.Role == models.RoleAdmin && !g.IsPersonal {
			b.WriteString(", admin")
		}
		b.WriteString(")")
	}
	b.WriteString("\n\nSwitch with /use <n>.")

	return send(bot, message.Chat.ID, b.String())
}

// ---------------------------------------------------------------------------
// UseHandler – /use <n>
// ---------------------------------------------------------------------------

// UseHandler switches the active group by its /groups position.
type UseHandler struct {
	deps
}

func NewUseHandler(svc *service.Service, sessions *Sessions, logger *logrus.Logger) *UseHandler {
	return &UseHandler{deps{svc: svc, sessions: sessions, logger: logger}}
}

func (h *UseHandler) Handle(ctx context.Context, bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	if len(args) != 1 {
		return usage(bot, message.Chat.ID, "/use 2")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 {
		return usage(bot, message.Chat.ID, "/use 2")
	}

	_, caller, err := h.identify(ctx, message)
	if err != nil {
		return err
	}

	groups, err := h.svc.GetMyGroups(ctx, caller)
	if err != nil {
		return err
	}
	if n > len(groups) {
		return send(bot, message.Chat.ID, fmt.Sprintf("You have %d list(s). See /groups.", len(groups)))
	}

	group := groups[n-1]
	if group.IsPersonal {
		h.sessions.ClearActiveGroup(message.From.ID)
	} else {
		h.sessions.SetActiveGroup(message.From.ID, group.ID)
	}
	return send(bot, message.Chat.ID, fmt.Sprintf("👉 Now using %s.", group.Name))
}

// ---------------------------------------------------------------------------
// NewGroupHandler – /newgroup <name>
// ---------------------------------------------------------------------------

// NewGroupHandler creates a shared group and switches to it.
type NewGroupHandler struct {
	deps
}

func NewNewGroupHandler(svc *service.Service, sessions *Sessions, logger *logrus.Logger) *NewGroupHandler {
	return &NewGroupHandler{deps{svc: svc, sessions: sessions, logger: logger}}
}

func (h *NewGroupHandler) Handle(ctx context.Context, bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	if len(args) == 0 {
		return usage(bot, message.Chat.ID, "/newgroup Flat 3B")
	}

	_, caller, err := h.identify(ctx, message)
	if err != nil {
		return err
	}

	group, err := h.svc.CreateGroup(ctx, caller, service.GroupInput{Name: strings.Join(args, " ")})
	if err != nil {
		return err
	}
	h.sessions.SetActiveGroup(message.From.ID, group.ID)

	h.log(message, nil).WithField("group_id", group.ID).Info("Created group from chat")
	return send(bot, message.Chat.ID, fmt.Sprintf(
		"🎉 Created %s and switched to it.\n\nOthers can join with:\n/join %s", group.Name, group.InviteCode))
}

// ---------------------------------------------------------------------------
// InviteHandler – /invite [new]
// ---------------------------------------------------------------------------

// InviteHandler shows the active group's invite code. "/invite new" replaces
// it, which only admins may do.
type InviteHandler struct {
	deps
}

func NewInviteHandler(svc *service.Service, sessions *Sessions, logger *logrus.Logger) *InviteHandler {
	return &InviteHandler{deps{svc: svc, sessions: sessions, logger: logger}}
}

func (h *InviteHandler) Handle(ctx context.Context, bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	s, err := h.resolve(ctx, message)
	if err != nil {
		return err
	}

	details, err := h.svc.GetGroupDetails(ctx, s.caller, s.groupID)
	if err != nil {
		return err
	}
	if details.Group.IsPersonal {
		return apperr.ErrPersonalGroup.WithMessage("your personal list can not be shared, create a group with /newgroup")
	}

	code := details.Group.InviteCode
	if len(args) > 0 && strings.EqualFold(args[0], "new") {
		if code, err = h.svc.RegenerateInviteCode(ctx, s.caller, s.groupID); err != nil {
			return err
		}
	}

	return send(bot, message.Chat.ID, fmt.Sprintf("🔗 Invite others to %s with:\n/join %s", details.Group.Name, code))
}

// ---------------------------------------------------------------------------
// JoinHandler – /join <code>
// ---------------------------------------------------------------------------

// JoinHandler joins a group through its invite code and switches to it.
type JoinHandler struct {
	deps
}

func NewJoinHandler(svc *service.Service, sessions *Sessions, logger *logrus.Logger) *JoinHandler {
	return &JoinHandler{deps{svc: svc, sessions: sessions, logger: logger}}
}

func (h *JoinHandler) Handle(ctx context.Context, bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	if len(args) != 1 {
		return usage(bot, message.Chat.ID, "/join AB12CD")
	}

	_, caller, err := h.identify(ctx, message)
	if err != nil {
		return err
	}

	group, err := h.svc.JoinViaCode(ctx, caller, args[0])
	if err != nil {
		return err
	}
	h.sessions.SetActiveGroup(message.From.ID, group.ID)

	return send(bot, message.Chat.ID, fmt.Sprintf("👋 Welcome to %s! It is now your active list.", group.Name))
}

// ---------------------------------------------------------------------------
// LeaveHandler – /leave
// ---------------------------------------------------------------------------

// LeaveHandler leaves the active shared group and falls back to the
// personal list.
type LeaveHandler struct {
	deps
}

func NewLeaveHandler(svc *service.Service, sessions *Sessions, logger *logrus.Logger) *LeaveHandler {
	return &LeaveHandler{deps{svc: svc, sessions: sessions, logger: logger}}
}

func (h *LeaveHandler) Handle(ctx context.Context, bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	s, err := h.resolve(ctx, message)
	if err != nil {
		return err
	}

	if err := h.svc.LeaveGroup(ctx, s.caller, s.groupID); err != nil {
		return err
	}
	h.sessions.ClearActiveGroup(message.From.ID)

	return send(bot, message.Chat.ID, "You left the group. Back to your personal list.")
}
