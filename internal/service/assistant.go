package service

import (
	"context"
	"errors"
	"strings"

	"github.com/Kerhoff/CartBot/internal/apperr"
	"github.com/Kerhoff/CartBot/internal/assistant"
	"github.com/Kerhoff/CartBot/internal/metrics"
	"github.com/Kerhoff/CartBot/internal/models"
	"github.com/Kerhoff/CartBot/pkg/logger"
)

// AskInput is one assistant request.
type AskInput struct {
	Prompt         string           `json:"prompt" validate:"required,max=2000"`
	RecentMessages []models.Message `json:"recent_messages" validate:"dive"`
}

// Ask sends the caller's request together with the group's list to the
// model and resolves the streamed reply into validated actions. Nothing is
// applied. onPartial, when set, observes every snapshot as it streams.
func (s *Service) Ask(ctx context.Context, caller Caller, groupID string, in AskInput, onPartial func(assistant.Partial) error) (reply *assistant.Reply, err error) {
	defer func() {
		s.cfg.Metrics.AssistantRequests.WithLabelValues(metrics.Outcome(err)).Inc()
	}()

	in.Prompt = strings.TrimSpace(in.Prompt)
	if err := s.check(in); err != nil {
		return nil, s.fail(err, "")
	}
	if s.cfg.Model == nil {
		return nil, s.fail(apperr.ErrAssistant.WithMessage("the assistant is not configured"), "")
	}
	if caller.Anonymous && !s.cfg.AssistantAllowAnonymous {
		return nil, s.fail(apperr.ErrAnonymousForbidden.WithMessage("sign in to use the assistant"), "")
	}

	items, err := s.GetItems(ctx, caller, groupID)
	if err != nil {
		return nil, err
	}

	prompt := assistant.BuildPrompt(items, assistant.TruncateHistory(in.RecentMessages, s.cfg.AssistantHistoryLimit), in.Prompt)

	if s.cfg.AssistantTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.AssistantTimeout)
		defer cancel()
	}

	stream, err := s.cfg.Model.Stream(ctx, prompt)
	if err != nil {
		return nil, s.fail(timedOut(ctx, apperr.ErrAssistant.Wrap(err)), "")
	}
	defer stream.Close()

	if reply, err = assistant.Collect(stream, onPartial); err != nil {
		return nil, s.fail(timedOut(ctx, err), "assistant request failed")
	}

	logger.ForGroup(s.logger, caller.UserID, groupID).
		WithField("actions", len(reply.Actions)).
		Info("Assistant replied")
	return reply, nil
}

// AskAndApply runs Ask and then applies the resolved actions, if any.
// The returned list is nil when nothing was applied.
func (s *Service) AskAndApply(ctx context.Context, caller Caller, groupID string, in AskInput) (*assistant.Reply, []*models.ShoppingListItem, error) {
	reply, err := s.Ask(ctx, caller, groupID, in, nil)
	if err != nil {
		return nil, nil, err
	}
	if len(reply.Actions) == 0 {
		return reply, nil, nil
	}

	items, err := s.apply(ctx, caller, groupID, reply.Actions)
	if err != nil {
		return reply, nil, err
	}
	return reply, items, nil
}

// timedOut replaces err when the model request ran out of time.
func timedOut(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apperr.ErrAssistant.WithMessage("the assistant did not answer in time").Wrap(err)
	}
	return err
}
