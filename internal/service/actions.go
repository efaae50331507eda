package service

import (
	"context"
	"errors"

	"github.com/samber/lo"

	"github.com/Kerhoff/CartBot/internal/action"
	"github.com/Kerhoff/CartBot/internal/apperr"
	"github.com/Kerhoff/CartBot/internal/metrics"
	"github.com/Kerhoff/CartBot/internal/models"
	"github.com/Kerhoff/CartBot/internal/repository"
	"github.com/Kerhoff/CartBot/pkg/logger"
)

// ExecuteActions validates raws and applies them in order to the group's
// list in one transaction. Later actions see the effects of earlier ones;
// any failure leaves the list untouched. Returns the list newest first.
func (s *Service) ExecuteActions(ctx context.Context, caller Caller, groupID string, raws []action.Raw) ([]*models.ShoppingListItem, error) {
	actions, err := action.ParseAll(raws)
	if err != nil {
		s.cfg.Metrics.ActionBatches.WithLabelValues(metrics.OutcomeFailure).Inc()
		return nil, s.fail(err, "")
	}
	return s.apply(ctx, caller, groupID, actions)
}

func (s *Service) apply(ctx context.Context, caller Caller, groupID string, actions []action.Action) ([]*models.ShoppingListItem, error) {
	var items []*models.ShoppingListItem
	err := s.store.WithinTx(ctx, func(r repository.Repositories) error {
		if _, _, err := requireMember(ctx, r, groupID, caller.UserID); err != nil {
			return err
		}

		for _, a := range actions {
			if err := applyAction(ctx, r, groupID, caller.UserID, a); err != nil {
				return err
			}
		}

		var err error
		if items, err = r.Items().ListByGroup(ctx, groupID); err != nil {
			return apperr.Internal(err, "failed to list items")
		}
		return nil
	})
	s.cfg.Metrics.ActionBatches.WithLabelValues(metrics.Outcome(err)).Inc()
	if err != nil {
		return nil, s.fail(err, "failed to apply actions")
	}

	for kind, n := range lo.CountValuesBy(actions, func(a action.Action) action.Kind { return a.Kind() }) {
		s.cfg.Metrics.ActionsApplied.WithLabelValues(string(kind)).Add(float64(n))
	}
	logger.ForGroup(s.logger, caller.UserID, groupID).WithField("actions", len(actions)).Info("Applied actions")
	return items, nil
}

func applyAction(ctx context.Context, r repository.Repositories, groupID, userID string, a action.Action) error {
	item, err := r.Items().FindByName(ctx, groupID, a.ItemName())
	if err != nil {
		return apperr.Internal(err, "failed to look up item %q", a.ItemName())
	}

	if add, ok := a.(action.Add); ok {
		return addItem(ctx, r, item, groupID, userID, add)
	}
	if item == nil {
		return apperr.ErrItemNotFound.WithMessage("item %q not found", a.ItemName())
	}

	switch v := a.(type) {
	case action.Update:
		item.Amount = v.Amount
	case action.Complete:
		item.IsCompleted = !item.IsCompleted
	case action.Delete:
		if err := r.Items().Delete(ctx, item.ID); err != nil {
			return apperr.Internal(err, "failed to delete item %q", item.Name)
		}
		return nil
	}

	if _, err := r.Items().Update(ctx, item); err != nil {
		return apperr.Internal(err, "failed to update item %q", item.Name)
	}
	return nil
}

// addItem merges into existing when set, otherwise creates the item.
func addItem(ctx context.Context, r repository.Repositories, existing *models.ShoppingListItem, groupID, userID string, add action.Add) error {
	if existing != nil {
		if err := mergeAmount(existing, add.Amount); err != nil {
			return err
		}
		if _, err := r.Items().Update(ctx, existing); err != nil {
			return apperr.Internal(err, "failed to update item %q", existing.Name)
		}
		return nil
	}

	_, err := r.Items().Create(ctx, &models.ShoppingListItem{
		Name:        add.Name,
		Amount:      add.Amount,
		GroupID:     groupID,
		CreatedByID: userID,
	})
	if errors.Is(err, repository.ErrDuplicate) {
		return apperr.ErrItemConflict.WithMessage("item %q was added concurrently, try again", add.Name).Wrap(err)
	}
	if err != nil {
		return apperr.Internal(err, "failed to create item %q", add.Name)
	}
	return nil
}

// mergeAmount adds n to item unless the total would pass models.MaxItemAmount.
func mergeAmount(item *models.ShoppingListItem, n int) error {
	if n > models.MaxItemAmount-item.Amount {
		return apperr.ErrAmountTooLarge.WithMessage(
			"item %q can not hold more than %d", item.Name, models.MaxItemAmount)
	}
	item.Amount += n
	return nil
}
