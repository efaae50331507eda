package service

import (
	"context"
	"errors"
	"strings"

	"github.com/Kerhoff/CartBot/internal/action"
	"github.com/Kerhoff/CartBot/internal/apperr"
	"github.com/Kerhoff/CartBot/internal/models"
	"github.com/Kerhoff/CartBot/internal/repository"
	"github.com/Kerhoff/CartBot/pkg/logger"
)

// ItemInput is a new list entry. The amount limit is models.MaxItemAmount.
type ItemInput struct {
	Name   string `json:"name" validate:"required,max=200"`
	Amount int    `json:"amount" validate:"min=1,max=1000000"`
}

// ItemUpdate changes an item. Nil fields are left as they are.
type ItemUpdate struct {
	Name   *string `json:"name,omitempty" validate:"omitnil,min=1,max=200"`
	Amount *int    `json:"amount,omitempty" validate:"omitnil,min=1,max=1000000"`
}

// GetItems returns the group's list newest first.
func (s *Service) GetItems(ctx context.Context, caller Caller, groupID string) ([]*models.ShoppingListItem, error) {
	if _, _, err := requireMember(ctx, s.store, groupID, caller.UserID); err != nil {
		return nil, s.fail(err, "")
	}

	items, err := s.store.Items().ListByGroup(ctx, groupID)
	if err != nil {
		return nil, s.fail(err, "failed to list items")
	}
	return items, nil
}

// AddItem adds to the list with the same merge rule as an add action and
// returns the resulting item.
func (s *Service) AddItem(ctx context.Context, caller Caller, groupID string, in ItemInput) (*models.ShoppingListItem, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := s.check(in); err != nil {
		return nil, s.fail(err, "")
	}

	if _, err := s.apply(ctx, caller, groupID, []action.Action{action.Add{Name: in.Name, Amount: in.Amount}}); err != nil {
		return nil, err
	}

	item, err := s.store.Items().FindByName(ctx, groupID, in.Name)
	if err != nil {
		return nil, s.fail(err, "failed to load item")
	}
	if item == nil {
		return nil, s.fail(apperr.ErrItemNotFound.WithMessage("item %q not found", in.Name), "")
	}
	return item, nil
}

// withItem loads an item by id for update inside a transaction after
// checking the caller belongs to its group.
func withItem(ctx context.Context, r repository.Repositories, itemID, userID string) (*models.ShoppingListItem, error) {
	if userID == "" {
		return nil, apperr.ErrUnauthenticated
	}
	item, err := r.Items().GetForUpdate(ctx, itemID)
	if err != nil {
		return nil, apperr.Internal(err, "failed to load item")
	}
	if item == nil {
		return nil, apperr.ErrItemNotFound
	}
	if _, _, err := requireMember(ctx, r, item.GroupID, userID); err != nil {
		return nil, err
	}
	return item, nil
}

// UpdateItem renames an item or sets its amount. A new name may not clash,
// ignoring case, with another item of the group.
func (s *Service) UpdateItem(ctx context.Context, caller Caller, itemID string, in ItemUpdate) (*models.ShoppingListItem, error) {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		in.Name = &name
	}
	if err := s.check(in); err != nil {
		return nil, s.fail(err, "")
	}

	var item *models.ShoppingListItem
	err := s.store.WithinTx(ctx, func(r repository.Repositories) error {
		var err error
		if item, err = withItem(ctx, r, itemID, caller.UserID); err != nil {
			return err
		}

		if in.Name != nil && *in.Name != item.Name {
			other, err := r.Items().FindByName(ctx, item.GroupID, *in.Name)
			if err != nil {
				return apperr.Internal(err, "failed to look up item")
			}
			if other != nil && other.ID != item.ID {
				return apperr.ErrItemConflict.WithMessage("an item named %q already exists", other.Name)
			}
			item.Name = *in.Name
		}
		if in.Amount != nil {
			item.Amount = *in.Amount
		}

		item, err = r.Items().Update(ctx, item)
		if errors.Is(err, repository.ErrDuplicate) {
			return apperr.ErrItemConflict.Wrap(err)
		}
		if err != nil {
			return apperr.Internal(err, "failed to update item")
		}
		return nil
	})
	if err != nil {
		return nil, s.fail(err, "failed to update item")
	}
	return item, nil
}

// ToggleComplete flips the completed flag of an item.
func (s *Service) ToggleComplete(ctx context.Context, caller Caller, itemID string) (*models.ShoppingListItem, error) {
	var item *models.ShoppingListItem
	err := s.store.WithinTx(ctx, func(r repository.Repositories) error {
		var err error
		if item, err = withItem(ctx, r, itemID, caller.UserID); err != nil {
			return err
		}
		item.IsCompleted = !item.IsCompleted
		if item, err = r.Items().Update(ctx, item); err != nil {
			return apperr.Internal(err, "failed to update item")
		}
		return nil
	})
	if err != nil {
		return nil, s.fail(err, "failed to toggle item")
	}
	return item, nil
}

// DeleteItem removes an item from its list.
func (s *Service) DeleteItem(ctx context.Context, caller Caller, itemID string) error {
	err := s.store.WithinTx(ctx, func(r repository.Repositories) error {
		item, err := withItem(ctx, r, itemID, caller.UserID)
		if err != nil {
			return err
		}
		if err := r.Items().Delete(ctx, item.ID); err != nil {
			return apperr.Internal(err, "failed to delete item")
		}
		return nil
	})
	if err != nil {
		return s.fail(err, "failed to delete item")
	}
	return nil
}

// ClearCompleted removes every completed item of the group and returns how
// many were removed.
func (s *Service) ClearCompleted(ctx context.Context, caller Caller, groupID string) (int64, error) {
	var removed int64
	err := s.store.WithinTx(ctx, func(r repository.Repositories) error {
		if _, _, err := requireMember(ctx, r, groupID, caller.UserID); err != nil {
			return err
		}
		var err error
		if removed, err = r.Items().DeleteCompleted(ctx, groupID); err != nil {
			return apperr.Internal(err, "failed to clear completed items")
		}
		return nil
	})
	if err != nil {
		return 0, s.fail(err, "failed to clear completed items")
	}

	logger.ForGroup(s.logger, caller.UserID, groupID).WithField("removed", removed).Info("Cleared completed items")
	return removed, nil
}
