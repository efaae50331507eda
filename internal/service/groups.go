package service

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/CartBot/internal/apperr"
	"github.com/Kerhoff/CartBot/internal/models"
	"github.com/Kerhoff/CartBot/internal/repository"
	"github.com/Kerhoff/CartBot/pkg/logger"
)

// GroupInput carries the editable fields of a group.
type GroupInput struct {
	Name        string  `json:"name" validate:"required,max=100"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=500"`
	// TransferItems moves the caller's personal list into a new group.
	// Ignored by UpdateGroup.
	TransferItems bool `json:"transfer_items,omitempty"`
}

func (in *GroupInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	if in.Description != nil {
		d := strings.TrimSpace(*in.Description)
		if d == "" {
			in.Description = nil
		} else {
			in.Description = &d
		}
	}
}

// CreateGroup creates a shared group with the caller as its admin. An
// invite code clash is reported as a conflict and not retried.
func (s *Service) CreateGroup(ctx context.Context, caller Caller, in GroupInput) (*models.Group, error) {
	if caller.UserID == "" {
		return nil, apperr.ErrUnauthenticated
	}
	in.normalize()
	if err := s.check(in); err != nil {
		return nil, s.fail(err, "")
	}

	code, err := s.cfg.Invites.Generate()
	if err != nil {
		return nil, s.fail(apperr.Internal(err, "failed to generate invite code"), "")
	}

	var group *models.Group
	var moved int
	err = s.store.WithinTx(ctx, func(r repository.Repositories) error {
		var err error
		group, err = r.Groups().Create(ctx, &models.Group{
			Name:        in.Name,
			Description: in.Description,
			InviteCode:  code,
		})
		if errors.Is(err, repository.ErrDuplicate) {
			return apperr.ErrInviteCodeConflict.Wrap(err)
		}
		if err != nil {
			return apperr.Internal(err, "failed to create group")
		}

		if _, err := r.Members().Add(ctx, &models.GroupMember{
			GroupID: group.ID,
			UserID:  caller.UserID,
			Role:    models.RoleAdmin,
		}); err != nil {
			return apperr.Internal(err, "failed to add group admin")
		}

		if !in.TransferItems {
			return nil
		}
		personal, err := s.ensurePersonalGroup(ctx, r, caller.UserID)
		if err != nil {
			return err
		}
		moved, err = transferItems(ctx, r, personal.ID, group.ID, caller.UserID)
		return err
	})
	if err != nil {
		return nil, s.fail(err, "failed to create group")
	}

	logger.ForGroup(s.logger, caller.UserID, group.ID).
		WithField("transferred_items", moved).
		Infof("Created group %q", group.Name)
	return group, nil
}

// UpdateGroup renames a group or changes its description. Admin only.
func (s *Service) UpdateGroup(ctx context.Context, caller Caller, groupID string, in GroupInput) (*models.Group, error) {
	in.normalize()
	if err := s.check(in); err != nil {
		return nil, s.fail(err, "")
	}

	var group *models.Group
	err := s.store.WithinTx(ctx, func(r repository.Repositories) error {
		var err error
		if group, _, err = requireAdmin(ctx, r, groupID, caller.UserID); err != nil {
			return err
		}
		group.Name = in.Name
		group.Description = in.Description
		if group, err = r.Groups().Update(ctx, group); err != nil {
			return apperr.Internal(err, "failed to update group")
		}
		return nil
	})
	if err != nil {
		return nil, s.fail(err, "failed to update group")
	}
	return group, nil
}

// DeleteGroup removes a shared group with its members and items. Admin only.
func (s *Service) DeleteGroup(ctx context.Context, caller Caller, groupID string) error {
	err := s.store.WithinTx(ctx, func(r repository.Repositories) error {
		group, _, err := requireAdmin(ctx, r, groupID, caller.UserID)
		if err != nil {
			return err
		}
		if group.IsPersonal {
			return apperr.ErrPersonalGroup.WithMessage("personal groups can not be deleted")
		}
		if err := r.Groups().Delete(ctx, groupID); err != nil {
			return apperr.Internal(err, "failed to delete group")
		}
		return nil
	})
	if err != nil {
		return s.fail(err, "failed to delete group")
	}

	logger.ForGroup(s.logger, caller.UserID, groupID).Info("Deleted group")
	return nil
}

// GetMyGroups lists the caller's groups, personal group first and then
// newest first. The personal group is created when missing.
func (s *Service) GetMyGroups(ctx context.Context, caller Caller) ([]*models.GroupSummary, error) {
	if _, err := s.EnsurePersonalGroup(ctx, caller); err != nil {
		return nil, err
	}

	groups, err := s.store.Groups().ListByUser(ctx, caller.UserID)
	if err != nil {
		return nil, s.fail(err, "failed to list groups")
	}
	return groups, nil
}

// GetGroupDetails returns a group with its members for one of its members.
func (s *Service) GetGroupDetails(ctx context.Context, caller Caller, groupID string) (*models.GroupDetails, error) {
	group, member, err := requireMember(ctx, s.store, groupID, caller.UserID)
	if err != nil {
		return nil, s.fail(err, "failed to load group")
	}

	members, err := s.store.Members().List(ctx, groupID)
	if err != nil {
		return nil, s.fail(err, "failed to list members")
	}
	itemCount, err := s.store.Items().Count(ctx, groupID)
	if err != nil {
		return nil, s.fail(err, "failed to count items")
	}

	return &models.GroupDetails{
		Group:     group,
		Members:   members,
		ItemCount: itemCount,
		Role:      member.Role,
	}, nil
}

// TransferShoppingList moves every item the caller created in fromGroupID
// into toGroupID and returns how many moved. An item whose name already
// exists in the target is merged into it by adding the amounts.
func (s *Service) TransferShoppingList(ctx context.Context, caller Caller, fromGroupID, toGroupID string) (int, error) {
	if fromGroupID == toGroupID {
		return 0, s.fail(apperr.ErrValidation.WithMessage("source and target group must differ"), "")
	}

	var moved int
	err := s.store.WithinTx(ctx, func(r repository.Repositories) error {
		if _, _, err := requireMember(ctx, r, fromGroupID, caller.UserID); err != nil {
			return err
		}
		if _, _, err := requireMember(ctx, r, toGroupID, caller.UserID); err != nil {
			return err
		}
		var err error
		moved, err = transferItems(ctx, r, fromGroupID, toGroupID, caller.UserID)
		return err
	})
	if err != nil {
		return 0, s.fail(err, "failed to transfer shopping list")
	}

	s.logger.WithFields(logrus.Fields{
		"user_id": caller.UserID,
		"from":    fromGroupID,
		"to":      toGroupID,
		"items":   moved,
	}).Info("Transferred shopping list")
	return moved, nil
}

func transferItems(ctx context.Context, r repository.Repositories, fromGroupID, toGroupID, userID string) (int, error) {
	items, err := r.Items().ListByCreator(ctx, fromGroupID, userID)
	if err != nil {
		return 0, apperr.Internal(err, "failed to list items")
	}

	for _, item := range items {
		existing, err := r.Items().FindByName(ctx, toGroupID, item.Name)
		if err != nil {
			return 0, apperr.Internal(err, "failed to look up item")
		}

		if existing != nil {
			if err := mergeAmount(existing, item.Amount); err != nil {
				return 0, err
			}
			if _, err := r.Items().Update(ctx, existing); err != nil {
				return 0, apperr.Internal(err, "failed to merge item %q", item.Name)
			}
			if err := r.Items().Delete(ctx, item.ID); err != nil {
				return 0, apperr.Internal(err, "failed to remove merged item %q", item.Name)
			}
			continue
		}

		item.GroupID = toGroupID
		if _, err := r.Items().Update(ctx, item); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return 0, apperr.ErrItemConflict.Wrap(err)
			}
			return 0, apperr.Internal(err, "failed to move item %q", item.Name)
		}
	}

	return len(items), nil
}
