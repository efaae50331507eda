package service

import (
	"context"

	"github.com/Kerhoff/CartBot/internal/apperr"
	"github.com/Kerhoff/CartBot/internal/models"
	"github.com/Kerhoff/CartBot/internal/repository"
	"github.com/Kerhoff/CartBot/pkg/logger"
)

// keepsAnAdmin fails with ErrLastAdmin when target is the group's only
// admin. The group row must already be locked.
func keepsAnAdmin(ctx context.Context, r repository.Repositories, target *models.GroupMember) error {
	if !target.IsAdmin() {
		return nil
	}
	admins, err := r.Members().CountAdmins(ctx, target.GroupID)
	if err != nil {
		return apperr.Internal(err, "failed to count admins")
	}
	if admins <= 1 {
		return apperr.ErrLastAdmin
	}
	return nil
}

func loadTarget(ctx context.Context, r repository.Repositories, groupID, userID string) (*models.GroupMember, error) {
	target, err := r.Members().Get(ctx, groupID, userID)
	if err != nil {
		return nil, apperr.Internal(err, "failed to load member")
	}
	if target == nil {
		return nil, apperr.ErrMemberNotFound
	}
	return target, nil
}

// RemoveMember removes userID from a shared group. Admin only.
func (s *Service) RemoveMember(ctx context.Context, caller Caller, groupID, userID string) error {
	err := s.store.WithinTx(ctx, func(r repository.Repositories) error {
		group, _, err := requireAdmin(ctx, r, groupID, caller.UserID)
		if err != nil {
			return err
		}
		if group.IsPersonal {
			return apperr.ErrPersonalGroup.WithMessage("members can not be removed from a personal group")
		}
		target, err := loadTarget(ctx, r, groupID, userID)
		if err != nil {
			return err
		}
		if err := keepsAnAdmin(ctx, r, target); err != nil {
			return err
		}
		if err := r.Members().Remove(ctx, groupID, userID); err != nil {
			return apperr.Internal(err, "failed to remove member")
		}
		return nil
	})
	if err != nil {
		return s.fail(err, "failed to remove member")
	}

	logger.ForGroup(s.logger, caller.UserID, groupID).WithField("member_id", userID).Info("Removed member")
	return nil
}

// UpdateRole changes the role of userID in a shared group. Admin only.
func (s *Service) UpdateRole(ctx context.Context, caller Caller, groupID, userID string, role models.Role) error {
	if !role.Valid() {
		return s.fail(apperr.ErrValidation.WithMessage("role must be one of: ADMIN MEMBER"), "")
	}

	err := s.store.WithinTx(ctx, func(r repository.Repositories) error {
		group, _, err := requireAdmin(ctx, r, groupID, caller.UserID)
		if err != nil {
			return err
		}
		if group.IsPersonal {
			return apperr.ErrPersonalGroup.WithMessage("roles can not be changed in a personal group")
		}
		target, err := loadTarget(ctx, r, groupID, userID)
		if err != nil {
			return err
		}
		if target.Role == role {
			return nil
		}
		if role != models.RoleAdmin {
			if err := keepsAnAdmin(ctx, r, target); err != nil {
				return err
			}
		}
		if err := r.Members().UpdateRole(ctx, groupID, userID, role); err != nil {
			return apperr.Internal(err, "failed to update role")
		}
		return nil
	})
	if err != nil {
		return s.fail(err, "failed to update role")
	}

	logger.ForGroup(s.logger, caller.UserID, groupID).
		WithField("member_id", userID).
		WithField("role", role).
		Info("Updated member role")
	return nil
}

// LeaveGroup removes the caller from a shared group. The last admin must
// hand over the role first.
func (s *Service) LeaveGroup(ctx context.Context, caller Caller, groupID string) error {
	err := s.store.WithinTx(ctx, func(r repository.Repositories) error {
		group, member, err := requireMemberForUpdate(ctx, r, groupID, caller.UserID)
		if err != nil {
			return err
		}
		if group.IsPersonal {
			return apperr.ErrPersonalGroup.WithMessage("personal groups can not be left")
		}
		if err := keepsAnAdmin(ctx, r, member); err != nil {
			return err
		}
		if err := r.Members().Remove(ctx, groupID, caller.UserID); err != nil {
			return apperr.Internal(err, "failed to leave group")
		}
		return nil
	})
	if err != nil {
		return s.fail(err, "failed to leave group")
	}

	logger.ForGroup(s.logger, caller.UserID, groupID).Info("User left group")
	return nil
}
