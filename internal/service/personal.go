package service

import (
	"context"

	"github.com/Kerhoff/CartBot/internal/apperr"
	"github.com/Kerhoff/CartBot/internal/models"
	"github.com/Kerhoff/CartBot/internal/repository"
)

// EnsurePersonalGroup returns the caller's personal group, creating it,
// its admin membership and the user's back-reference together when missing.
func (s *Service) EnsurePersonalGroup(ctx context.Context, caller Caller) (*models.Group, error) {
	if caller.UserID == "" {
		return nil, apperr.ErrUnauthenticated
	}

	var group *models.Group
	err := s.store.WithinTx(ctx, func(r repository.Repositories) error {
		var err error
		group, err = s.ensurePersonalGroup(ctx, r, caller.UserID)
		return err
	})
	if err != nil {
		return nil, s.fail(err, "failed to ensure personal group")
	}
	return group, nil
}

// ensurePersonalGroup locks the user row so concurrent callers wait for the
// first one to link its group instead of creating a second.
func (s *Service) ensurePersonalGroup(ctx context.Context, r repository.Repositories, userID string) (*models.Group, error) {
	user, err := r.Users().GetForUpdate(ctx, userID)
	if err != nil {
		return nil, apperr.Internal(err, "failed to load user")
	}
	if user == nil {
		return nil, apperr.ErrUserNotFound
	}

	if user.PersonalGroupID != nil {
		group, err := r.Groups().GetByID(ctx, *user.PersonalGroupID)
		if err != nil {
			return nil, apperr.Internal(err, "failed to load personal group")
		}
		if group != nil {
			return group, nil
		}
	}

	code, err := s.uniqueInviteCode(ctx, r)
	if err != nil {
		return nil, err
	}

	group, err := r.Groups().Create(ctx, &models.Group{
		Name:       PersonalGroupName,
		InviteCode: code,
		IsPersonal: true,
	})
	if err != nil {
		return nil, apperr.Internal(err, "failed to create personal group")
	}

	if _, err := r.Members().Add(ctx, &models.GroupMember{
		GroupID: group.ID,
		UserID:  userID,
		Role:    models.RoleAdmin,
	}); err != nil {
		return nil, apperr.Internal(err, "failed to add personal group admin")
	}

	if err := r.Users().SetPersonalGroup(ctx, userID, group.ID); err != nil {
		return nil, apperr.Internal(err, "failed to link personal group")
	}

	s.logger.WithField("user_id", userID).WithField("group_id", group.ID).Info("Created personal group")
	return group, nil
}
