package service

import (
	"context"
	"errors"

	"github.com/Kerhoff/CartBot/internal/apperr"
	"github.com/Kerhoff/CartBot/internal/invite"
	"github.com/Kerhoff/CartBot/internal/models"
	"github.com/Kerhoff/CartBot/internal/repository"
	"github.com/Kerhoff/CartBot/pkg/logger"
)

// uniqueInviteCode draws codes until one is unused, giving up after the
// configured number of attempts.
func (s *Service) uniqueInviteCode(ctx context.Context, r repository.Repositories) (string, error) {
	for attempt := 1; attempt <= s.cfg.InviteCodeMaxAttempts; attempt++ {
		code, err := s.cfg.Invites.Generate()
		if err != nil {
			return "", apperr.Internal(err, "failed to generate invite code")
		}
		exists, err := r.Groups().InviteCodeExists(ctx, code)
		if err != nil {
			return "", apperr.Internal(err, "failed to check invite code")
		}
		if !exists {
			return code, nil
		}
		s.logger.WithField("attempt", attempt).Debug("Invite code collision")
	}
	return "", apperr.ErrInviteCodeExhausted.WithMessage(
		"failed to generate a unique invite code after %d attempts", s.cfg.InviteCodeMaxAttempts)
}

// GenerateInviteCode gives a shared group a fresh invite code. Admin only.
func (s *Service) GenerateInviteCode(ctx context.Context, caller Caller, groupID string) (string, error) {
	var code string
	err := s.store.WithinTx(ctx, func(r repository.Repositories) error {
		group, _, err := requireAdmin(ctx, r, groupID, caller.UserID)
		if err != nil {
			return err
		}
		if group.IsPersonal {
			return apperr.ErrPersonalGroup.WithMessage("personal groups have no invite code")
		}

		if code, err = s.uniqueInviteCode(ctx, r); err != nil {
			return err
		}
		if err := r.Groups().SetInviteCode(ctx, groupID, code); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return apperr.ErrInviteCodeConflict.Wrap(err)
			}
			return apperr.Internal(err, "failed to store invite code")
		}
		return nil
	})
	if err != nil {
		return "", s.fail(err, "failed to generate invite code")
	}

	logger.ForGroup(s.logger, caller.UserID, groupID).Info("Invite code generated")
	return code, nil
}

// RegenerateInviteCode replaces the invite code of a shared group, which
// invalidates the previous one. Admin only.
func (s *Service) RegenerateInviteCode(ctx context.Context, caller Caller, groupID string) (string, error) {
	return s.GenerateInviteCode(ctx, caller, groupID)
}

// findInviteTarget resolves a user supplied code to a joinable group.
func findInviteTarget(ctx context.Context, r repository.Repositories, code string) (*models.Group, error) {
	code = invite.Normalize(code)
	if !invite.Valid(code) {
		return nil, apperr.ErrInvalidInviteCode
	}

	group, err := r.Groups().GetByInviteCode(ctx, code)
	if err != nil {
		return nil, apperr.Internal(err, "failed to look up invite code")
	}
	if group == nil {
		return nil, apperr.ErrGroupNotFound.WithMessage("no group uses this invite code")
	}
	if group.IsPersonal {
		return nil, apperr.ErrPersonalGroup.WithMessage("personal groups can not be joined")
	}
	return group, nil
}

// ValidateInviteCode previews the group behind code without joining it.
func (s *Service) ValidateInviteCode(ctx context.Context, caller Caller, code string) (*models.InvitePreview, error) {
	if caller.UserID == "" {
		return nil, apperr.ErrUnauthenticated
	}

	group, err := findInviteTarget(ctx, s.store, code)
	if err != nil {
		return nil, s.fail(err, "failed to validate invite code")
	}

	memberCount, err := s.store.Members().Count(ctx, group.ID)
	if err != nil {
		return nil, s.fail(err, "failed to count members")
	}
	itemCount, err := s.store.Items().Count(ctx, group.ID)
	if err != nil {
		return nil, s.fail(err, "failed to count items")
	}
	member, err := s.store.Members().Get(ctx, group.ID, caller.UserID)
	if err != nil {
		return nil, s.fail(err, "failed to load membership")
	}

	return &models.InvitePreview{
		GroupID:         group.ID,
		Name:            group.Name,
		Description:     group.Description,
		MemberCount:     memberCount,
		ItemCount:       itemCount,
		CreatedAt:       group.CreatedAt,
		IsAlreadyMember: member != nil,
	}, nil
}

// JoinViaCode adds the caller to the group behind code as a member.
// Anonymous users can not join.
func (s *Service) JoinViaCode(ctx context.Context, caller Caller, code string) (*models.Group, error) {
	if caller.UserID == "" {
		return nil, apperr.ErrUnauthenticated
	}
	if caller.Anonymous {
		return nil, s.fail(apperr.ErrAnonymousForbidden.WithMessage("anonymous users can not join groups"), "")
	}

	var group *models.Group
	err := s.store.WithinTx(ctx, func(r repository.Repositories) error {
		user, err := r.Users().GetByID(ctx, caller.UserID)
		if err != nil {
			return apperr.Internal(err, "failed to load user")
		}
		if user == nil {
			return apperr.ErrUserNotFound
		}
		if user.IsAnonymous {
			return apperr.ErrAnonymousForbidden.WithMessage("anonymous users can not join groups")
		}

		if group, err = findInviteTarget(ctx, r, code); err != nil {
			return err
		}

		existing, err := r.Members().Get(ctx, group.ID, caller.UserID)
		if err != nil {
			return apperr.Internal(err, "failed to load membership")
		}
		if existing != nil {
			return apperr.ErrAlreadyMember
		}

		_, err = r.Members().Add(ctx, &models.GroupMember{
			GroupID: group.ID,
			UserID:  caller.UserID,
			Role:    models.RoleMember,
		})
		if errors.Is(err, repository.ErrDuplicate) {
			return apperr.ErrAlreadyMember.Wrap(err)
		}
		if err != nil {
			return apperr.Internal(err, "failed to join group")
		}
		return nil
	})
	if err != nil {
		return nil, s.fail(err, "failed to join group")
	}

	logger.ForGroup(s.logger, caller.UserID, group.ID).Info("User joined group")
	return group, nil
}
