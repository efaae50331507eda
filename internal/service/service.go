package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/CartBot/internal/apperr"
	"github.com/Kerhoff/CartBot/internal/assistant"
	"github.com/Kerhoff/CartBot/internal/invite"
	"github.com/Kerhoff/CartBot/internal/metrics"
	"github.com/Kerhoff/CartBot/internal/models"
	"github.com/Kerhoff/CartBot/internal/repository"
)

// PersonalGroupName is the name given to every personal group.
const PersonalGroupName = "My List"

// Caller is the authenticated identity an operation runs as.
type Caller struct {
	UserID    string
	Anonymous bool
}

// Config tunes the service. Zero values select the defaults.
type Config struct {
	// Model answers assistant requests. Nil disables the assistant.
	Model                   assistant.Model
	Invites                 invite.Generator
	Metrics                 *metrics.Metrics
	InviteCodeMaxAttempts   int
	AssistantHistoryLimit   int
	AssistantAllowAnonymous bool
	// AssistantTimeout bounds one model request. Zero means no limit
	// beyond the caller's context.
	AssistantTimeout time.Duration
}

// Service is the business logic layer shared by the HTTP API and the
// Telegram bot. Every mutating operation runs in one store transaction.
type Service struct {
	store    repository.Store
	logger   *logrus.Logger
	validate *validator.Validate
	cfg      Config
}

// New creates a new Service.
func New(store repository.Store, logger *logrus.Logger, cfg Config) *Service {
	if cfg.Invites == nil {
		cfg.Invites = invite.RandomGenerator{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewDefault()
	}
	if cfg.InviteCodeMaxAttempts <= 0 {
		cfg.InviteCodeMaxAttempts = 10
	}
	if cfg.AssistantHistoryLimit <= 0 {
		cfg.AssistantHistoryLimit = 10
	}

	return &Service{
		store:    store,
		logger:   logger,
		validate: validator.New(),
		cfg:      cfg,
	}
}

// AssistantEnabled reports whether a model is configured.
func (s *Service) AssistantEnabled() bool {
	return s.cfg.Model != nil
}

// EnsureTelegramUser retrieves the user behind a Telegram account, creating
// it on first contact and refreshing the profile when it changed. The user's
// personal group is guaranteed to exist afterwards.
func (s *Service) EnsureTelegramUser(ctx context.Context, telegramID int64, username, firstName, lastName string) (*models.User, error) {
	username = strings.TrimSpace(username)
	firstName = strings.TrimSpace(firstName)
	lastName = strings.TrimSpace(lastName)

	var user *models.User
	err := s.store.WithinTx(ctx, func(r repository.Repositories) error {
		var err error
		user, err = r.Users().GetByTelegramID(ctx, telegramID)
		if err != nil {
			return apperr.Internal(err, "failed to look up telegram user %d", telegramID)
		}

		if user == nil {
			id := telegramID
			user, err = r.Users().Create(ctx, &models.User{
				TelegramID: &id,
				Username:   username,
				FirstName:  firstName,
				LastName:   lastName,
			})
			if err != nil {
				return apperr.Internal(err, "failed to create telegram user %d", telegramID)
			}
			s.logger.WithField("user_id", user.ID).Infof("Created new user: %s", user.DisplayName())
		} else if user.Username != username || user.FirstName != firstName || user.LastName != lastName {
			user.Username = username
			user.FirstName = firstName
			user.LastName = lastName
			if user, err = r.Users().Update(ctx, user); err != nil {
				return apperr.Internal(err, "failed to update telegram user %d", telegramID)
			}
			s.logger.WithField("user_id", user.ID).Infof("Updated user profile: %s", user.DisplayName())
		}

		group, err := s.ensurePersonalGroup(ctx, r, user.ID)
		if err != nil {
			return err
		}
		user.PersonalGroupID = &group.ID
		return nil
	})
	if err != nil {
		return nil, s.fail(err, "failed to ensure telegram user")
	}

	return user, nil
}

// CreateUser registers a user that is not bound to Telegram, for example an
// anonymous web visitor, and bootstraps the personal group.
func (s *Service) CreateUser(ctx context.Context, username string, anonymous bool) (*models.User, error) {
	var user *models.User
	err := s.store.WithinTx(ctx, func(r repository.Repositories) error {
		var err error
		user, err = r.Users().Create(ctx, &models.User{
			Username:    strings.TrimSpace(username),
			IsAnonymous: anonymous,
		})
		if err != nil {
			return apperr.Internal(err, "failed to create user")
		}
		group, err := s.ensurePersonalGroup(ctx, r, user.ID)
		if err != nil {
			return err
		}
		user.PersonalGroupID = &group.ID
		return nil
	})
	if err != nil {
		return nil, s.fail(err, "failed to create user")
	}
	return user, nil
}

// GetUser returns the caller's own user record.
func (s *Service) GetUser(ctx context.Context, caller Caller) (*models.User, error) {
	if caller.UserID == "" {
		return nil, apperr.ErrUnauthenticated
	}
	user, err := s.store.Users().GetByID(ctx, caller.UserID)
	if err != nil {
		return nil, s.fail(err, "failed to load user")
	}
	if user == nil {
		return nil, apperr.ErrUserNotFound
	}
	return user, nil
}

// check validates an input struct.
func (s *Service) check(input any) error {
	if err := s.validate.Struct(input); err != nil {
		return apperr.Invalid(err)
	}
	return nil
}

// fail converts err into an *apperr.Error and logs it: expected domain
// errors at warn, anything else at error.
func (s *Service) fail(err error, format string, args ...any) error {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		appErr = apperr.Internal(err, format, args...)
	}

	entry := s.logger.WithFields(logrus.Fields{
		"code": appErr.Code,
		"kind": appErr.Kind.String(),
	})
	if apperr.IsExpected(appErr) {
		entry.Warn(appErr.Message)
	} else {
		entry.WithError(err).Error(appErr.Message)
	}
	return appErr
}

// requireMember loads the group and the caller's membership in it.
func requireMember(ctx context.Context, r repository.Repositories, groupID, userID string) (*models.Group, *models.GroupMember, error) {
	return loadMembership(ctx, r, groupID, userID, false)
}

// requireMemberForUpdate is requireMember with the group row locked, which
// serializes membership changes of one group.
func requireMemberForUpdate(ctx context.Context, r repository.Repositories, groupID, userID string) (*models.Group, *models.GroupMember, error) {
	return loadMembership(ctx, r, groupID, userID, true)
}

func loadMembership(ctx context.Context, r repository.Repositories, groupID, userID string, lock bool) (*models.Group, *models.GroupMember, error) {
	if userID == "" {
		return nil, nil, apperr.ErrUnauthenticated
	}

	var group *models.Group
	var err error
	if lock {
		group, err = r.Groups().GetForUpdate(ctx, groupID)
	} else {
		group, err = r.Groups().GetByID(ctx, groupID)
	}
	if err != nil {
		return nil, nil, apperr.Internal(err, "failed to load group")
	}
	if group == nil {
		return nil, nil, apperr.ErrGroupNotFound
	}

	member, err := r.Members().Get(ctx, groupID, userID)
	if err != nil {
		return nil, nil, apperr.Internal(err, "failed to load membership")
	}
	if member == nil {
		return nil, nil, apperr.ErrNotMember
	}

	return group, member, nil
}

// requireAdmin is requireMemberForUpdate that also demands the admin role.
func requireAdmin(ctx context.Context, r repository.Repositories, groupID, userID string) (*models.Group, *models.GroupMember, error) {
	group, member, err := requireMemberForUpdate(ctx, r, groupID, userID)
	if err != nil {
		return nil, nil, err
	}
	if !member.IsAdmin() {
		return nil, nil, apperr.ErrNotAdmin
	}
	return group, member, nil
}
