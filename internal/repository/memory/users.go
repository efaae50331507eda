package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Kerhoff/CartBot/internal/models"
)

type userRepository struct {
	view
}

func copyUser(u models.User) *models.User {
	if u.TelegramID != nil {
		id := *u.TelegramID
		u.TelegramID = &id
	}
	if u.PersonalGroupID != nil {
		id := *u.PersonalGroupID
		u.PersonalGroupID = &id
	}
	return &u
}

func (r userRepository) Create(_ context.Context, user *models.User) (*models.User, error) {
	err := r.run(func(st *state) error {
		if user.ID == "" {
			user.ID = uuid.NewString()
		}
		if _, ok := st.users[user.ID]; ok {
			return duplicate("user %s", user.ID)
		}
		if user.TelegramID != nil {
			for _, existing := range st.users {
				if existing.value.TelegramID != nil && *existing.value.TelegramID == *user.TelegramID {
					return duplicate("telegram user %d", *user.TelegramID)
				}
			}
		}
		now := time.Now()
		user.CreatedAt = now
		user.UpdatedAt = now
		user.PersonalGroupID = nil
		st.users[user.ID] = row[models.User]{value: *copyUser(*user), seq: st.next()}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r userRepository) GetByID(_ context.Context, id string) (*models.User, error) {
	var user *models.User
	err := r.run(func(st *state) error {
		if u, ok := st.users[id]; ok {
			user = copyUser(u.value)
		}
		return nil
	})
	return user, err
}

func (r userRepository) GetForUpdate(ctx context.Context, id string) (*models.User, error) {
	return r.GetByID(ctx, id)
}

func (r userRepository) GetByTelegramID(_ context.Context, telegramID int64) (*models.User, error) {
	var user *models.User
	err := r.run(func(st *state) error {
		for _, u := range st.users {
			if u.value.TelegramID != nil && *u.value.TelegramID == telegramID {
				user = copyUser(u.value)
				return nil
			}
		}
		return nil
	})
	return user, err
}

func (r userRepository) Update(_ context.Context, user *models.User) (*models.User, error) {
	err := r.run(func(st *state) error {
		existing, ok := st.users[user.ID]
		if !ok {
			return notFound("user %s", user.ID)
		}
		stored := existing.value
		stored.Username = user.Username
		stored.FirstName = user.FirstName
		stored.LastName = user.LastName
		stored.IsAnonymous = user.IsAnonymous
		stored.UpdatedAt = time.Now()
		user.UpdatedAt = stored.UpdatedAt
		existing.value = stored
		st.users[user.ID] = existing
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r userRepository) SetPersonalGroup(_ context.Context, userID, groupID string) error {
	return r.run(func(st *state) error {
		existing, ok := st.users[userID]
		if !ok {
			return notFound("user %s", userID)
		}
		if _, ok := st.groups[groupID]; !ok {
			return notFound("group %s", groupID)
		}
		id := groupID
		existing.value.PersonalGroupID = &id
		existing.value.UpdatedAt = time.Now()
		st.users[userID] = existing
		return nil
	})
}
