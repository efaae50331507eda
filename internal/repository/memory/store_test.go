package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kerhoff/CartBot/internal/models"
	"github.com/Kerhoff/CartBot/internal/repository"
)

func seedGroup(t *testing.T, s *Store) (*models.User, *models.Group) {
	t.Helper()
	ctx := context.Background()

	user, err := s.Users().Create(ctx, &models.User{Username: "ann"})
	require.NoError(t, err)
	group, err := s.Groups().Create(ctx, &models.Group{Name: "Flat", InviteCode: "ABC123"})
	require.NoError(t, err)
	_, err = s.Members().Add(ctx, &models.GroupMember{GroupID: group.ID, UserID: user.ID, Role: models.RoleAdmin})
	require.NoError(t, err)
	return user, group
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	user, group := seedGroup(t, s)

	boom := errors.New("boom")
	err := s.WithinTx(ctx, func(r repository.Repositories) error {
		_, err := r.Items().Create(ctx, &models.ShoppingListItem{
			Name: "Milk", Amount: 1, GroupID: group.ID, CreatedByID: user.ID,
		})
		require.NoError(t, err)

		n, err := r.Items().Count(ctx, group.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		return boom
	})
	require.ErrorIs(t, err, boom)

	n, err := s.Items().Count(ctx, group.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestWithinTxCommits(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	user, group := seedGroup(t, s)

	err := s.WithinTx(ctx, func(r repository.Repositories) error {
		_, err := r.Items().Create(ctx, &models.ShoppingListItem{
			Name: "Milk", Amount: 1, GroupID: group.ID, CreatedByID: user.ID,
		})
		return err
	})
	require.NoError(t, err)

	item, err := s.Items().FindByName(ctx, group.ID, "MILK")
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, "Milk", item.Name)
}

func TestItemNameUniqueIgnoringCase(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	user, group := seedGroup(t, s)

	_, err := s.Items().Create(ctx, &models.ShoppingListItem{Name: "Milk", Amount: 1, GroupID: group.ID, CreatedByID: user.ID})
	require.NoError(t, err)

	_, err = s.Items().Create(ctx, &models.ShoppingListItem{Name: "milk", Amount: 2, GroupID: group.ID, CreatedByID: user.ID})
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	eggs, err := s.Items().Create(ctx, &models.ShoppingListItem{Name: "Eggs", Amount: 2, GroupID: group.ID, CreatedByID: user.ID})
	require.NoError(t, err)

	eggs.Name = "MILK"
	_, err = s.Items().Update(ctx, eggs)
	assert.ErrorIs(t, err, repository.ErrDuplicate)
}

func TestItemAmountBounds(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	user, group := seedGroup(t, s)

	_, err := s.Items().Create(ctx, &models.ShoppingListItem{Name: "Milk", Amount: 0, GroupID: group.ID, CreatedByID: user.ID})
	assert.ErrorIs(t, err, repository.ErrConstraint)

	_, err = s.Items().Create(ctx, &models.ShoppingListItem{Name: "Milk", Amount: models.MaxItemAmount + 1, GroupID: group.ID, CreatedByID: user.ID})
	assert.ErrorIs(t, err, repository.ErrConstraint)

	item, err := s.Items().Create(ctx, &models.ShoppingListItem{Name: "Milk", Amount: models.MaxItemAmount, GroupID: group.ID, CreatedByID: user.ID})
	require.NoError(t, err)

	item.Amount = -1
	_, err = s.Items().Update(ctx, item)
	assert.ErrorIs(t, err, repository.ErrConstraint)

	stored, err := s.Items().GetByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MaxItemAmount, stored.Amount)
}

func TestListByGroupNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	user, group := seedGroup(t, s)

	for _, name := range []string{"a", "b", "c"} {
		_, err := s.Items().Create(ctx, &models.ShoppingListItem{Name: name, Amount: 1, GroupID: group.ID, CreatedByID: user.ID})
		require.NoError(t, err)
	}

	items, err := s.Items().ListByGroup(ctx, group.ID)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{items[0].Name, items[1].Name, items[2].Name})
}

func TestReturnedRowsAreCopies(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	_, group := seedGroup(t, s)

	got, err := s.Groups().GetByID(ctx, group.ID)
	require.NoError(t, err)
	got.Name = "changed"

	again, err := s.Groups().GetByID(ctx, group.ID)
	require.NoError(t, err)
	assert.Equal(t, "Flat", again.Name)
}

func TestGroupDeleteCascades(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	user, group := seedGroup(t, s)

	_, err := s.Items().Create(ctx, &models.ShoppingListItem{Name: "Milk", Amount: 1, GroupID: group.ID, CreatedByID: user.ID})
	require.NoError(t, err)
	require.NoError(t, s.Users().SetPersonalGroup(ctx, user.ID, group.ID))

	require.NoError(t, s.Groups().Delete(ctx, group.ID))

	n, err := s.Items().Count(ctx, group.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	member, err := s.Members().Get(ctx, group.ID, user.ID)
	require.NoError(t, err)
	assert.Nil(t, member)

	reloaded, err := s.Users().GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Nil(t, reloaded.PersonalGroupID)

	assert.ErrorIs(t, s.Groups().Delete(ctx, group.ID), repository.ErrNotFound)
}

func TestDuplicateMembershipAndInviteCode(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	user, group := seedGroup(t, s)

	_, err := s.Members().Add(ctx, &models.GroupMember{GroupID: group.ID, UserID: user.ID, Role: models.RoleMember})
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	_, err = s.Groups().Create(ctx, &models.Group{Name: "Other", InviteCode: "ABC123"})
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	exists, err := s.Groups().InviteCodeExists(ctx, "ABC123")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestListByUserPersonalFirst(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	user, shared := seedGroup(t, s)

	personal, err := s.Groups().Create(ctx, &models.Group{Name: "My List", InviteCode: "PERS01", IsPersonal: true})
	require.NoError(t, err)
	_, err = s.Members().Add(ctx, &models.GroupMember{GroupID: personal.ID, UserID: user.ID, Role: models.RoleAdmin})
	require.NoError(t, err)

	newer, err := s.Groups().Create(ctx, &models.Group{Name: "Office", InviteCode: "OFFICE"})
	require.NoError(t, err)
	_, err = s.Members().Add(ctx, &models.GroupMember{GroupID: newer.ID, UserID: user.ID, Role: models.RoleMember})
	require.NoError(t, err)

	summaries, err := s.Groups().ListByUser(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, summaries, 3)
	assert.Equal(t, personal.ID, summaries[0].ID)
	assert.Equal(t, newer.ID, summaries[1].ID)
	assert.Equal(t, shared.ID, summaries[2].ID)
	assert.Equal(t, models.RoleMember, summaries[1].Role)
	assert.Equal(t, 1, summaries[2].MemberCount)
}
