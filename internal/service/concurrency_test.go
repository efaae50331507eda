package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kerhoff/CartBot/internal/action"
	"github.com/Kerhoff/CartBot/internal/apperr"
	"github.com/Kerhoff/CartBot/internal/models"
	"github.com/Kerhoff/CartBot/internal/repository"
	"github.com/Kerhoff/CartBot/internal/repository/memory"
)

// staleStore serves lookups that miss rows another writer committed after
// the read, so the following insert hits the unique constraint.
type staleStore struct {
	*memory.Store
	hideMembers bool
	hideItems   bool
}

func (s *staleStore) WithinTx(ctx context.Context, fn func(r repository.Repositories) error) error {
	return s.Store.WithinTx(ctx, func(r repository.Repositories) error {
		return fn(staleRepos{Repositories: r, store: s})
	})
}

type staleRepos struct {
	repository.Repositories
	store *staleStore
}

func (r staleRepos) Members() repository.MemberRepository {
	if r.store.hideMembers {
		return staleMembers{r.Repositories.Members()}
	}
	return r.Repositories.Members()
}

func (r staleRepos) Items() repository.ItemRepository {
	if r.store.hideItems {
		return staleItems{r.Repositories.Items()}
	}
	return r.Repositories.Items()
}

type staleMembers struct{ repository.MemberRepository }

func (staleMembers) Get(context.Context, string, string) (*models.GroupMember, error) {
	return nil, nil
}

type staleItems struct{ repository.ItemRepository }

func (staleItems) FindByName(context.Context, string, string) (*models.ShoppingListItem, error) {
	return nil, nil
}

func TestJoinViaCodeConcurrentJoinIsAlreadyMember(t *testing.T) {
	f := newFixture(t, Config{})
	ann := f.user(t, "ann")
	bob := f.user(t, "bob")
	group := f.group(t, ann, "Flat")
	f.join(t, bob, group)

	svc := f.on(&staleStore{Store: f.store, hideMembers: true})
	_, err := svc.JoinViaCode(f.ctx, bob, group.InviteCode)
	requireCode(t, err, apperr.ErrAlreadyMember)
	assert.ErrorIs(t, err, apperr.ErrAlreadyMember)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	assert.NotContains(t, apperr.MessageOf(err), repository.ErrDuplicate.Error())

	details, err := f.svc.GetGroupDetails(f.ctx, ann, group.ID)
	require.NoError(t, err)
	assert.Len(t, details.Members, 2)
}

func TestExecuteActionsConcurrentAddIsItemConflict(t *testing.T) {
	f := newFixture(t, Config{})
	ann := f.user(t, "ann")
	group := f.personal(t, ann)

	_, err := f.svc.ExecuteActions(f.ctx, ann, group.ID, []action.Raw{add("milk", 1)})
	require.NoError(t, err)

	svc := f.on(&staleStore{Store: f.store, hideItems: true})
	_, err = svc.ExecuteActions(f.ctx, ann, group.ID, []action.Raw{add("bread", 1), add("Milk", 2)})
	requireCode(t, err, apperr.ErrItemConflict)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	assert.Contains(t, apperr.MessageOf(err), `"Milk"`)
	assert.NotContains(t, apperr.MessageOf(err), repository.ErrDuplicate.Error())

	items, err := f.svc.GetItems(f.ctx, ann, group.ID)
	require.NoError(t, err)
	assert.Equal(t, []itemState{{Name: "milk", Amount: 1}}, states(items))
}
