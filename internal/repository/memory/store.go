// Package memory implements the repository interfaces in process. A
// transaction works on a copy of the data and swaps it in on commit, so a
// failed fn leaves no trace. Transactions are serialized.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/Kerhoff/CartBot/internal/models"
	"github.com/Kerhoff/CartBot/internal/repository"
)

// Ensure Store implements repository.Store
var _ repository.Store = (*Store)(nil)

type row[T any] struct {
	value T
	seq   uint64
}

type memberKey struct {
	groupID string
	userID  string
}

type state struct {
	seq     uint64
	users   map[string]row[models.User]
	groups  map[string]row[models.Group]
	members map[memberKey]row[models.GroupMember]
	items   map[string]row[models.ShoppingListItem]
}

func newState() *state {
	return &state{
		users:   make(map[string]row[models.User]),
		groups:  make(map[string]row[models.Group]),
		members: make(map[memberKey]row[models.GroupMember]),
		items:   make(map[string]row[models.ShoppingListItem]),
	}
}

func (s *state) next() uint64 {
	s.seq++
	return s.seq
}

func (s *state) clone() *state {
	c := &state{
		seq:     s.seq,
		users:   make(map[string]row[models.User], len(s.users)),
		groups:  make(map[string]row[models.Group], len(s.groups)),
		members: make(map[memberKey]row[models.GroupMember], len(s.members)),
		items:   make(map[string]row[models.ShoppingListItem], len(s.items)),
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.groups {
		c.groups[k] = v
	}
	for k, v := range s.members {
		c.members[k] = v
	}
	for k, v := range s.items {
		c.items[k] = v
	}
	return c
}

// Store is an in-process repository.Store.
type Store struct {
	mu    sync.Mutex
	state *state
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{state: newState()}
}

// view runs statements either inside a transaction (tx set) or one at a
// time against the committed state.
type view struct {
	store *Store
	tx    *state
}

func (v view) run(fn func(st *state) error) error {
	if v.tx != nil {
		return fn(v.tx)
	}
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	return fn(v.store.state)
}

func (v view) Users() repository.UserRepository     { return userRepository{v} }
func (v view) Groups() repository.GroupRepository   { return groupRepository{v} }
func (v view) Members() repository.MemberRepository { return memberRepository{v} }
func (v view) Items() repository.ItemRepository     { return itemRepository{v} }

func (s *Store) Users() repository.UserRepository     { return view{store: s}.Users() }
func (s *Store) Groups() repository.GroupRepository   { return view{store: s}.Groups() }
func (s *Store) Members() repository.MemberRepository { return view{store: s}.Members() }
func (s *Store) Items() repository.ItemRepository     { return view{store: s}.Items() }

// WithinTx runs fn against a private copy of the data and commits the copy
// only when fn succeeds and ctx is still live.
func (s *Store) WithinTx(ctx context.Context, fn func(r repository.Repositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	tx := s.state.clone()
	if err := fn(view{store: s, tx: tx}); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.state = tx
	return nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

func duplicate(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), repository.ErrDuplicate)
}

func constraint(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), repository.ErrConstraint)
}

func notFound(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), repository.ErrNotFound)
}
