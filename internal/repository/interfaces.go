package repository

import (
	"context"
	"errors"

	"github.com/Kerhoff/CartBot/internal/models"
)

var (
	// ErrNotFound is returned by mutations that matched no row.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique constraint rejects a write.
	ErrDuplicate = errors.New("duplicate record")
	// ErrConstraint is returned when a check constraint rejects a write.
	ErrConstraint = errors.New("constraint violation")
)

// Lookups return (nil, nil) when the record does not exist. Methods named
// *ForUpdate lock the returned row until the surrounding transaction ends.

// UserRepository defines the interface for user data operations
type UserRepository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetForUpdate(ctx context.Context, id string) (*models.User, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error)
	Update(ctx context.Context, user *models.User) (*models.User, error)
	SetPersonalGroup(ctx context.Context, userID, groupID string) error
}

// GroupRepository defines the interface for group data operations
type GroupRepository interface {
	Create(ctx context.Context, group *models.Group) (*models.Group, error)
	GetByID(ctx context.Context, id string) (*models.Group, error)
	GetForUpdate(ctx context.Context, id string) (*models.Group, error)
	GetByInviteCode(ctx context.Context, code string) (*models.Group, error)
	InviteCodeExists(ctx context.Context, code string) (bool, error)
	Update(ctx context.Context, group *models.Group) (*models.Group, error)
	SetInviteCode(ctx context.Context, groupID, code string) error
	Delete(ctx context.Context, id string) error
	ListByUser(ctx context.Context, userID string) ([]*models.GroupSummary, error)
}

// MemberRepository defines the interface for group membership operations
type MemberRepository interface {
	Add(ctx context.Context, member *models.GroupMember) (*models.GroupMember, error)
	Get(ctx context.Context, groupID, userID string) (*models.GroupMember, error)
	List(ctx context.Context, groupID string) ([]*models.GroupMember, error)
	UpdateRole(ctx context.Context, groupID, userID string, role models.Role) error
	Remove(ctx context.Context, groupID, userID string) error
	Count(ctx context.Context, groupID string) (int, error)
	CountAdmins(ctx context.Context, groupID string) (int, error)
}

// ItemRepository defines the interface for shopping list item operations
type ItemRepository interface {
	Create(ctx context.Context, item *models.ShoppingListItem) (*models.ShoppingListItem, error)
	GetByID(ctx context.Context, id string) (*models.ShoppingListItem, error)
	GetForUpdate(ctx context.Context, id string) (*models.ShoppingListItem, error)
	// FindByName matches name ignoring case and locks the row.
	FindByName(ctx context.Context, groupID, name string) (*models.ShoppingListItem, error)
	// ListByGroup returns items newest first.
	ListByGroup(ctx context.Context, groupID string) ([]*models.ShoppingListItem, error)
	ListByCreator(ctx context.Context, groupID, createdByID string) ([]*models.ShoppingListItem, error)
	Update(ctx context.Context, item *models.ShoppingListItem) (*models.ShoppingListItem, error)
	Delete(ctx context.Context, id string) error
	DeleteCompleted(ctx context.Context, groupID string) (int64, error)
	Count(ctx context.Context, groupID string) (int, error)
}

// Repositories groups the repositories bound to one connection or transaction.
type Repositories interface {
	Users() UserRepository
	Groups() GroupRepository
	Members() MemberRepository
	Items() ItemRepository
}

// Store is the transactional entry point. Repositories used outside
// WithinTx run each statement on its own; everything fn does through r
// commits together, or not at all when fn returns an error.
type Store interface {
	Repositories
	WithinTx(ctx context.Context, fn func(r Repositories) error) error
	Close() error
}
