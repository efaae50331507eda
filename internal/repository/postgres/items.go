package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Kerhoff/CartBot/internal/models"
	"github.com/Kerhoff/CartBot/internal/repository"
)

type itemRepository struct {
	db dbtx
}

const itemColumns = `id, name, amount, is_completed, group_id, created_by_id, created_at, updated_at`

func scanItem(row interface{ Scan(...any) error }) (*models.ShoppingListItem, error) {
	item := &models.ShoppingListItem{}
	err := row.Scan(
		&item.ID,
		&item.Name,
		&item.Amount,
		&item.IsCompleted,
		&item.GroupID,
		&item.CreatedByID,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	return item, err
}

func (r *itemRepository) Create(ctx context.Context, item *models.ShoppingListItem) (*models.ShoppingListItem, error) {
	query := `
		INSERT INTO shopping_list_items (id, name, amount, is_completed, group_id, created_by_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`

	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	now := time.Now()
	item.CreatedAt = now
	item.UpdatedAt = now

	err := r.db.QueryRowContext(ctx, query,
		item.ID,
		item.Name,
		item.Amount,
		item.IsCompleted,
		item.GroupID,
		item.CreatedByID,
		item.CreatedAt,
		item.UpdatedAt,
	).Scan(&item.CreatedAt, &item.UpdatedAt)

	if err != nil {
		return nil, translate(err, "failed to create shopping list item")
	}

	return item, nil
}

func (r *itemRepository) get(ctx context.Context, query string, args ...any) (*models.ShoppingListItem, error) {
	item, err := scanItem(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get shopping list item: %w", err)
	}
	return item, nil
}

func (r *itemRepository) GetByID(ctx context.Context, id string) (*models.ShoppingListItem, error) {
	return r.get(ctx, `SELECT `+itemColumns+` FROM shopping_list_items WHERE id = $1`, id)
}

func (r *itemRepository) GetForUpdate(ctx context.Context, id string) (*models.ShoppingListItem, error) {
	return r.get(ctx, `SELECT `+itemColumns+` FROM shopping_list_items WHERE id = $1 FOR UPDATE`, id)
}

func (r *itemRepository) FindByName(ctx context.Context, groupID, name string) (*models.ShoppingListItem, error) {
	query := `
		SELECT ` + itemColumns + `
		FROM shopping_list_items
		WHERE group_id = $1 AND lower(name) = lower($2)
		FOR UPDATE`

	return r.get(ctx, query, groupID, name)
}

func (r *itemRepository) list(ctx context.Context, query string, args ...any) ([]*models.ShoppingListItem, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query shopping list items: %w", err)
	}
	defer rows.Close()

	var items []*models.ShoppingListItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan shopping list item: %w", err)
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

func (r *itemRepository) ListByGroup(ctx context.Context, groupID string) ([]*models.ShoppingListItem, error) {
	return r.list(ctx, `
		SELECT `+itemColumns+`
		FROM shopping_list_items
		WHERE group_id = $1
		ORDER BY created_at DESC, id`, groupID)
}

func (r *itemRepository) ListByCreator(ctx context.Context, groupID, createdByID string) ([]*models.ShoppingListItem, error) {
	return r.list(ctx, `
		SELECT `+itemColumns+`
		FROM shopping_list_items
		WHERE group_id = $1 AND created_by_id = $2
		ORDER BY created_at ASC, id
		FOR UPDATE`, groupID, createdByID)
}

func (r *itemRepository) Update(ctx context.Context, item *models.ShoppingListItem) (*models.ShoppingListItem, error) {
	query := `
		UPDATE shopping_list_items
		SET name = $2, amount = $3, is_completed = $4, group_id = $5, updated_at = $6
		WHERE id = $1
		RETURNING updated_at`

	item.UpdatedAt = time.Now()

	err := r.db.QueryRowContext(ctx, query,
		item.ID,
		item.Name,
		item.Amount,
		item.IsCompleted,
		item.GroupID,
		item.UpdatedAt,
	).Scan(&item.UpdatedAt)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("item %s: %w", item.ID, repository.ErrNotFound)
		}
		return nil, translate(err, "failed to update shopping list item")
	}

	return item, nil
}

func (r *itemRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM shopping_list_items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete shopping list item: %w", err)
	}

	return expectOneRow(result, "item "+id)
}

func (r *itemRepository) DeleteCompleted(ctx context.Context, groupID string) (int64, error) {
	query := `DELETE FROM shopping_list_items WHERE group_id = $1 AND is_completed = true`

	result, err := r.db.ExecContext(ctx, query, groupID)
	if err != nil {
		return 0, fmt.Errorf("failed to clear completed items: %w", err)
	}

	return result.RowsAffected()
}

func (r *itemRepository) Count(ctx context.Context, groupID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM shopping_list_items WHERE group_id = $1`, groupID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count shopping list items: %w", err)
	}
	return n, nil
}
