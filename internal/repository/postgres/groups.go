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

type groupRepository struct {
	db dbtx
}

const groupColumns = `g.id, g.name, g.description, g.invite_code, g.is_personal, g.created_at, g.updated_at`

func (r *groupRepository) Create(ctx context.Context, group *models.Group) (*models.Group, error) {
	query := `
		INSERT INTO groups (id, name, description, invite_code, is_personal, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`

	if group.ID == "" {
		group.ID = uuid.NewString()
	}
	now := time.Now()
	group.CreatedAt = now
	group.UpdatedAt = now

	err := r.db.QueryRowContext(ctx, query,
		group.ID,
		group.Name,
		group.Description,
		group.InviteCode,
		group.IsPersonal,
		group.CreatedAt,
		group.UpdatedAt,
	).Scan(&group.CreatedAt, &group.UpdatedAt)

	if err != nil {
		return nil, translate(err, "failed to create group")
	}

	return group, nil
}

func (r *groupRepository) get(ctx context.Context, query, what string, arg any) (*models.Group, error) {
	group := &models.Group{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&group.ID,
		&group.Name,
		&group.Description,
		&group.InviteCode,
		&group.IsPersonal,
		&group.CreatedAt,
		&group.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get group by %s: %w", what, err)
	}

	return group, nil
}

func (r *groupRepository) GetByID(ctx context.Context, id string) (*models.Group, error) {
	return r.get(ctx, `SELECT `+groupColumns+` FROM groups g WHERE g.id = $1`, "ID", id)
}

func (r *groupRepository) GetForUpdate(ctx context.Context, id string) (*models.Group, error) {
	return r.get(ctx, `SELECT `+groupColumns+` FROM groups g WHERE g.id = $1 FOR UPDATE`, "ID", id)
}

func (r *groupRepository) GetByInviteCode(ctx context.Context, code string) (*models.Group, error) {
	return r.get(ctx, `SELECT `+groupColumns+` FROM groups g WHERE g.invite_code = $1`, "invite code", code)
}

func (r *groupRepository) InviteCodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM groups WHERE invite_code = $1)`, code,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check invite code: %w", err)
	}
	return exists, nil
}

func (r *groupRepository) Update(ctx context.Context, group *models.Group) (*models.Group, error) {
	query := `
		UPDATE groups
		SET name = $2, description = $3, updated_at = $4
		WHERE id = $1
		RETURNING updated_at`

	group.UpdatedAt = time.Now()

	err := r.db.QueryRowContext(ctx, query,
		group.ID,
		group.Name,
		group.Description,
		group.UpdatedAt,
	).Scan(&group.UpdatedAt)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("group %s: %w", group.ID, repository.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to update group: %w", err)
	}

	return group, nil
}

func (r *groupRepository) SetInviteCode(ctx context.Context, groupID, code string) error {
	query := `UPDATE groups SET invite_code = $2, updated_at = $3 WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, groupID, code, time.Now())
	if err != nil {
		return translate(err, "failed to set invite code")
	}

	return expectOneRow(result, "group "+groupID)
}

// Delete removes the group; members and items go with it through ON DELETE CASCADE.
func (r *groupRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM groups WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}

	return expectOneRow(result, "group "+id)
}

// ListByUser returns the user's groups with the personal group first, then
// newest first.
func (r *groupRepository) ListByUser(ctx context.Context, userID string) ([]*models.GroupSummary, error) {
	query := `
		SELECT ` + groupColumns + `, gm.role,
			(SELECT COUNT(*) FROM group_members m WHERE m.group_id = g.id),
			(SELECT COUNT(*) FROM shopping_list_items i WHERE i.group_id = g.id)
		FROM groups g
		INNER JOIN group_members gm ON gm.group_id = g.id
		WHERE gm.user_id = $1
		ORDER BY g.is_personal DESC, g.created_at DESC, g.id`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query user groups: %w", err)
	}
	defer rows.Close()

	var summaries []*models.GroupSummary
	for rows.Next() {
		s := &models.GroupSummary{}
		if err := rows.Scan(
			&s.ID,
			&s.Name,
			&s.Description,
			&s.InviteCode,
			&s.IsPersonal,
			&s.CreatedAt,
			&s.UpdatedAt,
			&s.Role,
			&s.MemberCount,
			&s.ItemCount,
		); err != nil {
			return nil, fmt.Errorf("failed to scan group summary: %w", err)
		}
		summaries = append(summaries, s)
	}

	return summaries, rows.Err()
}
