package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Kerhoff/CartBot/internal/models"
)

type memberRepository struct {
	db dbtx
}

func (r *memberRepository) Add(ctx context.Context, member *models.GroupMember) (*models.GroupMember, error) {
	query := `
		INSERT INTO group_members (id, group_id, user_id, role, joined_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING joined_at`

	if member.ID == "" {
		member.ID = uuid.NewString()
	}
	member.JoinedAt = time.Now()

	err := r.db.QueryRowContext(ctx, query,
		member.ID,
		member.GroupID,
		member.UserID,
		member.Role,
		member.JoinedAt,
	).Scan(&member.JoinedAt)

	if err != nil {
		return nil, translate(err, "failed to add group member")
	}

	return member, nil
}

func (r *memberRepository) Get(ctx context.Context, groupID, userID string) (*models.GroupMember, error) {
	query := `
		SELECT id, group_id, user_id, role, joined_at
		FROM group_members
		WHERE group_id = $1 AND user_id = $2`

	member := &models.GroupMember{}
	err := r.db.QueryRowContext(ctx, query, groupID, userID).Scan(
		&member.ID,
		&member.GroupID,
		&member.UserID,
		&member.Role,
		&member.JoinedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get group member: %w", err)
	}

	return member, nil
}

// List returns the members of a group with their users, oldest first.
func (r *memberRepository) List(ctx context.Context, groupID string) ([]*models.GroupMember, error) {
	query := `
		SELECT gm.id, gm.group_id, gm.user_id, gm.role, gm.joined_at,
			u.id, u.telegram_id, u.username, u.first_name, u.last_name, u.is_anonymous,
			u.personal_group_id, u.created_at, u.updated_at
		FROM group_members gm
		INNER JOIN users u ON u.id = gm.user_id
		WHERE gm.group_id = $1
		ORDER BY gm.joined_at ASC, gm.id`

	rows, err := r.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to query group members: %w", err)
	}
	defer rows.Close()

	var members []*models.GroupMember
	for rows.Next() {
		member := &models.GroupMember{User: &models.User{}}
		if err := rows.Scan(
			&member.ID,
			&member.GroupID,
			&member.UserID,
			&member.Role,
			&member.JoinedAt,
			&member.User.ID,
			&member.User.TelegramID,
			&member.User.Username,
			&member.User.FirstName,
			&member.User.LastName,
			&member.User.IsAnonymous,
			&member.User.PersonalGroupID,
			&member.User.CreatedAt,
			&member.User.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan group member: %w", err)
		}
		members = append(members, member)
	}

	return members, rows.Err()
}

func (r *memberRepository) UpdateRole(ctx context.Context, groupID, userID string, role models.Role) error {
	query := `UPDATE group_members SET role = $3 WHERE group_id = $1 AND user_id = $2`

	result, err := r.db.ExecContext(ctx, query, groupID, userID, role)
	if err != nil {
		return fmt.Errorf("failed to update member role: %w", err)
	}

	return expectOneRow(result, "member "+userID)
}

func (r *memberRepository) Remove(ctx context.Context, groupID, userID string) error {
	query := `DELETE FROM group_members WHERE group_id = $1 AND user_id = $2`

	result, err := r.db.ExecContext(ctx, query, groupID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove group member: %w", err)
	}

	return expectOneRow(result, "member "+userID)
}

func (r *memberRepository) count(ctx context.Context, query string, args ...any) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count group members: %w", err)
	}
	return n, nil
}

func (r *memberRepository) Count(ctx context.Context, groupID string) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM group_members WHERE group_id = $1`, groupID)
}

func (r *memberRepository) CountAdmins(ctx context.Context, groupID string) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM group_members WHERE group_id = $1 AND role = $2`, groupID, models.RoleAdmin)
}
