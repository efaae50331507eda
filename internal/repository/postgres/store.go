// Package postgres implements the repository interfaces on PostgreSQL
// through database/sql and lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/Kerhoff/CartBot/internal/repository"
)

// SQLSTATE codes PostgreSQL reports for unique index and check conflicts.
const (
	uniqueViolation = "23505"
	checkViolation  = "23514"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Ensure Store implements repository.Store
var _ repository.Store = (*Store)(nil)

// Store implements repository.Store on a PostgreSQL connection pool.
type Store struct {
	db *sql.DB
	repos
}

// repos binds every repository to one dbtx.
type repos struct {
	users   *userRepository
	groups  *groupRepository
	members *memberRepository
	items   *itemRepository
}

func newRepos(db dbtx) repos {
	return repos{
		users:   &userRepository{db: db},
		groups:  &groupRepository{db: db},
		members: &memberRepository{db: db},
		items:   &itemRepository{db: db},
	}
}

func (r repos) Users() repository.UserRepository     { return r.users }
func (r repos) Groups() repository.GroupRepository   { return r.groups }
func (r repos) Members() repository.MemberRepository { return r.members }
func (r repos) Items() repository.ItemRepository     { return r.items }

// NewStore wraps an open database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, repos: newRepos(db)}
}

// WithinTx runs fn inside a read-committed transaction. Row locks taken by
// the *ForUpdate lookups serialize concurrent writers on the same rows.
func (s *Store) WithinTx(ctx context.Context, fn func(r repository.Repositories) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(newRepos(tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// translate maps driver errors onto repository sentinels.
func translate(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	msg := fmt.Sprintf(format, args...)
	switch pqCode(err) {
	case uniqueViolation:
		return fmt.Errorf("%s: %w: %v", msg, repository.ErrDuplicate, err)
	case checkViolation:
		return fmt.Errorf("%s: %w: %v", msg, repository.ErrConstraint, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func pqCode(err error) pq.ErrorCode {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code
	}
	return ""
}

// expectOneRow turns a zero-row mutation into repository.ErrNotFound.
func expectOneRow(result sql.Result, what string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s: %w", what, repository.ErrNotFound)
	}
	return nil
}
