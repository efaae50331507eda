package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/Kerhoff/CartBot/internal/repository"
)

func TestTranslate(t *testing.T) {
	t.Run("unique violation becomes ErrDuplicate", func(t *testing.T) {
		err := translate(&pq.Error{Code: "23505", Message: "duplicate key"}, "failed to add member")
		assert.ErrorIs(t, err, repository.ErrDuplicate)
		assert.Contains(t, err.Error(), "failed to add member")
	})

	t.Run("wrapped unique violation is detected", func(t *testing.T) {
		wrapped := fmt.Errorf("exec: %w", &pq.Error{Code: "23505"})
		assert.ErrorIs(t, translate(wrapped, "insert"), repository.ErrDuplicate)
	})

	t.Run("check violation becomes ErrConstraint", func(t *testing.T) {
		err := translate(&pq.Error{Code: "23514", Message: "violates check constraint"}, "failed to update item")
		assert.ErrorIs(t, err, repository.ErrConstraint)
		assert.NotErrorIs(t, err, repository.ErrDuplicate)
	})

	t.Run("other errors are wrapped as is", func(t *testing.T) {
		cause := &pq.Error{Code: "23503"}
		err := translate(cause, "failed to create item")
		assert.NotErrorIs(t, err, repository.ErrDuplicate)
		assert.True(t, errors.Is(err, cause))
	})

	t.Run("nil stays nil", func(t *testing.T) {
		assert.NoError(t, translate(nil, "noop"))
	})
}

type fakeResult struct{ rows int64 }

func (r fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r fakeResult) RowsAffected() (int64, error) { return r.rows, nil }

func TestExpectOneRow(t *testing.T) {
	assert.NoError(t, expectOneRow(fakeResult{rows: 1}, "item"))
	assert.ErrorIs(t, expectOneRow(fakeResult{rows: 0}, "item"), repository.ErrNotFound)
}
