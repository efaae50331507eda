package models

import "time"

// MaxItemAmount bounds a single item's amount, merged totals included.
const MaxItemAmount = 1_000_000

// ShoppingListItem is one entry of a group's shopping list. Names are unique
// per group ignoring case; CreatedByID records provenance only.
type ShoppingListItem struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Amount      int       `json:"amount" db:"amount"`
	IsCompleted bool      `json:"is_completed" db:"is_completed"`
	GroupID     string    `json:"group_id" db:"group_id"`
	CreatedByID string    `json:"created_by_id" db:"created_by_id"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}
