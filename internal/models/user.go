package models

import "time"

// User represents an account that can belong to groups.
// TelegramID is set for users that arrived through the Telegram bot.
type User struct {
	ID              string    `json:"id" db:"id"`
	TelegramID      *int64    `json:"telegram_id,omitempty" db:"telegram_id"`
	Username        string    `json:"username" db:"username"`
	FirstName       string    `json:"first_name" db:"first_name"`
	LastName        string    `json:"last_name" db:"last_name"`
	IsAnonymous     bool      `json:"is_anonymous" db:"is_anonymous"`
	PersonalGroupID *string   `json:"personal_group_id,omitempty" db:"personal_group_id"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// FullName returns the user's full name
func (u *User) FullName() string {
	if u.LastName != "" {
		return u.FirstName + " " + u.LastName
	}
	return u.FirstName
}

// DisplayName returns the best display name for the user
func (u *User) DisplayName() string {
	if u.Username != "" {
		return "@" + u.Username
	}
	if name := u.FullName(); name != "" {
		return name
	}
	return "anonymous"
}
