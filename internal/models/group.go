package models

import "time"

// Role is a member's permission level inside a group.
type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleMember Role = "MEMBER"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleMember
}

// Group owns a shared shopping list. Every user has exactly one personal
// group, which can not be joined, left, deleted or re-invited.
type Group struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description *string   `json:"description,omitempty" db:"description"`
	InviteCode  string    `json:"invite_code" db:"invite_code"`
	IsPersonal  bool      `json:"is_personal" db:"is_personal"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// GroupMember is the join record between groups and users.
type GroupMember struct {
	ID       string    `json:"id" db:"id"`
	GroupID  string    `json:"group_id" db:"group_id"`
	UserID   string    `json:"user_id" db:"user_id"`
	Role     Role      `json:"role" db:"role"`
	JoinedAt time.Time `json:"joined_at" db:"joined_at"`
	User     *User     `json:"user,omitempty"`
}

// IsAdmin reports whether the member holds the admin role.
func (m *GroupMember) IsAdmin() bool {
	return m.Role == RoleAdmin
}

// GroupSummary is a group as seen from one of its members.
type GroupSummary struct {
	Group
	Role        Role `json:"role"`
	MemberCount int  `json:"member_count"`
	ItemCount   int  `json:"item_count"`
}

// GroupDetails is the full view of a group for one of its members.
type GroupDetails struct {
	Group     *Group         `json:"group"`
	Members   []*GroupMember `json:"members"`
	ItemCount int            `json:"item_count"`
	Role      Role           `json:"role"`
}

// InvitePreview is what a user sees before joining through an invite code.
type InvitePreview struct {
	GroupID         string    `json:"group_id"`
	Name            string    `json:"name"`
	Description     *string   `json:"description,omitempty"`
	MemberCount     int       `json:"member_count"`
	ItemCount       int       `json:"item_count"`
	CreatedAt       time.Time `json:"created_at"`
	IsAlreadyMember bool      `json:"is_already_member"`
}
