package models

import "time"

// Group is a circle of BroSis run by a mentor inside one area and house.
type Group struct {
	ID          string        `db:"id" json:"id"`
	Name        string        `db:"name" json:"name"`
	Description string        `db:"description" json:"description"`
	MentorID    string        `db:"mentor_id" json:"mentorId"`
	Area        string        `db:"area" json:"area"`
	House       string        `db:"house" json:"house"`
	LeaderID    *string       `db:"leader_id" json:"leaderId,omitempty"`
	CreatedAt   time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time     `db:"updated_at" json:"updatedAt"`
	Members     []GroupMember `db:"-" json:"members"`
}

// GroupMember links a BroSis account to a group.
type GroupMember struct {
	GroupID  string    `db:"group_id" json:"groupId"`
	UserID   string    `db:"user_id" json:"userId"`
	Username string    `db:"username" json:"username"`
	FullName string    `db:"full_name" json:"fullName"`
	JoinedAt time.Time `db:"joined_at" json:"joinedAt"`
}

// HasMember reports whether userID belongs to the group.
func (g Group) HasMember(userID string) bool {
	for _, member := range g.Members {
		if member.UserID == userID {
			return true
		}
	}
	return false
}

// GroupFilter narrows a mentor's group listing.
type GroupFilter struct {
	MentorID string
	Area     string
	House    string
	Search   string
	Page     int
	PageSize int
}
