package model

import "time"

type Group struct {
	ID          string        `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	Name        string        `json:"name" bson:"name" validate:"required,max=255"`
	Description string        `json:"description,omitempty" bson:"description,omitempty" validate:"omitempty,max=2000"`
	Members     []GroupMember `json:"members" bson:"members" validate:"omitempty,dive"`
	CreatedBy   string        `json:"created_by,omitempty" bson:"created_by,omitempty" validate:"omitempty,mongodb"`
	UpdatedBy   string        `json:"updated_by,omitempty" bson:"updated_by,omitempty" validate:"omitempty,mongodb"`
	CreatedAt   time.Time     `json:"created_at" bson:"created_at" validate:"omitempty"`
	UpdatedAt   time.Time     `json:"updated_at,omitempty" bson:"updated_at,omitempty" validate:"omitempty"`
}

// GroupMember is the membership row: per-member metadata lives here, not on
// the user.
type GroupMember struct {
	UserID   string    `json:"user_id" bson:"user_id" validate:"required,mongodb"`
	Admin    bool      `json:"admin" bson:"admin"`
	JoinedAt time.Time `json:"joined_at" bson:"joined_at" validate:"omitempty"`
}

// GroupUpdate carries a group edit. AdminFlags maps member user IDs to their
// admin flag after the update; members absent from the map keep their
// current flag.
type GroupUpdate struct {
	Name        string          `json:"name" validate:"required,max=255"`
	Description string          `json:"description,omitempty" validate:"omitempty,max=2000"`
	AdminFlags  map[string]bool `json:"admin_flags,omitempty" validate:"omitempty"`
}

// Member returns the membership row for userID, or nil.
func (g *Group) Member(userID string) *GroupMember {
	for i := range g.Members {
		if g.Members[i].UserID == userID {
			return &g.Members[i]
		}
	}
	return nil
}

// AdminCount counts members whose admin flag is set.
func (g *Group) AdminCount() int {
	n := 0
	for i := range g.Members {
		if g.Members[i].Admin {
			n++
		}
	}
	return n
}
