package entity

import "time"

// ProfilesTable is the record table holding one Profile per user.
const ProfilesTable = "profiles"

// Profile is the application-owned row keyed 1:1 by the user id.
type Profile struct {
	ID        string    `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	FullName  *string   `json:"full_name" db:"full_name"`
	AvatarURL *string   `json:"avatar_url" db:"avatar_url"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ProfileUpdate carries the mutable profile columns. id, email, created_at
// and updated_at have no field here, so callers cannot express a change to them.
type ProfileUpdate struct {
	FullName  *string `json:"full_name,omitempty" validate:"omitempty,max=100"`
	AvatarURL *string `json:"avatar_url,omitempty" validate:"omitempty,url"`
}

// Fields returns the column/value pairs that were set.
func (u ProfileUpdate) Fields() map[string]any {
	fields := make(map[string]any, 2)
	if u.FullName != nil {
		fields["full_name"] = *u.FullName
	}
	if u.AvatarURL != nil {
		fields["avatar_url"] = *u.AvatarURL
	}
	return fields
}
