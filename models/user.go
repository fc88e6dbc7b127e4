package models

import (
	"encoding/json"
	"time"
)

// User is a registered account plus its public profile.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"` // stored lowercased, unique
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // bcrypt hash, never serialized to clients
	Friends      []string  `json:"friends,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// stored mirrors User for the on-disk store, where the password hash must
// round-trip even though it is hidden from API responses.
type storedUser struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"passwordHash"`
	Friends      []string  `json:"friends,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// MarshalStored serializes the user for persistence, hash included.
func (u User) MarshalStored() ([]byte, error) {
	return json.Marshal(storedUser(u))
}

// UnmarshalStored deserializes a persisted user, hash included.
func (u *User) UnmarshalStored(data []byte) error {
	var s storedUser
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*u = User(s)
	return nil
}

// IsFriend reports whether the given user id is in the friends list.
func (u User) IsFriend(id string) bool {
	for _, f := range u.Friends {
		if f == id {
			return true
		}
	}
	return false
}

// Profile is the public view of a user exposed to other users.
type Profile struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// PublicProfile strips private fields for user search and friend listings.
func (u User) PublicProfile() Profile {
	return Profile{ID: u.ID, Username: u.Username}
}
