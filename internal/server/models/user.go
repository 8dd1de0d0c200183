package models

import "time"

// User is a registered account. RefreshTokenHash is nil when the user has no
// active session.
type User struct {
	ID               string    `db:"id"`
	Email            string    `db:"email"`
	Name             string    `db:"name"`
	PasswordHash     string    `db:"password_hash"`
	RefreshTokenHash *string   `db:"refresh_token_hash"`
	TokenVersion     int64     `db:"token_version"`
	Role             string    `db:"role"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

// HasSession reports whether a refresh-token hash is stored.
func (u *User) HasSession() bool {
	return u.RefreshTokenHash != nil && *u.RefreshTokenHash != ""
}

// Profile is the public view of a user.
type Profile struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Role   string `json:"role"`
}

func (u *User) Profile() Profile {
	return Profile{UserID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role}
}
