// Package models defines client-side data models used by the check-in CLI.
package models

import "fmt"

// Profile is the signed-in user as reported by the server.
type Profile struct {
	UserID string
	Email  string
	Name   string
	Role   string
}

func (p Profile) String() string {
	return fmt.Sprintf("%s <%s> (role: %s, id: %s)", p.Name, p.Email, p.Role, p.UserID)
}

// Session is the token pair the CLI keeps between runs.
type Session struct {
	AccessToken  string
	RefreshToken string
}

// Empty reports whether no refresh token is held, i.e. the user is signed out.
func (s Session) Empty() bool {
	return s.RefreshToken == ""
}
