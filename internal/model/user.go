package model

import "strings"

// User is the identity a session token resolves to
type User struct {
	ID    ID     `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// FirstName returns the first word of the user's name, or "User" if unknown
func (u *User) FirstName() string {
	if u == nil {
		return "User"
	}
	parts := strings.Fields(u.Name)
	if len(parts) == 0 {
		return "User"
	}
	return parts[0]
}
