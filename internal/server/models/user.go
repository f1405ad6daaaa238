package models

import "time"

// User is an account bound to one external identity (a Google subject).
// RefreshToken holds a TokenVault envelope and is never stored in plaintext.
type User struct {
	ID            string
	GoogleID      string
	Email         string
	Name          string
	Picture       string
	RefreshToken  string
	DriveFolderID string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Profile is the public part of a User returned to clients.
type Profile struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture,omitempty"`
}

func (u *User) Profile() Profile {
	return Profile{ID: u.ID, Email: u.Email, Name: u.Name, Picture: u.Picture}
}
