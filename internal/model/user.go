// Package model defines the data structures used throughout the application.
package model

import "time"

// Role is the access level attached to a user account.
//
// Stored as TEXT in the database and carried inside the session token,
// so the string values are part of the wire contract — don't rename them.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// User represents a registered account.
//
// Accounts come from two places:
//   - Credential signup: name/email/password form → PasswordHash is set.
//   - OAuth first login: profile copied from the provider → PasswordHash
//     stays empty and EmailVerified is set to the resolution time.
//
// An empty PasswordHash therefore means "OAuth-only account" — credential
// login against such an account must fail, never fall through.
//
// WHY EmailVerified *time.Time (not time.Time)?
// Credential accounts are created without verification, so the column is
// nullable. A nil pointer maps cleanly to SQL NULL; a zero time.Time would
// serialize as year 1 and be indistinguishable from "verified very long ago".
type User struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Email         string     `json:"email"` // unique; lookups may be case-insensitive
	Image         string     `json:"image"` // avatar URL, may be empty
	PasswordHash  string     `json:"-"`     // never serialized; empty for OAuth-only accounts
	Role          Role       `json:"role"`
	EmailVerified *time.Time `json:"emailVerified,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// PublicUser is the subset of User that is safe to embed in API responses
// authored by other users (e.g. the author of a comment).
type PublicUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Image string `json:"image"`
}

// Public returns the safe projection of the user.
func (u *User) Public() PublicUser {
	return PublicUser{ID: u.ID, Name: u.Name, Image: u.Image}
}
