// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents a registered user account.
//
// Two sign-in paths create users:
//   - GitHub OAuth: GitHubID is set, PasswordHash is empty
//   - Local account: Email + bcrypt PasswordHash are set, GitHubID is nil
//
// WHY GitHubID *int64?
// GitHub user IDs are integers (e.g. 1234567), but local accounts have none.
// A nil pointer maps to SQL NULL, which the UNIQUE constraint on github_id
// ignores, so any number of local accounts can coexist.
type User struct {
	ID           string    `json:"id"        db:"id"`
	GitHubID     *int64    `json:"githubId"  db:"github_id"`
	Login        string    `json:"login"     db:"login"`
	Email        string    `json:"email"     db:"email"`
	AvatarURL    string    `json:"avatarUrl" db:"avatar_url"`
	PasswordHash string    `json:"-"         db:"password_hash"` // never serialized
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}
