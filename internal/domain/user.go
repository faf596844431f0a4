// Package domain contains the core business entities for Teamdrop.
// These are pure Go structs with no external dependencies, representing
// the fundamental concepts of the file-sharing and collaboration system.
package domain

import (
	"time"
)

// User represents a registered user in the system.
// Users own projects, collaborate on others, and upload files.
type User struct {
	// ID is the unique identifier for the user (auto-generated).
	ID int64 `json:"id"`

	// Username is the unique username for login and display.
	// Constraints: 3-30 characters, letters, digits and underscores.
	Username string `json:"username"`

	// Email is the unique email address for the user.
	Email string `json:"email"`

	// PasswordHash is the bcrypt hash of the user's password.
	// Never exposed in API responses.
	PasswordHash string `json:"-"`

	// IsAdmin indicates platform-wide administrative privileges.
	// Assigned automatically to the first user ever registered and
	// never toggled afterwards.
	IsAdmin bool `json:"is_admin"`

	// CanUpload indicates whether the user may create new projects.
	// Granted by an admin; the first user gets it at registration.
	CanUpload bool `json:"can_upload"`

	// LastLogin is the timestamp of the most recent successful login.
	LastLogin *time.Time `json:"last_login,omitempty"`

	// CreatedAt is the timestamp when the user was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is the timestamp when the user was last updated.
	UpdatedAt time.Time `json:"updated_at"`
}

// NewUser creates a new User with default values.
// isFirst marks the bootstrap user, who is granted admin and upload
// rights at creation time; everyone else starts without either.
func NewUser(username, email, passwordHash string, isFirst bool) *User {
	now := time.Now().UTC()
	return &User{
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		IsAdmin:      isFirst,
		CanUpload:    isFirst,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// CanCreateProjects returns true if the user may create new projects.
func (u *User) CanCreateProjects() bool {
	return u.CanUpload || u.IsAdmin
}
