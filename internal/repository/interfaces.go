// Package repository defines data access interfaces for Teamdrop.
// These interfaces abstract database operations, allowing for different implementations
// (SQLite, PostgreSQL, in-memory for testing) while keeping the service layer clean.
package repository

import (
	"context"
	"time"

	"github.com/prn-tf/teamdrop/internal/domain"
)

// =============================================================================
// User Repository
// =============================================================================

// UserRepository defines the interface for user data access.
type UserRepository interface {
	// Create creates a new user.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id int64) (*domain.User, error)

	// GetByUsername retrieves a user by username.
	GetByUsername(ctx context.Context, username string) (*domain.User, error)

	// GetByEmail retrieves a user by email.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// Update updates an existing user.
	Update(ctx context.Context, user *domain.User) error

	// UpdateLastLogin updates the last_login timestamp.
	UpdateLastLogin(ctx context.Context, id int64, at time.Time) error

	// List returns all users with pagination.
	List(ctx context.Context, opts ListOptions) (*ListResult[domain.User], error)

	// Count returns the total number of users.
	Count(ctx context.Context) (int64, error)

	// HasAdmin reports whether any admin user exists.
	HasAdmin(ctx context.Context) (bool, error)

	// ExistsByUsername checks if a user with the given username exists.
	ExistsByUsername(ctx context.Context, username string) (bool, error)

	// ExistsByEmail checks if a user with the given email exists.
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

// =============================================================================
// Session Repository
// =============================================================================

// SessionRepository defines the interface for login session data access.
type SessionRepository interface {
	// Create persists a new session.
	Create(ctx context.Context, session *domain.Session) error

	// GetByToken retrieves a session by its token.
	GetByToken(ctx context.Context, token string) (*domain.Session, error)

	// Delete removes a session by token (logout).
	Delete(ctx context.Context, token string) error

	// DeleteByUserID removes all sessions for a user.
	DeleteByUserID(ctx context.Context, userID int64) error

	// DeleteExpired removes all expired sessions.
	DeleteExpired(ctx context.Context) (int64, error)
}

// =============================================================================
// Project Repository
// =============================================================================

// ProjectRepository defines the interface for project data access.
type ProjectRepository interface {
	// Create creates a new project.
	Create(ctx context.Context, project *domain.Project) error

	// GetByID retrieves a project by ID, including its collaborators.
	GetByID(ctx context.Context, id int64) (*domain.Project, error)

	// ListForUser returns projects the user owns or collaborates on,
	// most recently updated first. Public projects are reachable by ID
	// but not listed here.
	ListForUser(ctx context.Context, userID int64, opts ListOptions) (*ListResult[domain.Project], error)

	// Update updates a project's name, description, tags, and visibility.
	Update(ctx context.Context, project *domain.Project) error

	// Delete deletes a project. Files, shares, collaborators, and chat
	// messages are removed in the same transaction.
	Delete(ctx context.Context, id int64) error

	// --- Collaborator operations ---

	// AddCollaborator adds a user to a project with the given permission.
	AddCollaborator(ctx context.Context, projectID, userID int64, permission domain.Permission) error

	// UpdateCollaborator changes a collaborator's permission tier.
	UpdateCollaborator(ctx context.Context, projectID, userID int64, permission domain.Permission) error

	// RemoveCollaborator removes a user from a project.
	RemoveCollaborator(ctx context.Context, projectID, userID int64) error

	// ListCollaborators returns all collaborators of a project.
	ListCollaborators(ctx context.Context, projectID int64) ([]*domain.Collaborator, error)
}

// =============================================================================
// File Repository
// =============================================================================

// FileRepository defines the interface for file metadata access.
type FileRepository interface {
	// Create creates a new file record.
	Create(ctx context.Context, file *domain.File) error

	// GetByID retrieves a file by ID.
	GetByID(ctx context.Context, id int64) (*domain.File, error)

	// ListByProject returns all files in a project.
	ListByProject(ctx context.Context, projectID int64, opts ListOptions) (*ListResult[domain.File], error)

	// Update updates file metadata (name, tags, visibility).
	Update(ctx context.Context, file *domain.File) error

	// IncrementDownloads atomically increments the download counter.
	IncrementDownloads(ctx context.Context, id int64) error

	// Delete deletes a file record.
	Delete(ctx context.Context, id int64) error

	// StorageKeysByProject returns the storage keys of all files in a
	// project. Used for backend cleanup after a cascade delete.
	StorageKeysByProject(ctx context.Context, projectID int64) ([]string, error)
}

// =============================================================================
// Share Repository
// =============================================================================

// ShareRepository defines the interface for share link data access.
type ShareRepository interface {
	// Create creates a new share. Returns domain.ErrShareAlreadyExists
	// if the project already has one.
	Create(ctx context.Context, share *domain.Share) error

	// GetByToken retrieves a share by its public token.
	GetByToken(ctx context.Context, token string) (*domain.Share, error)

	// GetByProjectID retrieves the share for a project, if any.
	GetByProjectID(ctx context.Context, projectID int64) (*domain.Share, error)

	// ListByCreator returns all shares created by a user.
	ListByCreator(ctx context.Context, userID int64) ([]*domain.Share, error)

	// Update updates a share's password, expiry, and download limit.
	Update(ctx context.Context, share *domain.Share) error

	// Deactivate marks a share inactive without deleting it.
	Deactivate(ctx context.Context, id int64) error

	// ConsumeDownload atomically increments the download counter and
	// refreshes last_accessed, but only while the share is still valid.
	// Returns domain.ErrShareGone when the share is inactive, expired,
	// or has exhausted its download limit.
	ConsumeDownload(ctx context.Context, token string, now time.Time) error

	// DeleteByProjectID removes the share of a project.
	DeleteByProjectID(ctx context.Context, projectID int64) error
}

// =============================================================================
// Message Repository
// =============================================================================

// MessageRepository defines the interface for chat message data access.
type MessageRepository interface {
	// Create creates a new chat message.
	Create(ctx context.Context, message *domain.Message) error

	// GetByID retrieves a message by ID.
	GetByID(ctx context.Context, id int64) (*domain.Message, error)

	// ListByProject returns messages of a project, newest first.
	ListByProject(ctx context.Context, projectID int64, opts ListOptions) (*ListResult[domain.Message], error)

	// Update updates a message's content and edit markers.
	Update(ctx context.Context, message *domain.Message) error

	// Delete deletes a message.
	Delete(ctx context.Context, id int64) error
}

// =============================================================================
// Common Types
// =============================================================================

// ListOptions contains common pagination options.
type ListOptions struct {
	// Offset is the number of records to skip.
	Offset int

	// Limit is the maximum number of records to return.
	Limit int

	// OrderBy specifies the sort order.
	OrderBy string

	// Descending specifies descending order if true.
	Descending bool
}

// ListResult is a generic paginated list result.
type ListResult[T any] struct {
	// Items is the list of items.
	Items []*T

	// Total is the total number of items (without pagination).
	Total int64

	// Offset is the current offset.
	Offset int

	// Limit is the current limit.
	Limit int
}

// =============================================================================
// Transaction Support
// =============================================================================

// TxManager defines the interface for transaction management.
type TxManager interface {
	// WithTx executes the given function within a transaction.
	// If the function returns an error, the transaction is rolled back.
	// If the function succeeds, the transaction is committed.
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}
