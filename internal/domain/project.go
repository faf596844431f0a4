package domain

import (
	"time"
)

// Permission is the access tier of a collaborator on a project.
// It is a closed three-value enum; there is no implicit numeric ranking.
type Permission string

const (
	// PermissionRead grants visibility only: view the project, list its
	// files, read its chat. No mutation of any kind.
	PermissionRead Permission = "read"

	// PermissionWrite adds metadata updates, file uploads and file
	// metadata edits on top of read.
	PermissionWrite Permission = "write"

	// PermissionAdmin adds file deletion and chat moderation on top of
	// write. It never reaches owner rights: deleting the project and
	// managing collaborators stay owner-exclusive.
	PermissionAdmin Permission = "admin"
)

// Valid reports whether p is one of the three known tiers.
func (p Permission) Valid() bool {
	switch p {
	case PermissionRead, PermissionWrite, PermissionAdmin:
		return true
	}
	return false
}

// Collaborator is a user attached to a project with a permission tier.
// A user appears at most once per project; re-adding updates the tier
// in place.
type Collaborator struct {
	// UserID identifies the collaborating user.
	UserID int64 `json:"user_id"`

	// Username is denormalized for display.
	Username string `json:"username"`

	// Permission is the collaborator's tier on this project.
	Permission Permission `json:"permission"`

	// AddedAt is when the user was first added to the project.
	AddedAt time.Time `json:"added_at"`
}

// Project is the unit of collaboration: a named container of files,
// collaborators, chat messages and at most one public share.
type Project struct {
	// ID is the unique identifier for the project (auto-generated).
	ID int64 `json:"id"`

	// Name is the display name. Required, non-empty.
	Name string `json:"name"`

	// Description is optional free text, at most 500 characters.
	Description string `json:"description,omitempty"`

	// Tags are free-form labels attached to the project.
	Tags []string `json:"tags"`

	// IsPublic makes the project visible to any authenticated user.
	IsPublic bool `json:"is_public"`

	// OwnerID is the user who created the project. Immutable; the owner
	// holds unconditional rights and is never listed in Collaborators.
	OwnerID int64 `json:"owner_id"`

	// OwnerName is denormalized for display.
	OwnerName string `json:"owner_name,omitempty"`

	// Collaborators is the ordered list of non-owner members.
	Collaborators []Collaborator `json:"collaborators"`

	// CreatedAt is the timestamp when the project was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is the timestamp when the project was last updated.
	UpdatedAt time.Time `json:"updated_at"`
}

// NewProject creates a new Project owned by ownerID.
func NewProject(name, description string, tags []string, isPublic bool, ownerID int64) *Project {
	now := time.Now().UTC()
	if tags == nil {
		tags = []string{}
	}
	return &Project{
		Name:        name,
		Description: description,
		Tags:        tags,
		IsPublic:    isPublic,
		OwnerID:     ownerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// IsOwner reports whether userID owns the project.
func (p *Project) IsOwner(userID int64) bool {
	return p.OwnerID == userID
}

// CollaboratorPermission returns the tier of userID on this project.
// The second return value is false if the user is not a collaborator.
// The owner is never a collaborator.
func (p *Project) CollaboratorPermission(userID int64) (Permission, bool) {
	for _, c := range p.Collaborators {
		if c.UserID == userID {
			return c.Permission, true
		}
	}
	return "", false
}
