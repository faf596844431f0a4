package domain

import (
	"time"
)

// ShareState classifies a share for reporting. Only StateActive grants
// access; the other states are distinguishable for display but behave
// identically (deny).
type ShareState string

const (
	// StateActive means the share currently grants access.
	StateActive ShareState = "active"

	// StateExpired means the expiry timestamp has passed.
	StateExpired ShareState = "expired"

	// StateExhausted means the download cap has been reached.
	StateExhausted ShareState = "exhausted"

	// StateDeactivated means the creator turned the share off.
	StateDeactivated ShareState = "deactivated"
)

// Share is an unauthenticated, token-addressable public view into one
// project's files. A project has at most one share; creating a second
// is rejected. Shares are soft-deleted (IsActive=false), never removed,
// except when their project is deleted outright.
type Share struct {
	// ID is the unique identifier for the share row (auto-generated).
	ID int64 `json:"-"`

	// ProjectID is the shared project.
	ProjectID int64 `json:"project_id"`

	// CreatedBy is the user who created the share. Must be the project
	// owner at creation time; only CreatedBy may edit or deactivate.
	CreatedBy int64 `json:"created_by"`

	// Token is the opaque unguessable share identifier used in public
	// URLs. Generated at creation, immutable.
	Token string `json:"token"`

	// PasswordHash is the SHA-256 hash of the optional share password.
	// Empty means the share is open. Shares use a lightweight hash; user
	// account passwords use bcrypt.
	PasswordHash string `json:"-"`

	// ExpiresAt is the optional expiry. Nil means the share never
	// expires.
	ExpiresAt *time.Time `json:"expires_at,omitempty"`

	// MaxDownloads is the optional download cap. Nil means unlimited.
	// The download that reaches the cap is still served; the next
	// attempt is refused.
	MaxDownloads *int64 `json:"max_downloads,omitempty"`

	// CurrentDownloads counts downloads consumed through this share.
	CurrentDownloads int64 `json:"current_downloads"`

	// IsActive is false once the creator deactivates the share. There
	// is no reactivation.
	IsActive bool `json:"is_active"`

	// LastAccessed is stamped on every consuming access.
	LastAccessed *time.Time `json:"last_accessed,omitempty"`

	// CreatedAt is the timestamp when the share was created.
	CreatedAt time.Time `json:"created_at"`
}

// NewShare creates a share for a project. token must already be
// generated and passwordHash already computed; hashing is an explicit
// caller step, not a side effect of persistence.
func NewShare(projectID, createdBy int64, token, passwordHash string, expiresAt *time.Time, maxDownloads *int64) *Share {
	return &Share{
		ProjectID:    projectID,
		CreatedBy:    createdBy,
		Token:        token,
		PasswordHash: passwordHash,
		ExpiresAt:    expiresAt,
		MaxDownloads: maxDownloads,
		IsActive:     true,
		CreatedAt:    time.Now().UTC(),
	}
}

// HasPassword reports whether the share is password-protected.
func (s *Share) HasPassword() bool {
	return s.PasswordHash != ""
}

// IsValid reports whether the share grants access at the given instant.
// Validity is a pure function of the share's fields and now; it is
// recomputed on every access rather than cached or swept.
func (s *Share) IsValid(now time.Time) bool {
	if !s.IsActive {
		return false
	}
	if s.ExpiresAt != nil && now.After(*s.ExpiresAt) {
		return false
	}
	if s.MaxDownloads != nil && s.CurrentDownloads >= *s.MaxDownloads {
		return false
	}
	return true
}

// State classifies the share for reporting. Deactivation wins over
// expiry, expiry over exhaustion.
func (s *Share) State(now time.Time) ShareState {
	switch {
	case !s.IsActive:
		return StateDeactivated
	case s.ExpiresAt != nil && now.After(*s.ExpiresAt):
		return StateExpired
	case s.MaxDownloads != nil && s.CurrentDownloads >= *s.MaxDownloads:
		return StateExhausted
	}
	return StateActive
}
