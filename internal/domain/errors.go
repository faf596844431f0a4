package domain

import (
	"errors"
	"fmt"
)

// Domain errors - these represent business rule violations.
// They are distinct from infrastructure errors (database, network, etc.).

var (
	// ===========================================
	// User Errors
	// ===========================================

	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrUserAlreadyExists indicates a user with the same username/email exists.
	ErrUserAlreadyExists = errors.New("user already exists")

	// ErrInvalidCredentials indicates authentication failed.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUsernameFormat indicates the username format is invalid.
	ErrUsernameFormat = errors.New("username must be 3-30 characters of letters, numbers, and underscores")

	// ErrPasswordTooShort indicates the password is below minimum length.
	ErrPasswordTooShort = errors.New("password must be at least 6 characters")

	// ErrInvalidEmail indicates the email address is malformed.
	ErrInvalidEmail = errors.New("invalid email address")

	// ===========================================
	// Session Errors
	// ===========================================

	// ErrSessionNotFound indicates the session token is unknown.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExpired indicates the session token has expired.
	ErrSessionExpired = errors.New("session has expired")

	// ErrInvalidToken indicates the token format is invalid.
	ErrInvalidToken = errors.New("invalid token")

	// ===========================================
	// Project Errors
	// ===========================================

	// ErrProjectNotFound indicates the requested project does not exist.
	ErrProjectNotFound = errors.New("project not found")

	// ErrProjectNameRequired indicates the project name is empty.
	ErrProjectNameRequired = errors.New("project name is required")

	// ErrInvalidPermission indicates an unknown collaborator permission tier.
	ErrInvalidPermission = errors.New("permission must be read, write, or admin")

	// ErrCollaboratorExists indicates the user is already a collaborator.
	ErrCollaboratorExists = errors.New("user is already a collaborator")

	// ErrCollaboratorNotFound indicates the user is not a collaborator.
	ErrCollaboratorNotFound = errors.New("collaborator not found")

	// ErrOwnerAsCollaborator indicates an attempt to add the owner as a collaborator.
	ErrOwnerAsCollaborator = errors.New("project owner cannot be added as a collaborator")

	// ===========================================
	// File Errors
	// ===========================================

	// ErrFileNotFound indicates the requested file does not exist.
	ErrFileNotFound = errors.New("file not found")

	// ErrFileNameRequired indicates the file name is empty.
	ErrFileNameRequired = errors.New("file name is required")

	// ErrFileTooLarge indicates the file exceeds the configured size limit.
	ErrFileTooLarge = errors.New("file exceeds maximum allowed size")

	// ErrEmptyFile indicates an upload with no content.
	ErrEmptyFile = errors.New("file is empty")

	// ===========================================
	// Share Errors
	// ===========================================

	// ErrShareNotFound indicates the share token is unknown.
	ErrShareNotFound = errors.New("share not found")

	// ErrShareGone indicates the share exists but is no longer valid.
	ErrShareGone = errors.New("share is no longer available")

	// ErrShareAlreadyExists indicates the project already has a share.
	ErrShareAlreadyExists = errors.New("project already has an active share")

	// ErrSharePasswordRequired indicates the share is password protected.
	ErrSharePasswordRequired = errors.New("share password required")

	// ErrInvalidSharePassword indicates the supplied share password is wrong.
	ErrInvalidSharePassword = errors.New("invalid share password")

	// ErrShareExpiryInPast indicates the requested expiry is not in the future.
	ErrShareExpiryInPast = errors.New("share expiry must be in the future")

	// ErrShareDownloadLimit indicates the download limit is not positive.
	ErrShareDownloadLimit = errors.New("share download limit must be at least 1")

	// ===========================================
	// Message Errors
	// ===========================================

	// ErrMessageNotFound indicates the requested chat message does not exist.
	ErrMessageNotFound = errors.New("message not found")

	// ErrMessageContentLength indicates the message content length is invalid (1-1000 chars).
	ErrMessageContentLength = errors.New("message content must be between 1 and 1000 characters")

	// ErrSystemMessageImmutable indicates system messages cannot be edited.
	ErrSystemMessageImmutable = errors.New("system messages cannot be edited")

	// ===========================================
	// Authorization Errors
	// ===========================================

	// ErrAccessDenied indicates the user does not have permission.
	ErrAccessDenied = errors.New("access denied")

	// ErrUploadNotAllowed indicates the user lacks the upload privilege.
	ErrUploadNotAllowed = errors.New("user is not allowed to create projects")
)

// DomainError wraps a domain error with additional context.
type DomainError struct {
	// Err is the underlying domain error.
	Err error

	// Message provides additional context.
	Message string

	// Resource identifies the affected resource (e.g., project name, share token).
	Resource string
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Resource != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Err.Error(), e.Message, e.Resource)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error for errors.Is/errors.As.
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError with context.
func NewDomainError(err error, message, resource string) *DomainError {
	return &DomainError{
		Err:      err,
		Message:  message,
		Resource: resource,
	}
}

// WrapError wraps an error with domain context if it's not already a DomainError.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}

	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return err
	}

	return &DomainError{
		Err:     err,
		Message: message,
	}
}
