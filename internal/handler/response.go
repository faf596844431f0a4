// Package handler provides HTTP handlers for the Teamdrop API.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/prn-tf/teamdrop/internal/domain"
	"github.com/prn-tf/teamdrop/internal/service"
)

// errorResponse is the JSON body of every error reply.
type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// writeError maps a domain error onto an HTTP status and writes the
// JSON error body. Unknown errors become a generic 500 so internal
// details never leak to clients.
func writeError(w http.ResponseWriter, logger zerolog.Logger, err error) {
	status := statusForError(err)

	message := err.Error()
	if status == http.StatusInternalServerError {
		logger.Error().Err(err).Msg("request failed")
		message = "internal error"
	}

	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		message = domainErr.Message
	}

	writeJSON(w, status, errorResponse{Error: message})
}

// statusForError maps domain sentinels onto HTTP status codes.
func statusForError(err error) int {
	switch {
	// 400 - validation
	case errors.Is(err, domain.ErrUsernameFormat),
		errors.Is(err, domain.ErrPasswordTooShort),
		errors.Is(err, domain.ErrInvalidEmail),
		errors.Is(err, domain.ErrProjectNameRequired),
		errors.Is(err, domain.ErrInvalidPermission),
		errors.Is(err, domain.ErrOwnerAsCollaborator),
		errors.Is(err, domain.ErrFileNameRequired),
		errors.Is(err, domain.ErrEmptyFile),
		errors.Is(err, domain.ErrShareExpiryInPast),
		errors.Is(err, domain.ErrShareDownloadLimit),
		errors.Is(err, domain.ErrMessageContentLength),
		errors.Is(err, domain.ErrSystemMessageImmutable):
		return http.StatusBadRequest

	// 401 - authentication
	case errors.Is(err, domain.ErrInvalidCredentials),
		errors.Is(err, domain.ErrSessionExpired),
		errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrInvalidToken),
		errors.Is(err, domain.ErrSharePasswordRequired),
		errors.Is(err, domain.ErrInvalidSharePassword),
		errors.Is(err, service.ErrNotAuthenticated):
		return http.StatusUnauthorized

	// 403 - authorization
	case errors.Is(err, domain.ErrAccessDenied),
		errors.Is(err, domain.ErrUploadNotAllowed):
		return http.StatusForbidden

	// 404 - missing or invisible
	case errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrProjectNotFound),
		errors.Is(err, domain.ErrCollaboratorNotFound),
		errors.Is(err, domain.ErrFileNotFound),
		errors.Is(err, domain.ErrShareNotFound),
		errors.Is(err, domain.ErrMessageNotFound):
		return http.StatusNotFound

	// 409 - conflicts
	case errors.Is(err, domain.ErrUserAlreadyExists),
		errors.Is(err, domain.ErrCollaboratorExists),
		errors.Is(err, domain.ErrShareAlreadyExists):
		return http.StatusConflict

	// 410 - valid token, dead share
	case errors.Is(err, domain.ErrShareGone):
		return http.StatusGone

	// 413 - upload too large
	case errors.Is(err, domain.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge

	default:
		return http.StatusInternalServerError
	}
}
