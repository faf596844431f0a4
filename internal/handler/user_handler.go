package handler

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/prn-tf/teamdrop/internal/auth"
	"github.com/prn-tf/teamdrop/internal/service"
)

// UserHandler serves admin user management.
type UserHandler struct {
	users  *service.UserService
	logger zerolog.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(users *service.UserService, logger zerolog.Logger) *UserHandler {
	return &UserHandler{
		users:  users,
		logger: logger.With().Str("handler", "user").Logger(),
	}
}

// List handles GET /api/users. Admin-only, enforced by the service.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	actor := auth.UserFromContext(r.Context())
	opts := listOptions(r)

	out, err := h.users.List(r.Context(), actor, service.ListUsersInput{
		Limit:  opts.Limit,
		Offset: opts.Offset,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"users": out.Users,
		"total": out.TotalCount,
	})
}

type grantUploadRequest struct {
	CanUpload bool `json:"can_upload"`
}

// GrantUpload handles PUT /api/users/{userID}/upload-permission.
func (h *UserHandler) GrantUpload(w http.ResponseWriter, r *http.Request) {
	actor := auth.UserFromContext(r.Context())

	targetID, err := idParam(r, "userID")
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	var req grantUploadRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	user, err := h.users.GrantUpload(r.Context(), actor, targetID, req.CanUpload)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}
