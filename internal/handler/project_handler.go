package handler

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/prn-tf/teamdrop/internal/auth"
	"github.com/prn-tf/teamdrop/internal/domain"
	"github.com/prn-tf/teamdrop/internal/service"
)

// ProjectHandler serves project CRUD and collaborator management.
type ProjectHandler struct {
	projects *service.ProjectService
	logger   zerolog.Logger
}

// NewProjectHandler creates a new ProjectHandler.
func NewProjectHandler(projects *service.ProjectService, logger zerolog.Logger) *ProjectHandler {
	return &ProjectHandler{
		projects: projects,
		logger:   logger.With().Str("handler", "project").Logger(),
	}
}

type createProjectRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	IsPublic    bool     `json:"is_public"`
}

// Create handles POST /api/projects.
func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor := auth.UserFromContext(r.Context())

	var req createProjectRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	project, err := h.projects.Create(r.Context(), actor, service.CreateProjectInput{
		Name:        req.Name,
		Description: req.Description,
		Tags:        req.Tags,
		IsPublic:    req.IsPublic,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, project)
}

// List handles GET /api/projects.
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	actor := auth.UserFromContext(r.Context())

	result, err := h.projects.List(r.Context(), actor, listOptions(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"projects": result.Items,
		"total":    result.Total,
	})
}

// Get handles GET /api/projects/{projectID}.
func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor := auth.UserFromContext(r.Context())

	projectID, err := idParam(r, "projectID")
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	project, err := h.projects.Get(r.Context(), actor, projectID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, project)
}

type updateProjectRequest struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Tags        []string `json:"tags"`
	IsPublic    *bool    `json:"is_public"`
}

// Update handles PATCH /api/projects/{projectID}.
func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor := auth.UserFromContext(r.Context())

	projectID, err := idParam(r, "projectID")
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	var req updateProjectRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	project, err := h.projects.Update(r.Context(), actor, projectID, service.UpdateProjectInput{
		Name:        req.Name,
		Description: req.Description,
		Tags:        req.Tags,
		IsPublic:    req.IsPublic,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, project)
}

// Delete handles DELETE /api/projects/{projectID}.
func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor := auth.UserFromContext(r.Context())

	projectID, err := idParam(r, "projectID")
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	if err := h.projects.Delete(r.Context(), actor, projectID); err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusNoContent, nil)
}

type collaboratorRequest struct {
	UserID     int64             `json:"user_id"`
	Email      string            `json:"email"`
	Permission domain.Permission `json:"permission"`
}

// AddCollaborator handles POST /api/projects/{projectID}/collaborators.
func (h *ProjectHandler) AddCollaborator(w http.ResponseWriter, r *http.Request) {
	actor := auth.UserFromContext(r.Context())

	projectID, err := idParam(r, "projectID")
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	var req collaboratorRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	err = h.projects.AddCollaborator(r.Context(), actor, projectID, service.AddCollaboratorInput{
		UserID:     req.UserID,
		Email:      req.Email,
		Permission: req.Permission,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusNoContent, nil)
}

type updateCollaboratorRequest struct {
	Permission domain.Permission `json:"permission"`
}

// UpdateCollaborator handles PUT /api/projects/{projectID}/collaborators/{userID}.
func (h *ProjectHandler) UpdateCollaborator(w http.ResponseWriter, r *http.Request) {
	actor := auth.UserFromContext(r.Context())

	projectID, err := idParam(r, "projectID")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	userID, err := idParam(r, "userID")
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	var req updateCollaboratorRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	if err := h.projects.UpdateCollaborator(r.Context(), actor, projectID, userID, req.Permission); err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusNoContent, nil)
}

// RemoveCollaborator handles DELETE /api/projects/{projectID}/collaborators/{userID}.
func (h *ProjectHandler) RemoveCollaborator(w http.ResponseWriter, r *http.Request) {
	actor := auth.UserFromContext(r.Context())

	projectID, err := idParam(r, "projectID")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	userID, err := idParam(r, "userID")
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	if err := h.projects.RemoveCollaborator(r.Context(), actor, projectID, userID); err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusNoContent, nil)
}
