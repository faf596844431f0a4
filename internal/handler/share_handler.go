package handler

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/teamdrop/internal/auth"
	"github.com/prn-tf/teamdrop/internal/service"

	"github.com/go-chi/chi/v5"
)

// sharePasswordHeader carries the share password on public download
// requests; the "password" query parameter works as well.
const sharePasswordHeader = "X-Share-Password"

// ShareHandler serves share link management for owners and the public
// token endpoints for anonymous visitors.
type ShareHandler struct {
	shares  *service.ShareService
	metrics *Metrics
	logger  zerolog.Logger
}

// NewShareHandler creates a new ShareHandler.
func NewShareHandler(shares *service.ShareService, metrics *Metrics, logger zerolog.Logger) *ShareHandler {
	return &ShareHandler{
		shares:  shares,
		metrics: metrics,
		logger:  logger.With().Str("handler", "share").Logger(),
	}
}

type createShareRequest struct {
	Password     string     `json:"password"`
	ExpiresAt    *time.Time `json:"expires_at"`
	MaxDownloads *int64     `json:"max_downloads"`
}

// Create handles POST /api/projects/{projectID}/share.
func (h *ShareHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor := auth.UserFromContext(r.Context())

	projectID, err := idParam(r, "projectID")
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	var req createShareRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	share, err := h.shares.Create(r.Context(), actor, projectID, service.CreateShareInput{
		Password:     req.Password,
		ExpiresAt:    req.ExpiresAt,
		MaxDownloads: req.MaxDownloads,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, share)
}

// Stats handles GET /api/projects/{projectID}/share.
func (h *ShareHandler) Stats(w http.ResponseWriter, r *http.Request) {
	actor := auth.UserFromContext(r.Context())

	projectID, err := idParam(r, "projectID")
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	stats, err := h.shares.Stats(r.Context(), actor, projectID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

type updateShareRequest struct {
	Password      *string    `json:"password"`
	ClearPassword bool       `json:"clear_password"`
	ExpiresAt     *time.Time `json:"expires_at"`
	ClearExpiry   bool       `json:"clear_expiry"`
	MaxDownloads  *int64     `json:"max_downloads"`
	ClearLimit    bool       `json:"clear_limit"`
}

// Update handles PATCH /api/projects/{projectID}/share.
func (h *ShareHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor := auth.UserFromContext(r.Context())

	projectID, err := idParam(r, "projectID")
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	var req updateShareRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	share, err := h.shares.Update(r.Context(), actor, projectID, service.UpdateShareInput{
		Password:      req.Password,
		ClearPassword: req.ClearPassword,
		ExpiresAt:     req.ExpiresAt,
		ClearExpiry:   req.ClearExpiry,
		MaxDownloads:  req.MaxDownloads,
		ClearLimit:    req.ClearLimit,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, share)
}

// Deactivate handles DELETE /api/projects/{projectID}/share.
func (h *ShareHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	actor := auth.UserFromContext(r.Context())

	projectID, err := idParam(r, "projectID")
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	if err := h.shares.Deactivate(r.Context(), actor, projectID); err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusNoContent, nil)
}

// ListMine handles GET /api/shares.
func (h *ShareHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	actor := auth.UserFromContext(r.Context())

	shares, err := h.shares.ListMine(r.Context(), actor)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"shares": shares,
		"total":  len(shares),
	})
}

// Fetch handles GET /api/shares/{token}. No authentication required;
// password-protected shares answer with a challenge view.
func (h *ShareHandler) Fetch(w http.ResponseWriter, r *http.Request) {
	view, err := h.shares.Fetch(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

type verifyShareRequest struct {
	Password string `json:"password"`
}

// Verify handles POST /api/shares/{token}/verify.
func (h *ShareHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyShareRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	view, err := h.shares.VerifyPassword(r.Context(), chi.URLParam(r, "token"), req.Password)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// Download handles GET /api/shares/{token}/files/{fileID}/download.
func (h *ShareHandler) Download(w http.ResponseWriter, r *http.Request) {
	fileID, err := idParam(r, "fileID")
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	password := r.URL.Query().Get("password")
	if password == "" {
		password = r.Header.Get(sharePasswordHeader)
	}

	file, reader, err := h.shares.Download(r.Context(), chi.URLParam(r, "token"), fileID, password)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	defer reader.Close()

	streamFile(w, h.logger, file, reader)
	h.metrics.ObserveShareDownload()
	h.metrics.ObserveDownload(file.Size)
}
