package handler

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/prn-tf/teamdrop/internal/auth"
	"github.com/prn-tf/teamdrop/internal/domain"
	"github.com/prn-tf/teamdrop/internal/service"
)

// uploadMemoryLimit bounds how much of a multipart upload is buffered
// in memory before spilling to disk.
const uploadMemoryLimit = 32 << 20

// FileHandler serves file uploads, downloads, and metadata.
type FileHandler struct {
	files   *service.FileService
	metrics *Metrics
	logger  zerolog.Logger
}

// NewFileHandler creates a new FileHandler.
func NewFileHandler(files *service.FileService, metrics *Metrics, logger zerolog.Logger) *FileHandler {
	return &FileHandler{
		files:   files,
		metrics: metrics,
		logger:  logger.With().Str("handler", "file").Logger(),
	}
}

// Upload handles POST /api/projects/{projectID}/files. The file is sent
// as multipart form data under the "file" field; tags may be repeated
// in the "tags" field.
func (h *FileHandler) Upload(w http.ResponseWriter, r *http.Request) {
	actor := auth.UserFromContext(r.Context())

	projectID, err := idParam(r, "projectID")
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	if err := r.ParseMultipartForm(uploadMemoryLimit); err != nil {
		badRequest(w, "invalid multipart request")
		return
	}
	defer r.MultipartForm.RemoveAll()

	part, header, err := r.FormFile("file")
	if err != nil {
		badRequest(w, "missing file field")
		return
	}
	defer part.Close()

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	file, err := h.files.Upload(r.Context(), actor, projectID, service.UploadInput{
		Name:     header.Filename,
		MimeType: mimeType,
		Size:     header.Size,
		Tags:     r.MultipartForm.Value["tags"],
		Reader:   part,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.metrics.ObserveUpload(file.Size)
	writeJSON(w, http.StatusCreated, file)
}

// List handles GET /api/projects/{projectID}/files.
func (h *FileHandler) List(w http.ResponseWriter, r *http.Request) {
	actor := auth.UserFromContext(r.Context())

	projectID, err := idParam(r, "projectID")
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	result, err := h.files.List(r.Context(), actor, projectID, listOptions(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"files": result.Items,
		"total": result.Total,
	})
}

// Get handles GET /api/files/{fileID}.
func (h *FileHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor := auth.UserFromContext(r.Context())

	fileID, err := idParam(r, "fileID")
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	file, err := h.files.Get(r.Context(), actor, fileID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, file)
}

// Download handles GET /api/files/{fileID}/download.
func (h *FileHandler) Download(w http.ResponseWriter, r *http.Request) {
	actor := auth.UserFromContext(r.Context())

	fileID, err := idParam(r, "fileID")
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	file, reader, err := h.files.Download(r.Context(), actor, fileID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	defer reader.Close()

	streamFile(w, h.logger, file, reader)
	h.metrics.ObserveDownload(file.Size)
}

type updateFileRequest struct {
	Name     *string  `json:"name"`
	Tags     []string `json:"tags"`
	IsPublic *bool    `json:"is_public"`
}

// Update handles PATCH /api/files/{fileID}.
func (h *FileHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor := auth.UserFromContext(r.Context())

	fileID, err := idParam(r, "fileID")
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	var req updateFileRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	file, err := h.files.UpdateMetadata(r.Context(), actor, fileID, service.UpdateFileInput{
		Name:     req.Name,
		Tags:     req.Tags,
		IsPublic: req.IsPublic,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, file)
}

// Delete handles DELETE /api/files/{fileID}.
func (h *FileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor := auth.UserFromContext(r.Context())

	fileID, err := idParam(r, "fileID")
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	if err := h.files.Delete(r.Context(), actor, fileID); err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusNoContent, nil)
}

// streamFile writes a file's bytes as an attachment response.
func streamFile(w http.ResponseWriter, logger zerolog.Logger, file *domain.File, reader io.Reader) {
	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": file.Name})
	if disposition == "" {
		disposition = fmt.Sprintf("attachment; filename=%q", file.Name)
	}

	w.Header().Set("Content-Type", file.MimeType)
	w.Header().Set("Content-Length", strconv.FormatInt(file.Size, 10))
	w.Header().Set("Content-Disposition", disposition)
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, reader); err != nil {
		logger.Warn().Err(err).Int64("file_id", file.ID).Msg("download stream interrupted")
	}
}
