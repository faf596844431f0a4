package handler

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/prn-tf/teamdrop/internal/auth"
	"github.com/prn-tf/teamdrop/internal/service"
)

// MessageHandler serves project chat.
type MessageHandler struct {
	messages *service.MessageService
	logger   zerolog.Logger
}

// NewMessageHandler creates a new MessageHandler.
func NewMessageHandler(messages *service.MessageService, logger zerolog.Logger) *MessageHandler {
	return &MessageHandler{
		messages: messages,
		logger:   logger.With().Str("handler", "message").Logger(),
	}
}

// List handles GET /api/projects/{projectID}/messages.
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	actor := auth.UserFromContext(r.Context())

	projectID, err := idParam(r, "projectID")
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	result, err := h.messages.List(r.Context(), actor, projectID, listOptions(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"messages": result.Items,
		"total":    result.Total,
	})
}

type messageRequest struct {
	Content string `json:"content"`
}

// Send handles POST /api/projects/{projectID}/messages.
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	actor := auth.UserFromContext(r.Context())

	projectID, err := idParam(r, "projectID")
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	var req messageRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	message, err := h.messages.Send(r.Context(), actor, projectID, req.Content)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, message)
}

// Edit handles PATCH /api/messages/{messageID}.
func (h *MessageHandler) Edit(w http.ResponseWriter, r *http.Request) {
	actor := auth.UserFromContext(r.Context())

	messageID, err := idParam(r, "messageID")
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	var req messageRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	message, err := h.messages.Edit(r.Context(), actor, messageID, req.Content)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, message)
}

// Delete handles DELETE /api/messages/{messageID}.
func (h *MessageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor := auth.UserFromContext(r.Context())

	messageID, err := idParam(r, "messageID")
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	if err := h.messages.Delete(r.Context(), actor, messageID); err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusNoContent, nil)
}
