package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/hueai/medassist-backend/internal/logger"
	"github.com/hueai/medassist-backend/internal/services"
)

type ChatHandler struct {
	log     *logger.Logger
	chatSvc services.ChatService
}

func NewChatHandler(log *logger.Logger, chatSvc services.ChatService) *ChatHandler {
	return &ChatHandler{
		log:     log.With("handler", "ChatHandler"),
		chatSvc: chatSvc,
	}
}

// bindChatRequest reads the JSON body and lets a session_id query parameter
// override the body's, matching how clients continue an existing session.
func bindChatRequest(c *gin.Context) (services.ChatRequest, error) {
	var req services.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return req, err
	}
	if raw := c.Query("session_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return req, fmt.Errorf("invalid session_id: %w", err)
		}
		req.SessionID = &id
	}
	return req, nil
}

// POST /api/assistant/chat
// Run one full turn and return the aggregate result.
func (h *ChatHandler) Chat(c *gin.Context) {
	req, err := bindChatRequest(c)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	result, err := h.chatSvc.Respond(c.Request.Context(), req)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, result)
}

// POST /api/assistant/chat/stream
// Run one turn streaming every event as an SSE frame. The terminal frame is
// either complete or error, followed by a [DONE] sentinel.
func (h *ChatHandler) ChatStream(c *gin.Context) {
	req, err := bindChatRequest(c)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	events, err := h.chatSvc.RespondStream(c.Request.Context(), req)
	if err != nil {
		RespondServiceError(c, err)
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		RespondError(c, http.StatusInternalServerError, "streaming_unsupported", errors.New("response writer does not support streaming"))
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)
	flusher.Flush()

	for ev := range events {
		raw, err := json.Marshal(ev)
		if err != nil {
			h.log.Error("Failed to marshal stream event", "type", string(ev.Type), "error", err.Error())
			continue
		}
		if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", raw); err != nil {
			h.log.Info("Stream client disconnected")
			return
		}
		flusher.Flush()
	}

	fmt.Fprint(c.Writer, "data: [DONE]\n\n")
	flusher.Flush()
}
