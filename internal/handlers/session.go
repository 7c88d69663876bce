package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/hueai/medassist-backend/internal/logger"
	"github.com/hueai/medassist-backend/internal/services"
)

type SessionHandler struct {
	log        *logger.Logger
	sessionSvc services.SessionService
}

func NewSessionHandler(log *logger.Logger, sessionSvc services.SessionService) *SessionHandler {
	return &SessionHandler{
		log:        log.With("handler", "SessionHandler"),
		sessionSvc: sessionSvc,
	}
}

// GET /api/assistant/sessions/patient/:patient_id?status=...&offset=...&limit=...
// List a patient's sessions with message counts, newest activity first.
func (h *SessionHandler) ListSessions(c *gin.Context) {
	patientID, err := uuid.Parse(c.Param("patient_id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", errors.New("invalid patient id"))
		return
	}
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	sessions, total, err := h.sessionSvc.ListByPatient(c.Request.Context(), patientID, c.Query("status"), offset, limit)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{
		"sessions": sessions,
		"total":    total,
	})
}

// GET /api/assistant/sessions/:session_id/history
// Full session detail including every persisted message.
func (h *SessionHandler) GetSession(c *gin.Context) {
	id, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", errors.New("invalid session id"))
		return
	}

	session, messages, err := h.sessionSvc.FullHistory(c.Request.Context(), id)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{
		"session":  session,
		"messages": messages,
	})
}

// POST /api/assistant/sessions/:session_id/close
func (h *SessionHandler) CloseSession(c *gin.Context) {
	id, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", errors.New("invalid session id"))
		return
	}
	if err := h.sessionSvc.Close(c.Request.Context(), id); err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"status": "closed"})
}

// DELETE /api/assistant/sessions/:session_id
func (h *SessionHandler) DeleteSession(c *gin.Context) {
	id, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", errors.New("invalid session id"))
		return
	}
	if err := h.sessionSvc.Delete(c.Request.Context(), id); err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"status": "deleted"})
}
