package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hueai/medassist-backend/internal/logger"
	"github.com/hueai/medassist-backend/internal/services"
)

type DrugHandler struct {
	log             *logger.Logger
	authenticitySvc services.AuthenticityService
}

func NewDrugHandler(log *logger.Logger, authenticitySvc services.AuthenticityService) *DrugHandler {
	return &DrugHandler{
		log:             log.With("handler", "DrugHandler"),
		authenticitySvc: authenticitySvc,
	}
}

type verifyDrugRequest struct {
	DrugName    string `json:"drug_name"`
	BatchNumber string `json:"batch_number"`
}

// POST /api/drug-authenticity/verify
func (h *DrugHandler) Verify(c *gin.Context) {
	var req verifyDrugRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	result, err := h.authenticitySvc.Verify(c.Request.Context(), req.DrugName, req.BatchNumber)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, result)
}
