package handlers

import (
	"net/http"

	"mobile-home-delivery/internal/logx"
)

// QualityHandler serves the quality report.
type QualityHandler struct {
	usecase qualityUsecase
	logger  logx.Logger
}

// NewQualityHandler creates a new QualityHandler.
func NewQualityHandler(logger logx.Logger, uc qualityUsecase) *QualityHandler {
	if logger == nil {
		logger = logx.Nop()
	}
	return &QualityHandler{usecase: uc, logger: logger}
}

// Validate handles GET /deliveries/{id}/quality.
func (h *QualityHandler) Validate(w http.ResponseWriter, r *http.Request) {
	id, err := idFromURL(r, "id")
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid id")
		return
	}
	rep, err := h.usecase.Validate(r.Context(), id)
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, qualityToResponse(rep))
}
