package handlers

import (
	"net/http"

	"mobile-home-delivery/internal/logx"
)

// GPSHandler ingests live points and offline batches.
type GPSHandler struct {
	usecase trackingUsecase
	logger  logx.Logger
}

// NewGPSHandler creates a new GPSHandler.
func NewGPSHandler(logger logx.Logger, uc trackingUsecase) *GPSHandler {
	if logger == nil {
		logger = logx.Nop()
	}
	return &GPSHandler{usecase: uc, logger: logger}
}

// RecordPoint handles POST /deliveries/{id}/gps.
func (h *GPSHandler) RecordPoint(w http.ResponseWriter, r *http.Request) {
	id, actor, ok := pathAndActor(h.logger, w, r)
	if !ok {
		return
	}
	var req gpsPointRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}
	res, err := h.usecase.RecordPoint(r.Context(), req.toModel(id, actor))
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, ingestToResponse(res))
}

// IngestBatch handles POST /deliveries/{id}/gps/batch. Resending a batch is safe.
func (h *GPSHandler) IngestBatch(w http.ResponseWriter, r *http.Request) {
	id, actor, ok := pathAndActor(h.logger, w, r)
	if !ok {
		return
	}
	var req gpsBatchRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}
	res, err := h.usecase.IngestBatch(r.Context(), req.toModel(id, actor))
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, ingestToResponse(res))
}
