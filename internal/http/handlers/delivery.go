package handlers

import (
	"net/http"
	"strings"

	"mobile-home-delivery/internal/domain"
	"mobile-home-delivery/internal/logx"
	"mobile-home-delivery/internal/service/delivery"
)

// DeliveryHandler serves delivery reads, status transitions and issues.
type DeliveryHandler struct {
	usecase deliveryUsecase
	logger  logx.Logger
}

// NewDeliveryHandler creates a new DeliveryHandler.
func NewDeliveryHandler(logger logx.Logger, uc deliveryUsecase) *DeliveryHandler {
	if logger == nil {
		logger = logx.Nop()
	}
	return &DeliveryHandler{usecase: uc, logger: logger}
}

// Get handles GET /deliveries/{id}.
func (h *DeliveryHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := idFromURL(r, "id")
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid id")
		return
	}
	d, err := h.usecase.Get(r.Context(), id)
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, deliveryToResponse(*d))
}

// History handles GET /deliveries/{id}/history.
func (h *DeliveryHandler) History(w http.ResponseWriter, r *http.Request) {
	id, err := idFromURL(r, "id")
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid id")
		return
	}
	entries, err := h.usecase.History(r.Context(), id)
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	out := make([]historyResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, historyToResponse(e))
	}
	writeJSON(h.logger, w, r, http.StatusOK, out)
}

// Transition handles POST /deliveries/{id}/transitions.
func (h *DeliveryHandler) Transition(w http.ResponseWriter, r *http.Request) {
	id, actor, ok := pathAndActor(h.logger, w, r)
	if !ok {
		return
	}
	var req transitionRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}

	res, err := h.usecase.Transition(r.Context(), delivery.TransitionInput{
		DeliveryID:      id,
		ActorID:         actor,
		Target:          domain.DeliveryStatus(strings.TrimSpace(req.Status)),
		Location:        req.Location.toModel(),
		Note:            req.Note,
		ExpectedVersion: req.ExpectedVersion,
	})
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, transitionToResponse(res))
}

// ReportIssue handles POST /deliveries/{id}/issues.
func (h *DeliveryHandler) ReportIssue(w http.ResponseWriter, r *http.Request) {
	id, actor, ok := pathAndActor(h.logger, w, r)
	if !ok {
		return
	}
	var req issueRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}

	res, err := h.usecase.ReportIssue(r.Context(), delivery.IssueInput{
		DeliveryID:  id,
		ReporterID:  actor,
		Type:        domain.IssueType(req.Type),
		Severity:    domain.Severity(req.Severity),
		Description: req.Description,
		Location:    req.Location.toModel(),
	})
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusCreated, issueToResponse(res))
}

// Resume handles POST /admin/deliveries/{id}/resume.
func (h *DeliveryHandler) Resume(w http.ResponseWriter, r *http.Request) {
	id, actor, ok := pathAndActor(h.logger, w, r)
	if !ok {
		return
	}
	var req resumeRequest
	if r.ContentLength != 0 {
		if ok := decodeJSON(h.logger, w, r, &req); !ok {
			return
		}
	}

	res, err := h.usecase.Resume(r.Context(), id, actor, req.Note)
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, transitionToResponse(res))
}
