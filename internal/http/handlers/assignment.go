package handlers

import (
	"net/http"

	"mobile-home-delivery/internal/logx"
	"mobile-home-delivery/internal/service/delivery"
)

// AssignmentHandler serves the driver's assignment lifecycle.
type AssignmentHandler struct {
	usecase assignmentUsecase
	logger  logx.Logger
}

// NewAssignmentHandler creates a new AssignmentHandler.
func NewAssignmentHandler(logger logx.Logger, uc assignmentUsecase) *AssignmentHandler {
	if logger == nil {
		logger = logx.Nop()
	}
	return &AssignmentHandler{usecase: uc, logger: logger}
}

// Accept handles POST /assignments/{id}/accept. The body must confirm the action.
func (h *AssignmentHandler) Accept(w http.ResponseWriter, r *http.Request) {
	id, actor, ok := pathAndActor(h.logger, w, r)
	if !ok {
		return
	}
	var req confirmRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}
	a, err := h.usecase.Accept(r.Context(), delivery.AssignmentAction{AssignmentID: id, DriverID: actor, Confirmed: req.Confirmed})
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, assignmentToResponse(*a))
}

// Decline handles POST /assignments/{id}/decline.
func (h *AssignmentHandler) Decline(w http.ResponseWriter, r *http.Request) {
	id, actor, ok := pathAndActor(h.logger, w, r)
	if !ok {
		return
	}
	var req declineRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}
	a, err := h.usecase.Decline(r.Context(), delivery.DeclineInput{
		AssignmentAction: delivery.AssignmentAction{AssignmentID: id, DriverID: actor, Confirmed: req.Confirmed},
		Reason:           req.Reason,
	})
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, assignmentToResponse(*a))
}

// Start handles POST /assignments/{id}/start with an optional starting mileage.
func (h *AssignmentHandler) Start(w http.ResponseWriter, r *http.Request) {
	id, actor, ok := pathAndActor(h.logger, w, r)
	if !ok {
		return
	}
	var req mileageRequest
	if r.ContentLength != 0 {
		if ok := decodeJSON(h.logger, w, r, &req); !ok {
			return
		}
	}
	a, err := h.usecase.Start(r.Context(), id, actor, req.Mileage)
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, assignmentToResponse(*a))
}

// Complete handles POST /assignments/{id}/complete with an optional ending mileage.
func (h *AssignmentHandler) Complete(w http.ResponseWriter, r *http.Request) {
	id, actor, ok := pathAndActor(h.logger, w, r)
	if !ok {
		return
	}
	var req mileageRequest
	if r.ContentLength != 0 {
		if ok := decodeJSON(h.logger, w, r, &req); !ok {
			return
		}
	}
	a, err := h.usecase.Complete(r.Context(), id, actor, req.Mileage)
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, assignmentToResponse(*a))
}

// RecordMileage handles PUT /assignments/{id}/mileage.
func (h *AssignmentHandler) RecordMileage(w http.ResponseWriter, r *http.Request) {
	id, actor, ok := pathAndActor(h.logger, w, r)
	if !ok {
		return
	}
	var req recordMileageRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}
	a, err := h.usecase.RecordMileage(r.Context(), delivery.MileageInput{
		AssignmentID: id,
		DriverID:     actor,
		Starting:     req.Starting,
		Ending:       req.Ending,
	})
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, assignmentToResponse(*a))
}
