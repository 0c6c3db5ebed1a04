package handlers

import (
	"context"
	"net/http"
	"strconv"

	"mobile-home-delivery/internal/logx"
	"mobile-home-delivery/internal/service/wizard"
)

// WizardHandler serves the guided checklist.
type WizardHandler struct {
	usecase wizardUsecase
	logger  logx.Logger
}

// NewWizardHandler creates a new WizardHandler.
func NewWizardHandler(logger logx.Logger, uc wizardUsecase) *WizardHandler {
	if logger == nil {
		logger = logx.Nop()
	}
	return &WizardHandler{usecase: uc, logger: logger}
}

// View handles GET /deliveries/{id}/wizard with an optional ?step= index.
func (h *WizardHandler) View(w http.ResponseWriter, r *http.Request) {
	id, err := idFromURL(r, "id")
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid id")
		return
	}
	var step *int
	if s := r.URL.Query().Get("step"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			writeError(h.logger, w, r, http.StatusBadRequest, "invalid step")
			return
		}
		step = &v
	}
	v, err := h.usecase.View(r.Context(), id, step)
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, wizardToResponse(v))
}

// Start handles POST /deliveries/{id}/wizard/start.
func (h *WizardHandler) Start(w http.ResponseWriter, r *http.Request) {
	h.move(w, r, h.usecase.Start)
}

// Advance handles POST /deliveries/{id}/wizard/advance.
func (h *WizardHandler) Advance(w http.ResponseWriter, r *http.Request) {
	h.move(w, r, h.usecase.Advance)
}

func (h *WizardHandler) move(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, in wizard.MoveInput) (wizard.View, error)) {
	id, actor, ok := pathAndActor(h.logger, w, r)
	if !ok {
		return
	}
	var req wizardMoveRequest
	if r.ContentLength != 0 {
		if ok := decodeJSON(h.logger, w, r, &req); !ok {
			return
		}
	}
	v, err := op(r.Context(), wizard.MoveInput{
		DeliveryID: id,
		ActorID:    actor,
		Location:   req.Location.toModel(),
		Note:       req.Note,
	})
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, wizardToResponse(v))
}
