package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"mobile-home-delivery/internal/domain"
	"mobile-home-delivery/internal/logx"
	"mobile-home-delivery/internal/service/photos"
)

const multipartMemory = 8 << 20

// PhotoHandler serves photo upload and the per-phase checklist.
type PhotoHandler struct {
	usecase   photoUsecase
	logger    logx.Logger
	maxUpload int64
}

// NewPhotoHandler creates a new PhotoHandler. maxUpload bounds the request body.
func NewPhotoHandler(logger logx.Logger, uc photoUsecase, maxUpload int64) *PhotoHandler {
	if logger == nil {
		logger = logx.Nop()
	}
	if maxUpload <= 0 {
		maxUpload = 20 << 20
	}
	return &PhotoHandler{usecase: uc, logger: logger, maxUpload: maxUpload}
}

// Capture handles POST /deliveries/{id}/photos as multipart/form-data with
// a "file" part and category, caption, taken_at, latitude, longitude and accuracy fields.
func (h *PhotoHandler) Capture(w http.ResponseWriter, r *http.Request) {
	id, actor, ok := pathAndActor(h.logger, w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+bodyLimit)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(h.logger, w, r, http.StatusRequestEntityTooLarge, "photo too large")
			return
		}
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, "unreadable file")
		return
	}

	in := photos.CaptureInput{
		DeliveryID: id,
		DriverID:   actor,
		Category:   domain.PhotoCategory(strings.TrimSpace(r.FormValue("category"))),
		Data:       data,
		Caption:    r.FormValue("caption"),
	}
	if s := r.FormValue("taken_at"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			writeError(h.logger, w, r, http.StatusBadRequest, "invalid taken_at")
			return
		}
		in.TakenAt = t.UTC()
	}
	loc, err := formLocation(r)
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid location")
		return
	}
	in.Location = loc

	res, err := h.usecase.Capture(r.Context(), in)
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusCreated, captureToResponse(res))
}

// Checklist handles GET /deliveries/{id}/photos/checklist.
func (h *PhotoHandler) Checklist(w http.ResponseWriter, r *http.Request) {
	id, err := idFromURL(r, "id")
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid id")
		return
	}
	c, err := h.usecase.Checklist(r.Context(), id)
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, checklistToResponse(c))
}

// formLocation reads an optional location; latitude and longitude must come together.
func formLocation(r *http.Request) (*domain.Location, error) {
	lat, lon := r.FormValue("latitude"), r.FormValue("longitude")
	if lat == "" && lon == "" {
		return nil, nil
	}
	var (
		loc domain.Location
		err error
	)
	if loc.Latitude, err = strconv.ParseFloat(lat, 64); err != nil {
		return nil, err
	}
	if loc.Longitude, err = strconv.ParseFloat(lon, 64); err != nil {
		return nil, err
	}
	if acc := r.FormValue("accuracy"); acc != "" {
		if loc.Accuracy, err = strconv.ParseFloat(acc, 64); err != nil {
			return nil, err
		}
	}
	return &loc, nil
}
