package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"mobile-home-delivery/internal/apperr"
	"mobile-home-delivery/internal/domain"
	mw "mobile-home-delivery/internal/http/middleware"
	"mobile-home-delivery/internal/logx"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func reqID(ctx context.Context) string {
	if id := middleware.GetReqID(ctx); id != "" {
		return id
	}
	return "-"
}

func writeJSON(logger logx.Logger, w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		logger.Warn("json encode error",
			logx.String("request_id", reqID(r.Context())),
			logx.Err(err),
		)
	}
}

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error string `json:"error"`
}

type rejectedResponse struct {
	Error    string   `json:"error"`
	Reason   string   `json:"reason"`
	From     string   `json:"from,omitempty"`
	To       string   `json:"to,omitempty"`
	Current  int      `json:"current,omitempty"`
	Required int      `json:"required,omitempty"`
	Missing  []string `json:"missing,omitempty"`
}

func writeError(logger logx.Logger, w http.ResponseWriter, r *http.Request, status int, msg string) {
	logger.Debug("http error",
		logx.String("event", "http_error"),
		logx.String("request_id", reqID(r.Context())),
		logx.Int("status", status),
		logx.String("msg", msg),
	)
	writeJSON(logger, w, r, status, ErrorResponse{Error: msg})
}

// writeServiceError maps service errors to status codes.
func writeServiceError(logger logx.Logger, w http.ResponseWriter, r *http.Request, err error) {
	var te *domain.TransitionError
	switch {
	case errors.As(err, &te):
		writeJSON(logger, w, r, http.StatusUnprocessableEntity, rejectedResponse{
			Error:    "rejected",
			Reason:   string(te.Reason),
			From:     string(te.From),
			To:       string(te.To),
			Current:  te.Current,
			Required: te.Required,
			Missing:  categoryStrings(te.Missing),
		})
	case errors.Is(err, apperr.ErrConfirmationRequired):
		writeError(logger, w, r, http.StatusBadRequest, "confirmation required")
	case errors.Is(err, apperr.ErrInvalid):
		writeError(logger, w, r, http.StatusBadRequest, "invalid input")
	case errors.Is(err, apperr.ErrNotFound):
		writeError(logger, w, r, http.StatusNotFound, "not found")
	case errors.Is(err, apperr.ErrConflict):
		writeError(logger, w, r, http.StatusConflict, "conflict")
	case errors.Is(err, apperr.ErrForbidden):
		writeError(logger, w, r, http.StatusForbidden, "forbidden")
	case errors.Is(err, apperr.ErrRejected):
		writeError(logger, w, r, http.StatusUnprocessableEntity, "rejected")
	case errors.Is(err, context.DeadlineExceeded):
		logger.Error("request timed out",
			logx.String("request_id", reqID(r.Context())),
			logx.Err(err),
		)
		writeError(logger, w, r, http.StatusServiceUnavailable, "timeout")
	default:
		logger.Error("internal error",
			logx.String("event", "http_internal_error"),
			logx.String("request_id", reqID(r.Context())),
			logx.String("path", r.URL.Path),
			logx.Err(err),
		)
		writeError(logger, w, r, http.StatusInternalServerError, "internal error")
	}
}

const (
	bodyLimit = 1 << 20
)

// decodeJSON reads exactly one JSON value into dst and validates it.
func decodeJSON[T any](logger logx.Logger, w http.ResponseWriter, r *http.Request, dst *T) bool {
	r.Body = http.MaxBytesReader(w, r.Body, bodyLimit)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		writeError(logger, w, r, http.StatusBadRequest, "invalid json")
		return false
	}
	if err := dec.Decode(new(struct{})); err != io.EOF {
		writeError(logger, w, r, http.StatusBadRequest, "invalid json: trailing data")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			writeError(logger, w, r, http.StatusBadRequest, "invalid field: "+verrs[0].Field())
			return false
		}
		writeError(logger, w, r, http.StatusBadRequest, "invalid input")
		return false
	}
	return true
}

func idFromURL(r *http.Request, name string) (int64, error) {
	idStr := chi.URLParam(r, name)
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid id")
	}
	return id, nil
}

// actorID returns the caller id set by the identity middleware, or writes 401.
func actorID(logger logx.Logger, w http.ResponseWriter, r *http.Request) (int64, bool) {
	a, ok := mw.ActorFrom(r.Context())
	if !ok || a.ID <= 0 {
		writeError(logger, w, r, http.StatusUnauthorized, "driver identity required")
		return 0, false
	}
	return a.ID, true
}

// pathAndActor parses {id} and the caller; on failure the response is already written.
func pathAndActor(logger logx.Logger, w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	id, err := idFromURL(r, "id")
	if err != nil {
		writeError(logger, w, r, http.StatusBadRequest, "invalid id")
		return 0, 0, false
	}
	actor, ok := actorID(logger, w, r)
	if !ok {
		return 0, 0, false
	}
	return id, actor, true
}
