package server

import (
	"captioncast/internal/errs"
	"captioncast/internal/translate"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Error             string `json:"error"`
	Code              string `json:"code"`
	QueueLength       int    `json:"queueLength,omitempty"`
	RequiredThreshold int    `json:"requiredThreshold,omitempty"`
	Remaining         int    `json:"remaining,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	body := errorBody{Error: err.Error(), Code: code}
	var te *errs.TransitionError
	if errors.As(err, &te) {
		body.QueueLength = te.QueueLength
		body.RequiredThreshold = te.RequiredThreshold
		body.Remaining = te.Remaining()
	}
	if status >= http.StatusInternalServerError {
		s.Log.Error().Err(err).Msg("request failed")
	}
	writeJSON(w, status, body)
}

// classify maps an error to an HTTP status and a stable code shared with the
// WebSocket protocol.
func classify(err error) (int, string) {
	var verrs validator.ValidationErrors
	switch {
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, errs.ErrUnauthorized):
		return http.StatusForbidden, "unauthorized"
	case errors.Is(err, errs.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, errs.ErrDuplicateID):
		return http.StatusConflict, "duplicate_id"
	case errors.Is(err, errs.ErrAlreadyJoined):
		return http.StatusConflict, "already_joined"
	case errors.Is(err, errs.ErrEmpty):
		return http.StatusConflict, "empty"
	case errors.Is(err, translate.ErrDisabled), errors.Is(err, translate.ErrNoProvider), errors.Is(err, errNoTranslation):
		return http.StatusConflict, "translation_unavailable"
	case errors.Is(err, errs.ErrInvalidID):
		return http.StatusBadRequest, "invalid_id"
	case errors.Is(err, errs.ErrInvalidMode):
		return http.StatusBadRequest, "invalid_mode"
	case errors.Is(err, translate.ErrUnsupportedTarget), errors.Is(err, translate.ErrInvalidSource):
		return http.StatusBadRequest, "unsupported_language"
	case errors.As(err, &verrs), errors.Is(err, errBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, errNoDatabase):
		return http.StatusServiceUnavailable, "unavailable"
	}
	return http.StatusInternalServerError, "internal"
}

var (
	errBadRequest    = errors.New("bad request")
	errNoTranslation = errors.New("translation service not configured")
)

// decode reads a JSON body into v and validates it. An empty body decodes
// as an empty object.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return validate.Struct(v)
}
