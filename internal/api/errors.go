package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/featureboard/featureboard/internal/lanes"
	"github.com/featureboard/featureboard/internal/storage"
)

// jsonErrorResponse encodes a structured error payload for board clients.
type jsonErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// WriteJSONError writes an error response encoded as JSON with the given status.
func WriteJSONError(w http.ResponseWriter, status int, message, details string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")

	payload := jsonErrorResponse{
		Error: strings.TrimSpace(message),
	}
	if detail := strings.TrimSpace(details); detail != "" {
		payload.Details = detail
	}

	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeEngineError maps engine and storage errors onto HTTP responses.
// validationStatus is the status used for *lanes.ValidationError, which is
// 422 for create and update bodies and 400 everywhere else.
func writeEngineError(w http.ResponseWriter, err error, validationStatus int) {
	var notFound *lanes.NotFoundError
	var invalid *lanes.ValidationError

	switch {
	case errors.As(err, &notFound):
		WriteJSONError(w, http.StatusNotFound, sentence(notFound.Error()), "")
	case errors.Is(err, storage.ErrNotFound):
		WriteJSONError(w, http.StatusNotFound, "Feature not found", "")
	case errors.As(err, &invalid):
		msg := invalid.Message
		if invalid.Field != "" {
			msg = invalid.Field + " " + invalid.Message
		}
		WriteJSONError(w, validationStatus, sentence(msg), "")
	case errors.Is(err, lanes.ErrLaneMismatch):
		WriteJSONError(w, http.StatusBadRequest, "Features must be in the same lane", "")
	case errors.Is(err, lanes.ErrEdgeOfLane):
		WriteJSONError(w, http.StatusBadRequest, sentence(err.Error()), "")
	case errors.Is(err, lanes.ErrAlreadyInProgress), errors.Is(err, lanes.ErrAlreadyPassing):
		WriteJSONError(w, http.StatusConflict, sentence(err.Error()), "")
	case errors.Is(err, storage.ErrConflict):
		WriteJSONError(w, http.StatusConflict, "Feature already exists", err.Error())
	default:
		WriteJSONError(w, http.StatusInternalServerError, "internal error", err.Error())
	}
}

// sentence upper-cases the first letter of an error message for display.
func sentence(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
