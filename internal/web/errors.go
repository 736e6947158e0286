package web

// errors.go renders the API error envelope. Every error response has the
// shape {"error": {"code", "message", "details?"}} so clients can branch on
// the code without parsing prose. Codes with dedicated meaning get their own
// name (VALIDATION_ERROR, UNSUPPORTED_FILE_TYPE, NO_OUTPUT); everything else
// falls back to HTTP_<status>.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hey-granth/databridge/internal/engine"
	"github.com/hey-granth/databridge/internal/logging"
	"github.com/hey-granth/databridge/internal/pipeline"
	"github.com/hey-granth/databridge/internal/store"
)

// Validation messages differ by entry point: the create endpoint rejects a
// payload, the run endpoint rejects request parameters.
const (
	msgInvalidPayload = "Request payload failed validation."
	msgInvalidParams  = "Invalid request parameters."
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

// respondJSON writes v as the response body with the given status.
func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Headers are already written; nothing left to do but record it.
		slog.Error("encode response", "error", err)
	}
}

// respondError writes the error envelope.
func respondError(w http.ResponseWriter, status int, code, message string, details any) {
	respondJSON(w, status, errorEnvelope{Error: errorBody{Code: code, Message: message, Details: details}})
}

// respondServiceError translates errors from the pipeline service into the
// envelope. validationMessage is the top-level message used when the error
// carries field details.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error, validationMessage string) {
	var vErr *pipeline.ValidationError
	var formatErr *engine.UnsupportedFormatError
	switch {
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, "HTTP_404", "Not found.", nil)
	case errors.Is(err, store.ErrNameTaken):
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", validationMessage,
			[]engine.FieldError{{Field: "name", Message: "A pipeline with this name already exists."}})
	case errors.Is(err, pipeline.ErrNoArtifact):
		respondError(w, http.StatusNotFound, "NO_OUTPUT", "This run has no output file.", nil)
	case errors.Is(err, pipeline.ErrTooManyRuns):
		w.Header().Set("Retry-After", "30")
		respondError(w, http.StatusTooManyRequests, "HTTP_429", "Too many concurrent runs, please try again later.", nil)
	case errors.As(err, &vErr):
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", validationMessage, vErr.Fields)
	case errors.As(err, &formatErr):
		respondError(w, http.StatusBadRequest, "UNSUPPORTED_FILE_TYPE", formatErr.Error(), nil)
	default:
		logging.FromContext(r.Context()).Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		respondError(w, http.StatusInternalServerError, "HTTP_500", "A server error occurred.", nil)
	}
}
