package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	tourbook "github.com/eugener/tourbook/internal"
)

const (
	notFoundMessage = "Tour not found"
	internalMessage = "Internal server error"
)

// errorBody is the flat error shape of the catalog API.
type errorBody struct {
	Error   string                `json:"error"`
	Details []tourbook.FieldError `json:"details,omitempty"`
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, tourbook.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, tourbook.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps err to a status and body. Internal failures are logged and
// never echoed to the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	body := errorBody{Error: internalMessage}
	var ve *tourbook.ValidationError
	switch {
	case errors.As(err, &ve):
		body.Error = ve.Message
		body.Details = ve.Details
	case status == http.StatusNotFound:
		body.Error = notFoundMessage
	default:
		slog.LogAttrs(r.Context(), slog.LevelError, "request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
			slog.String("request_id", tourbook.RequestIDFromContext(r.Context())),
		)
	}
	writeJSON(w, status, body)
}

// jsonCT is a pre-allocated header value slice; direct map assignment skips
// the []string{v} alloc that Header.Set makes.
var jsonCT = []string{"application/json"}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header()["Content-Type"] = jsonCT
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeBody(w http.ResponseWriter, status int, body []byte) {
	w.Header()["Content-Type"] = jsonCT
	w.WriteHeader(status)
	w.Write(body)
}
