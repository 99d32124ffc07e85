package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

const contentTypeJSON = "application/json; charset=utf-8"

// internalError is written when a response body cannot be encoded.
var internalError = []byte(`{"error":"internal error"}` + "\n")

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// respond encodes v before writing the status, falling back to a 500 when
// encoding fails.
func (h *Handler) respond(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	body := internalError
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		h.logger.Error("encoding response", slog.String("error", err.Error()))
		status = http.StatusInternalServerError
	} else {
		body = buf.Bytes()
	}
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		h.logger.Debug("writing response", slog.String("error", err.Error()))
	}
}

func (h *Handler) badRequest(w http.ResponseWriter, format string, args ...any) {
	h.respond(w, http.StatusBadRequest, ErrorResponse{Error: fmt.Sprintf(format, args...)})
}
