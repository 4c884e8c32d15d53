package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/keycal/keycal/internal/generator"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeFailure maps a failed request to a plain-text 500. Generation
// failures are reported as calendar service errors; everything else as an
// internal error.
func writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	var msg string
	var genErr *generator.GenerationError
	if errors.As(err, &genErr) {
		msg = "Calendar service error: " + genErr.Error()
	} else {
		msg = "Internal server error: " + err.Error()
	}

	slog.Error("request failed", "path", r.URL.Path, "error", err)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusInternalServerError)
	w.Write([]byte(msg))
}
