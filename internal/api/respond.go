package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/banshee-data/nystagmus.report/internal/db"
	"github.com/banshee-data/nystagmus.report/internal/edf"
	"github.com/banshee-data/nystagmus.report/internal/monitoring"
	"github.com/banshee-data/nystagmus.report/internal/recording"
	"github.com/banshee-data/nystagmus.report/internal/trial"
)

// writeJSON writes data as a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		monitoring.Opsf("failed to encode json response: %v", err)
	}
}

// writeJSONError writes {"error": msg} with the given status code.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSONError(w, http.StatusBadRequest, msg)
}

// writeError maps err to a status code and writes it.
func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		monitoring.Opsf("[api] %v", err)
	}
	writeJSONError(w, status, err.Error())
}

func statusFor(err error) int {
	var (
		order   *edf.OrderError
		tooBig  *http.MaxBytesError
		syntax  *json.SyntaxError
		typeErr *json.UnmarshalTypeError
	)
	switch {
	case errors.Is(err, recording.ErrNotFound), errors.Is(err, db.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &tooBig), errors.Is(err, edf.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &syntax), errors.As(err, &typeErr):
		return http.StatusBadRequest
	case errors.Is(err, trial.ErrEmptyRecordingStream), errors.As(err, &order):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
