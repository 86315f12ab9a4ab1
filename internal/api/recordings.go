package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/banshee-data/nystagmus.report/internal/calibration"
	"github.com/banshee-data/nystagmus.report/internal/edf"
)

// uploadRecording segments a decoded dump posted as the request body.
// The recording is named by ?name=, usually the source file's stem.
func (s *Server) uploadRecording(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		badRequest(w, "missing 'name' parameter")
		return
	}
	name = edf.Stem(name)

	streams, err := edf.DecodeStreams(http.MaxBytesReader(w, r.Body, s.maxUpload), s.maxUpload)
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) || errors.Is(err, edf.ErrTooLarge) {
			writeError(w, err)
			return
		}
		badRequest(w, err.Error())
		return
	}

	rec, err := s.registry.Add(name, streams)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newRecordingView(rec))
}

func (s *Server) listRecordings(w http.ResponseWriter, r *http.Request) {
	recs := s.registry.List()
	out := make([]recordingListItem, len(recs))
	for i, rec := range recs {
		out[i] = recordingListItem{
			ID:           rec.ID,
			Name:         rec.Name,
			CreatedAt:    rec.CreatedAt,
			TrialCount:   len(rec.Trials),
			WarningCount: len(rec.Warnings),
			FailureCount: len(rec.Failures),
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) showRecording(w http.ResponseWriter, r *http.Request) {
	rec, err := s.registry.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newRecordingView(rec))
}

func (s *Server) deleteRecording(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.Remove(r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) showTrial(w http.ResponseWriter, r *http.Request) {
	rec, err := s.registry.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	n, ok := trialNumber(w, r)
	if !ok {
		return
	}
	t := rec.Trial(n)
	if t == nil {
		writeJSONError(w, http.StatusNotFound, fmt.Sprintf("%s has no trial %d", rec.Name, n))
		return
	}
	writeJSON(w, http.StatusOK, newTrialSeries(t))
}

// calibrateRecording applies the calibration spec in the request body to
// every trial of a recording.
func (s *Server) calibrateRecording(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.registry.Get(id); err != nil {
		writeError(w, err)
		return
	}

	var spec calibration.Spec
	if err := decodeBody(w, r, &spec, 1<<20); err != nil {
		return
	}
	if spec.Len() == 0 {
		badRequest(w, "calibration spec enables no keys")
		return
	}

	cal, err := s.registry.Calibrate(id, spec)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newCalibratedView(cal))
}

func trialNumber(w http.ResponseWriter, r *http.Request) (int, bool) {
	n, err := strconv.Atoi(r.PathValue("n"))
	if err != nil || n < 0 {
		badRequest(w, fmt.Sprintf("invalid trial number %q", r.PathValue("n")))
		return 0, false
	}
	return n, true
}
