package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/banshee-data/nystagmus.report/internal/calibration"
	"github.com/banshee-data/nystagmus.report/internal/monitoring"
	"github.com/banshee-data/nystagmus.report/internal/security"
)

func (s *Server) listCalibrated(w http.ResponseWriter, r *http.Request) {
	cals := s.registry.ListCalibrated()
	out := make([]calibratedView, len(cals))
	for i, c := range cals {
		out[i] = newCalibratedView(c)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) showCalibrated(w http.ResponseWriter, r *http.Request) {
	cal, err := s.registry.Calibrated(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newCalibratedView(cal))
}

func (s *Server) showCalibratedTrial(w http.ResponseWriter, r *http.Request) {
	cal, err := s.registry.Calibrated(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	n, ok := trialNumber(w, r)
	if !ok {
		return
	}
	for _, t := range cal.Trials {
		if t.TrialNumber == n {
			writeJSON(w, http.StatusOK, newCalibratedSeries(t))
			return
		}
	}
	writeJSONError(w, http.StatusNotFound, fmt.Sprintf("%s has no trial %d", cal.Name, n))
}

func (s *Server) downloadCalibratedCSV(w http.ResponseWriter, r *http.Request) {
	cal, err := s.registry.Calibrated(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.csv", security.SanitizeFilename(cal.Name)))
	if err := calibration.WriteCSV(w, cal.Trials); err != nil {
		monitoring.Opsf("[api] write csv for %s: %v", cal.ID, err)
	}
}

// decodeBody decodes a JSON request body of at most limit bytes into v. On
// failure it has already written the response.
func decodeBody(w http.ResponseWriter, r *http.Request, v any, limit int64) error {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit)).Decode(v)
	if err == nil {
		return nil
	}
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		writeError(w, err)
	} else {
		badRequest(w, fmt.Sprintf("invalid JSON body: %v", err))
	}
	return err
}
