package api

import (
	"net/http"

	"github.com/banshee-data/nystagmus.report/internal/db"
)

// storedRecording is a persisted recording with its trial table and the
// issues found while segmenting it.
type storedRecording struct {
	*db.RecordingSummary
	Trials []db.TrialSummary      `json:"trials"`
	Issues []db.SegmentationIssue `json:"issues"`
}

func (s *Server) listStoredRecordings(w http.ResponseWriter, r *http.Request) {
	recs, err := s.db.ListRecordings()
	if err != nil {
		writeError(w, err)
		return
	}
	if recs == nil {
		recs = []*db.RecordingSummary{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) showStoredRecording(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rec, err := s.db.GetRecording(id)
	if err != nil {
		writeError(w, err)
		return
	}
	out := storedRecording{RecordingSummary: rec}
	if out.Trials, err = s.db.ListTrials(id); err != nil {
		writeError(w, err)
		return
	}
	if out.Issues, err = s.db.ListSegmentationIssues(id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// listStoredCalibrations lists persisted calibration runs, optionally only
// those of ?recording_id=.
func (s *Server) listStoredCalibrations(w http.ResponseWriter, r *http.Request) {
	cals, err := s.db.ListCalibrations(r.URL.Query().Get("recording_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if cals == nil {
		cals = []*db.CalibrationRun{}
	}
	writeJSON(w, http.StatusOK, cals)
}

func (s *Server) showStoredCalibration(w http.ResponseWriter, r *http.Request) {
	cal, err := s.db.GetCalibration(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cal)
}
