package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/nystagmus.report/internal/recording"
)

// RecordingSummary is the persisted summary of a segmented recording.
type RecordingSummary struct {
	ID               string    `json:"recording_id"`
	Name             string    `json:"name"`
	TrialCount       int       `json:"trial_count"`
	FailedTrialCount int       `json:"failed_trial_count"`
	RecordingRows    int       `json:"recording_rows"`
	MessageRows      int       `json:"message_rows"`
	SampleRows       int       `json:"sample_rows"`
	EventRows        int       `json:"event_rows"`
	IOEventRows      int       `json:"io_event_rows"`
	CreatedAt        time.Time `json:"created_at"`
}

// TrialSummary is the persisted boundary and shape of one trial.
type TrialSummary struct {
	RecordingID string  `json:"recording_id"`
	TrialNumber int     `json:"trial_number"`
	StartIndex  int64   `json:"start_index"`
	EndIndex    int64   `json:"end_index"`
	StartTime   float64 `json:"start_time"`
	EndTime     float64 `json:"end_time"`
	EyeTracked  string  `json:"eye_tracked"`
	SampleRows  int     `json:"sample_rows"`
	MessageRows int     `json:"message_rows"`
	EventRows   int     `json:"event_rows"`
	IOEventRows int     `json:"io_event_rows"`
}

// Segmentation issue kinds.
const (
	IssueWarning = "warning"
	IssueFailure = "failure"
)

// SegmentationIssue is a dropped START/END marker or a trial that failed to
// build.
type SegmentationIssue struct {
	Kind         string `json:"kind"`
	TrialNumber  *int   `json:"trial_number,omitempty"`
	ElementIndex *int64 `json:"element_index,omitempty"`
	Message      string `json:"message"`
}

// SaveRecording stores the summary, trials and segmentation issues of r in
// one transaction.
func (db *DB) SaveRecording(r *recording.Recording) error {
	return retryOnBusy(func() error {
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin: %w", err)
		}
		defer tx.Rollback()

		_, err = tx.Exec(`
			INSERT INTO recordings (
				recording_id, name, trial_count, failed_trial_count,
				recording_rows, message_rows, sample_rows, event_rows, io_event_rows,
				created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID, r.Name, len(r.Trials), len(r.Failures),
			r.Counts.Recordings, r.Counts.Messages, r.Counts.Samples, r.Counts.Events, r.Counts.IOEvents,
			r.CreatedAt.UnixNano(),
		)
		if err != nil {
			return fmt.Errorf("insert recording: %w", err)
		}

		for _, t := range r.Trials {
			_, err = tx.Exec(`
				INSERT INTO trials (
					recording_id, trial_number, start_index, end_index,
					start_time, end_time, eye_tracked,
					sample_rows, message_rows, event_rows, io_event_rows
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				r.ID, t.Number, t.Boundary.Start, t.Boundary.End,
				t.StartTime, t.EndTime, string(t.EyeTracked),
				t.Samples.Len(), len(t.Messages), len(t.Events), len(t.IOEvents),
			)
			if err != nil {
				return fmt.Errorf("insert trial %d: %w", t.Number, err)
			}
		}

		for _, w := range r.Warnings {
			_, err = tx.Exec(`
				INSERT INTO segmentation_issues (recording_id, kind, element_index, message)
				VALUES (?, ?, ?, ?)`,
				r.ID, IssueWarning, w.OriginIndex, w.String(),
			)
			if err != nil {
				return fmt.Errorf("insert segmentation warning: %w", err)
			}
		}
		for _, f := range r.Failures {
			_, err = tx.Exec(`
				INSERT INTO segmentation_issues (recording_id, kind, trial_number, message)
				VALUES (?, ?, ?, ?)`,
				r.ID, IssueFailure, f.TrialNumber, f.Error(),
			)
			if err != nil {
				return fmt.Errorf("insert segmentation failure: %w", err)
			}
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit recording: %w", err)
		}
		return nil
	})
}

// DeleteRecording removes a recording and, by cascade, its trials and
// segmentation issues. Calibrations of the recording are kept.
func (db *DB) DeleteRecording(id string) error {
	return retryOnBusy(func() error {
		result, err := db.Exec(`DELETE FROM recordings WHERE recording_id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete recording: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("recording %s: %w", id, ErrNotFound)
		}
		return nil
	})
}

const recordingColumns = `
	recording_id, name, trial_count, failed_trial_count,
	recording_rows, message_rows, sample_rows, event_rows, io_event_rows,
	created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecording(row scanner) (*RecordingSummary, error) {
	var r RecordingSummary
	var createdAt int64
	err := row.Scan(
		&r.ID, &r.Name, &r.TrialCount, &r.FailedTrialCount,
		&r.RecordingRows, &r.MessageRows, &r.SampleRows, &r.EventRows, &r.IOEventRows,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}
	r.CreatedAt = time.Unix(0, createdAt).UTC()
	return &r, nil
}

// GetRecording returns the summary of recording id.
func (db *DB) GetRecording(id string) (*RecordingSummary, error) {
	r, err := scanRecording(db.QueryRow(`SELECT `+recordingColumns+` FROM recordings WHERE recording_id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("recording %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get recording: %w", err)
	}
	return r, nil
}

// ListRecordings returns every recording, oldest first.
func (db *DB) ListRecordings() ([]*RecordingSummary, error) {
	rows, err := db.Query(`SELECT ` + recordingColumns + ` FROM recordings ORDER BY created_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("query recordings: %w", err)
	}
	defer rows.Close()

	var out []*RecordingSummary
	for rows.Next() {
		r, err := scanRecording(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recording row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListTrials returns the trial summaries of a recording in trial order.
func (db *DB) ListTrials(recordingID string) ([]TrialSummary, error) {
	rows, err := db.Query(`
		SELECT recording_id, trial_number, start_index, end_index,
		       start_time, end_time, eye_tracked,
		       sample_rows, message_rows, event_rows, io_event_rows
		FROM trials
		WHERE recording_id = ?
		ORDER BY trial_number`, recordingID)
	if err != nil {
		return nil, fmt.Errorf("query trials: %w", err)
	}
	defer rows.Close()

	var out []TrialSummary
	for rows.Next() {
		var t TrialSummary
		if err := rows.Scan(
			&t.RecordingID, &t.TrialNumber, &t.StartIndex, &t.EndIndex,
			&t.StartTime, &t.EndTime, &t.EyeTracked,
			&t.SampleRows, &t.MessageRows, &t.EventRows, &t.IOEventRows,
		); err != nil {
			return nil, fmt.Errorf("scan trial row: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListSegmentationIssues returns the warnings and failures recorded when a
// recording was segmented.
func (db *DB) ListSegmentationIssues(recordingID string) ([]SegmentationIssue, error) {
	rows, err := db.Query(`
		SELECT kind, trial_number, element_index, message
		FROM segmentation_issues
		WHERE recording_id = ?
		ORDER BY rowid`, recordingID)
	if err != nil {
		return nil, fmt.Errorf("query segmentation issues: %w", err)
	}
	defer rows.Close()

	var out []SegmentationIssue
	for rows.Next() {
		var (
			is    SegmentationIssue
			trial sql.NullInt64
			elem  sql.NullInt64
		)
		if err := rows.Scan(&is.Kind, &trial, &elem, &is.Message); err != nil {
			return nil, fmt.Errorf("scan segmentation issue: %w", err)
		}
		if trial.Valid {
			n := int(trial.Int64)
			is.TrialNumber = &n
		}
		if elem.Valid {
			is.ElementIndex = &elem.Int64
		}
		out = append(out, is)
	}
	return out, rows.Err()
}
