package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/nystagmus.report/internal/calibration"
	"github.com/banshee-data/nystagmus.report/internal/recording"
)

// CalibrationRun is the persisted record of one calibration of a recording.
type CalibrationRun struct {
	ID           string               `json:"calibration_id"`
	RecordingID  string               `json:"recording_id"`
	Name         string               `json:"name"`
	Spec         calibration.Spec     `json:"spec"`
	TrialCount   int                  `json:"trial_count"`
	FailureCount int                  `json:"failure_count"`
	Failures     []CalibrationFailure `json:"failures,omitempty"`
	CreatedAt    time.Time            `json:"created_at"`
}

// CalibrationFailure is one persisted (trial, key) failure.
type CalibrationFailure struct {
	TrialNumber int    `json:"trial_number"`
	Key         string `json:"key"`
	Message     string `json:"message"`
}

// SaveCalibration stores c and its failures.
func (db *DB) SaveCalibration(c *recording.CalibratedRecording) error {
	spec, err := json.Marshal(c.Spec)
	if err != nil {
		return fmt.Errorf("encode calibration spec: %w", err)
	}
	return retryOnBusy(func() error {
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin: %w", err)
		}
		defer tx.Rollback()

		_, err = tx.Exec(`
			INSERT INTO calibrations (
				calibration_id, recording_id, name, spec_json,
				trial_count, failure_count, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			c.ID, c.RecordingID, c.Name, string(spec),
			len(c.Trials), len(c.Failures), c.CreatedAt.UnixNano(),
		)
		if err != nil {
			return fmt.Errorf("insert calibration: %w", err)
		}
		for _, f := range c.Failures {
			_, err = tx.Exec(`
				INSERT INTO calibration_failures (calibration_id, trial_number, key, message)
				VALUES (?, ?, ?, ?)`,
				c.ID, f.TrialNumber, f.Key.String(), f.Err.Error(),
			)
			if err != nil {
				return fmt.Errorf("insert calibration failure: %w", err)
			}
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit calibration: %w", err)
		}
		return nil
	})
}

const calibrationColumns = `
	calibration_id, recording_id, name, spec_json,
	trial_count, failure_count, created_at`

func scanCalibration(row scanner) (*CalibrationRun, error) {
	var (
		c         CalibrationRun
		spec      string
		createdAt int64
	)
	if err := row.Scan(&c.ID, &c.RecordingID, &c.Name, &spec, &c.TrialCount, &c.FailureCount, &createdAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(spec), &c.Spec); err != nil {
		return nil, fmt.Errorf("calibration %s: %w", c.ID, err)
	}
	c.CreatedAt = time.Unix(0, createdAt).UTC()
	return &c, nil
}

// GetCalibration returns calibration id with its failures.
func (db *DB) GetCalibration(id string) (*CalibrationRun, error) {
	c, err := scanCalibration(db.QueryRow(`SELECT `+calibrationColumns+` FROM calibrations WHERE calibration_id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("calibration %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get calibration: %w", err)
	}

	rows, err := db.Query(`
		SELECT trial_number, key, message
		FROM calibration_failures
		WHERE calibration_id = ?
		ORDER BY rowid`, id)
	if err != nil {
		return nil, fmt.Errorf("query calibration failures: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var f CalibrationFailure
		if err := rows.Scan(&f.TrialNumber, &f.Key, &f.Message); err != nil {
			return nil, fmt.Errorf("scan calibration failure: %w", err)
		}
		c.Failures = append(c.Failures, f)
	}
	return c, rows.Err()
}

// ListCalibrations returns the calibrations of a recording, oldest first.
// An empty recordingID lists every calibration.
func (db *DB) ListCalibrations(recordingID string) ([]*CalibrationRun, error) {
	query := `SELECT ` + calibrationColumns + ` FROM calibrations`
	var args []any
	if recordingID != "" {
		query += ` WHERE recording_id = ?`
		args = append(args, recordingID)
	}
	query += ` ORDER BY created_at, rowid`

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query calibrations: %w", err)
	}
	defer rows.Close()

	var out []*CalibrationRun
	for rows.Next() {
		c, err := scanCalibration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan calibration row: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
