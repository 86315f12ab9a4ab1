package api

import (
	"math"
	"strconv"
	"time"

	"github.com/banshee-data/nystagmus.report/internal/calibration"
	"github.com/banshee-data/nystagmus.report/internal/edf"
	"github.com/banshee-data/nystagmus.report/internal/recording"
	"github.com/banshee-data/nystagmus.report/internal/trial"
)

// series marshals as a JSON array with null in place of NaN.
type series []float64

func (s series) MarshalJSON() ([]byte, error) {
	buf := make([]byte, 0, 2+len(s)*8)
	buf = append(buf, '[')
	for i, v := range s {
		if i > 0 {
			buf = append(buf, ',')
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			buf = append(buf, "null"...)
			continue
		}
		buf = strconv.AppendFloat(buf, v, 'g', -1, 64)
	}
	return append(buf, ']'), nil
}

type trialSummary struct {
	Number      int            `json:"trialNumber"`
	Boundary    trial.Boundary `json:"boundary"`
	EyeTracked  edf.Eye        `json:"eyeTracked"`
	StartTime   float64        `json:"startTime"`
	EndTime     float64        `json:"endTime"`
	SampleRows  int            `json:"sampleRows"`
	MessageRows int            `json:"messageRows"`
	EventRows   int            `json:"eventRows"`
}

func newTrialSummary(t *trial.Trial) trialSummary {
	return trialSummary{
		Number:      t.Number,
		Boundary:    t.Boundary,
		EyeTracked:  t.EyeTracked,
		StartTime:   t.StartTime,
		EndTime:     t.EndTime,
		SampleRows:  t.Samples.Len(),
		MessageRows: len(t.Messages),
		EventRows:   len(t.Events),
	}
}

type recordingView struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	CreatedAt  time.Time        `json:"createdAt"`
	Counts     edf.Counts       `json:"counts"`
	Boundaries []trial.Boundary `json:"boundaries"`
	Trials     []trialSummary   `json:"trials"`
	Warnings   []trial.Warning  `json:"warnings"`
	Failures   []string         `json:"failures"`
}

func newRecordingView(r *recording.Recording) recordingView {
	v := recordingView{
		ID:         r.ID,
		Name:       r.Name,
		CreatedAt:  r.CreatedAt,
		Counts:     r.Counts,
		Boundaries: r.Boundaries,
		Trials:     make([]trialSummary, len(r.Trials)),
		Warnings:   r.Warnings,
		Failures:   make([]string, len(r.Failures)),
	}
	if v.Boundaries == nil {
		v.Boundaries = []trial.Boundary{}
	}
	if v.Warnings == nil {
		v.Warnings = []trial.Warning{}
	}
	for i, t := range r.Trials {
		v.Trials[i] = newTrialSummary(t)
	}
	for i, f := range r.Failures {
		v.Failures[i] = f.Error()
	}
	return v
}

type recordingListItem struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	CreatedAt    time.Time `json:"createdAt"`
	TrialCount   int       `json:"trialCount"`
	WarningCount int       `json:"warningCount"`
	FailureCount int       `json:"failureCount"`
}

// trialSeries is what the presentation layer plots for one trial: time
// relative to the trial's first sample and the gaze position channels.
type trialSeries struct {
	trialSummary
	Time     series            `json:"time"`
	Channels map[string]series `json:"channels"`
}

func newTrialSeries(t *trial.Trial) trialSeries {
	rel := make(series, t.Samples.Len())
	for i, v := range t.Samples.Time {
		rel[i] = v - t.StartTime
	}
	channels := make(map[string]series)
	for _, k := range calibration.AllKeys {
		if vals, ok := t.Samples.Column(k.Column()); ok {
			channels[k.Column()] = series(vals)
		}
	}
	return trialSeries{trialSummary: newTrialSummary(t), Time: rel, Channels: channels}
}

type calibratedTrialSummary struct {
	Number  int      `json:"trialNumber"`
	Rows    int      `json:"rows"`
	Columns []string `json:"columns"`
}

type calibratedView struct {
	ID          string                   `json:"id"`
	RecordingID string                   `json:"recordingId"`
	Name        string                   `json:"name"`
	CreatedAt   time.Time                `json:"createdAt"`
	Spec        calibration.Spec         `json:"spec"`
	Trials      []calibratedTrialSummary `json:"trials"`
	Failures    []calibration.Failure    `json:"failures"`
}

func newCalibratedView(c *recording.CalibratedRecording) calibratedView {
	v := calibratedView{
		ID:          c.ID,
		RecordingID: c.RecordingID,
		Name:        c.Name,
		CreatedAt:   c.CreatedAt,
		Spec:        c.Spec,
		Trials:      make([]calibratedTrialSummary, len(c.Trials)),
		Failures:    c.Failures,
	}
	if v.Failures == nil {
		v.Failures = []calibration.Failure{}
	}
	for i, t := range c.Trials {
		v.Trials[i] = calibratedTrialSummary{Number: t.TrialNumber, Rows: t.Len(), Columns: t.Names()}
	}
	return v
}

type calibratedSeries struct {
	Number   int               `json:"trialNumber"`
	Channels map[string]series `json:"channels"`
}

func newCalibratedSeries(t *calibration.CalibratedTrial) calibratedSeries {
	channels := make(map[string]series, len(t.Columns))
	for _, col := range t.Columns {
		channels[col.Name] = series(col.Values)
	}
	return calibratedSeries{Number: t.TrialNumber, Channels: channels}
}
