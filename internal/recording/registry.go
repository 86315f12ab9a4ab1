// Package recording keeps the recordings a session has loaded and the
// calibrated recordings derived from them.
package recording

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/nystagmus.report/internal/calibration"
	"github.com/banshee-data/nystagmus.report/internal/edf"
	"github.com/banshee-data/nystagmus.report/internal/monitoring"
	"github.com/banshee-data/nystagmus.report/internal/timeutil"
	"github.com/banshee-data/nystagmus.report/internal/trial"
)

// ErrNotFound is returned for an unknown recording or calibrated recording.
var ErrNotFound = errors.New("not found")

// Recording is one segmented upload.
type Recording struct {
	ID        string
	Name      string
	CreatedAt time.Time
	Counts    edf.Counts

	Trials     []*trial.Trial
	Boundaries []trial.Boundary
	Warnings   []trial.Warning
	Failures   []*trial.MalformedTrialError
}

// Trial returns the trial numbered n, or nil.
func (r *Recording) Trial(n int) *trial.Trial {
	for _, t := range r.Trials {
		if t.Number == n {
			return t
		}
	}
	return nil
}

// CalibratedRecording is a recording's trials after one calibration run. It
// keeps the spec it was built with.
type CalibratedRecording struct {
	ID          string
	RecordingID string
	Name        string
	CreatedAt   time.Time
	Spec        calibration.Spec
	Trials      []*calibration.CalibratedTrial
	Failures    []calibration.Failure
}

// CalibratedName is the display name of a calibration of name.
func CalibratedName(name string) string { return name + " - Calibrated" }

// Store persists registry changes. Implementations must be safe for
// concurrent use.
type Store interface {
	SaveRecording(r *Recording) error
	DeleteRecording(id string) error
	SaveCalibration(c *CalibratedRecording) error
}

// Config configures a Registry. Zero fields take defaults.
type Config struct {
	Segmenter        trial.Segmenter
	CalibrateWorkers int
	Clock            timeutil.Clock
	Store            Store
}

// Registry holds recordings and calibrated recordings in insertion order.
// It is safe for concurrent use.
type Registry struct {
	segmenter trial.Segmenter
	workers   int
	clock     timeutil.Clock
	store     Store

	mu         sync.RWMutex
	recordings map[string]*Recording
	order      []string
	calibrated map[string]*CalibratedRecording
	calOrder   []string
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg Config) *Registry {
	r := &Registry{
		segmenter:  cfg.Segmenter,
		workers:    cfg.CalibrateWorkers,
		clock:      cfg.Clock,
		store:      cfg.Store,
		recordings: make(map[string]*Recording),
		calibrated: make(map[string]*CalibratedRecording),
	}
	if r.segmenter == (trial.Segmenter{}) {
		r.segmenter = trial.DefaultSegmenter
	}
	if r.clock == nil {
		r.clock = timeutil.RealClock{}
	}
	return r
}

// Add segments streams and registers the result under name. Trials that fail
// to build are recorded on the Recording; only an unusable stream is an
// error.
func (g *Registry) Add(name string, streams *edf.Streams) (*Recording, error) {
	res, err := g.segmenter.Segment(name, streams)
	if err != nil {
		return nil, err
	}
	rec := &Recording{
		ID:         uuid.New().String(),
		Name:       name,
		CreatedAt:  g.clock.Now(),
		Counts:     streams.Counts(),
		Trials:     res.Trials,
		Boundaries: res.Boundaries,
		Warnings:   res.Warnings,
		Failures:   res.Failures,
	}
	if g.store != nil {
		if err := g.store.SaveRecording(rec); err != nil {
			return nil, fmt.Errorf("save recording %s: %w", name, err)
		}
	}

	g.mu.Lock()
	g.recordings[rec.ID] = rec
	g.order = append(g.order, rec.ID)
	g.mu.Unlock()

	monitoring.Opsf("[recording] added %s (%s): %d trials, %d warnings, %d failed trials",
		rec.Name, rec.ID, len(rec.Trials), len(rec.Warnings), len(rec.Failures))
	return rec, nil
}

// Get returns the recording with id.
func (g *Registry) Get(id string) (*Recording, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	rec, ok := g.recordings[id]
	if !ok {
		return nil, fmt.Errorf("recording %s: %w", id, ErrNotFound)
	}
	return rec, nil
}

// List returns every recording in the order it was added.
func (g *Registry) List() []*Recording {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Recording, len(g.order))
	for i, id := range g.order {
		out[i] = g.recordings[id]
	}
	return out
}

// Remove discards a recording and its trials. Calibrated recordings already
// derived from it are kept.
func (g *Registry) Remove(id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	rec, ok := g.recordings[id]
	if !ok {
		return fmt.Errorf("recording %s: %w", id, ErrNotFound)
	}
	if g.store != nil {
		if err := g.store.DeleteRecording(id); err != nil {
			return fmt.Errorf("delete recording %s: %w", id, err)
		}
	}
	delete(g.recordings, id)
	g.order = removeID(g.order, id)
	monitoring.Opsf("[recording] removed %s (%s)", rec.Name, id)
	return nil
}

// Calibrate applies spec to every trial of recording id and registers the
// result. Per-trial failures are kept on the CalibratedRecording.
func (g *Registry) Calibrate(id string, spec calibration.Spec) (*CalibratedRecording, error) {
	rec, err := g.Get(id)
	if err != nil {
		return nil, err
	}
	if spec.Len() == 0 {
		return nil, fmt.Errorf("calibrate %s: no keys enabled", rec.Name)
	}

	c := calibration.Calibrator{Recording: rec.Name, Workers: g.workers}
	trials, failures := c.CalibrateRecording(rec.Trials, spec)
	cal := &CalibratedRecording{
		ID:          uuid.New().String(),
		RecordingID: rec.ID,
		Name:        CalibratedName(rec.Name),
		CreatedAt:   g.clock.Now(),
		Spec:        spec,
		Trials:      trials,
		Failures:    failures,
	}
	if g.store != nil {
		if err := g.store.SaveCalibration(cal); err != nil {
			return nil, fmt.Errorf("save calibration of %s: %w", rec.Name, err)
		}
	}

	g.mu.Lock()
	g.calibrated[cal.ID] = cal
	g.calOrder = append(g.calOrder, cal.ID)
	g.mu.Unlock()

	monitoring.Opsf("[recording] calibrated %s with %s: %d trials, %d failures",
		rec.Name, spec, len(cal.Trials), len(cal.Failures))
	return cal, nil
}

// Calibrated returns the calibrated recording with id.
func (g *Registry) Calibrated(id string) (*CalibratedRecording, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	cal, ok := g.calibrated[id]
	if !ok {
		return nil, fmt.Errorf("calibrated recording %s: %w", id, ErrNotFound)
	}
	return cal, nil
}

// ListCalibrated returns every calibrated recording in creation order.
func (g *Registry) ListCalibrated() []*CalibratedRecording {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*CalibratedRecording, len(g.calOrder))
	for i, id := range g.calOrder {
		out[i] = g.calibrated[id]
	}
	return out
}

func removeID(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i:i], ids[i+1:]...)
		}
	}
	return ids
}
