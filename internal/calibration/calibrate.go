package calibration

import (
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/nystagmus.report/internal/monitoring"
	"github.com/banshee-data/nystagmus.report/internal/trial"
)

// Column is one calibrated channel.
type Column struct {
	Key    Key       `json:"key"`
	Name   string    `json:"name"`
	Values []float64 `json:"-"`
}

// CalibratedTrial holds the calibrated position columns of one trial, one
// per key that calibrated, in slot order. No other columns are carried.
type CalibratedTrial struct {
	TrialNumber int
	Columns     []Column
}

// Column returns the calibrated values for name ("posXLeft").
func (c *CalibratedTrial) Column(name string) ([]float64, bool) {
	for _, col := range c.Columns {
		if col.Name == name {
			return col.Values, true
		}
	}
	return nil, false
}

// Names returns the column names in order.
func (c *CalibratedTrial) Names() []string {
	names := make([]string, len(c.Columns))
	for i, col := range c.Columns {
		names[i] = col.Name
	}
	return names
}

// Len returns the number of rows.
func (c *CalibratedTrial) Len() int {
	if len(c.Columns) == 0 {
		return 0
	}
	return len(c.Columns[0].Values)
}

type line struct {
	slope, intercept float64
	err              error
}

// Calibrator applies one Spec to trials.
type Calibrator struct {
	// Recording names the source recording in MissingChannelError.
	Recording string
	// Workers bounds how many trials are calibrated concurrently. Values
	// below 2 calibrate sequentially.
	Workers int
}

// DefaultCalibrator calibrates sequentially with no recording name.
var DefaultCalibrator = Calibrator{Workers: 1}

func fitSpec(spec Spec) [NumKeys]line {
	var lines [NumKeys]line
	for _, k := range spec.Keys() {
		ref, _ := spec.Get(k)
		s, i, err := FitLinear(ref.Plus10Degs, ref.Minus10Degs)
		lines[k] = line{slope: s, intercept: i, err: err}
	}
	return lines
}

func (c Calibrator) calibrate(t *trial.Trial, keys []Key, lines [NumKeys]line) (*CalibratedTrial, []Failure) {
	out := &CalibratedTrial{TrialNumber: t.Number}
	var failures []Failure
	for _, k := range keys {
		if lines[k].err != nil {
			continue
		}
		raw, ok := t.Samples.Column(k.Column())
		if !ok {
			failures = append(failures, Failure{
				TrialNumber: t.Number,
				Key:         k,
				Err:         &MissingChannelError{Recording: c.Recording, TrialNumber: t.Number, Channel: k.Column()},
			})
			continue
		}
		out.Columns = append(out.Columns, Column{
			Key:    k,
			Name:   k.Column(),
			Values: ApplyLinear(raw, lines[k].slope, lines[k].intercept),
		})
	}
	return out, failures
}

// CalibrateTrial calibrates every key enabled in spec on t. Keys are
// independent: a degenerate reference pair or a missing channel fails only
// its own key. The returned trial holds the columns that succeeded; the error
// joins the failures. The trial is nil only when every enabled key failed.
func (c Calibrator) CalibrateTrial(t *trial.Trial, spec Spec) (*CalibratedTrial, error) {
	lines := fitSpec(spec)
	keys := spec.Keys()

	var errs []error
	for _, k := range keys {
		if lines[k].err != nil {
			errs = append(errs, Failure{TrialNumber: t.Number, Key: k, Err: lines[k].err})
		}
	}
	out, failures := c.calibrate(t, keys, lines)
	for _, f := range failures {
		errs = append(errs, f)
	}
	if len(keys) > 0 && len(out.Columns) == 0 {
		return nil, errors.Join(errs...)
	}
	return out, errors.Join(errs...)
}

// CalibrateRecording applies spec to every trial, preserving order. Each
// reference pair is fitted once; a degenerate pair is reported as a single
// Failure with TrialNumber AllTrials. A missing channel fails that trial's
// key only. A trial is left out of the result only when none of its keys
// calibrated.
func (c Calibrator) CalibrateRecording(trials []*trial.Trial, spec Spec) ([]*CalibratedTrial, []Failure) {
	lines := fitSpec(spec)
	keys := spec.Keys()

	var failures []Failure
	for _, k := range keys {
		if err := lines[k].err; err != nil {
			f := Failure{TrialNumber: AllTrials, Key: k, Err: err}
			failures = append(failures, f)
			monitoring.Opsf("[calibration] %s: %v", c.Recording, f)
		}
	}

	results := make([]*CalibratedTrial, len(trials))
	perTrial := make([][]Failure, len(trials))
	run := func(i int) {
		results[i], perTrial[i] = c.calibrate(trials[i], keys, lines)
	}
	if c.Workers < 2 || len(trials) < 2 {
		for i := range trials {
			run(i)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(c.Workers)
		for i := range trials {
			g.Go(func() error {
				run(i)
				return nil
			})
		}
		g.Wait()
	}

	out := make([]*CalibratedTrial, 0, len(trials))
	for i, ct := range results {
		for _, f := range perTrial[i] {
			monitoring.Opsf("[calibration] %s: %v", c.Recording, f)
		}
		failures = append(failures, perTrial[i]...)
		if len(keys) > 0 && len(ct.Columns) == 0 {
			continue
		}
		out = append(out, ct)
	}
	monitoring.Diagf("[calibration] %s: %d/%d trials calibrated with %s, %d failures",
		c.Recording, len(out), len(trials), spec, len(failures))
	return out, failures
}

// CalibrateTrial calibrates t with DefaultCalibrator.
func CalibrateTrial(t *trial.Trial, spec Spec) (*CalibratedTrial, error) {
	return DefaultCalibrator.CalibrateTrial(t, spec)
}

// CalibrateRecording calibrates trials with DefaultCalibrator.
func CalibrateRecording(trials []*trial.Trial, spec Spec) ([]*CalibratedTrial, []Failure) {
	return DefaultCalibrator.CalibrateRecording(trials, spec)
}
