package calibration

import (
	"encoding/json"
	"fmt"
)

// AllTrials is the trial number of a failure that applies to every trial,
// such as a degenerate reference pair.
const AllTrials = -1

// InvalidCalibrationError reports a reference pair that does not define a
// line: equal values, or a value that is not finite.
type InvalidCalibrationError struct {
	Plus10Degs  float64
	Minus10Degs float64
}

func (e *InvalidCalibrationError) Error() string {
	if e.Plus10Degs == e.Minus10Degs {
		return fmt.Sprintf("invalid calibration: plus10Degs and minus10Degs are both %g", e.Plus10Degs)
	}
	return fmt.Sprintf("invalid calibration: plus10Degs=%g minus10Degs=%g", e.Plus10Degs, e.Minus10Degs)
}

// MissingChannelError reports a trial whose sample table lacks the raw
// column an enabled key needs.
type MissingChannelError struct {
	Recording   string
	TrialNumber int
	Channel     string
}

func (e *MissingChannelError) Error() string {
	prefix := ""
	if e.Recording != "" {
		prefix = e.Recording + ": "
	}
	return fmt.Sprintf("%strial %d: no %s channel", prefix, e.TrialNumber, e.Channel)
}

// Failure is one (trial, key) calibration that did not produce a column.
type Failure struct {
	TrialNumber int
	Key         Key
	Err         error
}

func (f Failure) Error() string {
	if f.TrialNumber == AllTrials {
		return fmt.Sprintf("%s: %v", f.Key, f.Err)
	}
	return fmt.Sprintf("trial %d %s: %v", f.TrialNumber, f.Key, f.Err)
}

func (f Failure) Unwrap() error { return f.Err }

func (f Failure) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Trial int    `json:"trial"`
		Key   Key    `json:"key"`
		Error string `json:"error"`
	}{f.TrialNumber, f.Key, f.Err.Error()})
}
