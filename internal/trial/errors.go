package trial

import (
	"errors"
	"fmt"
)

// ErrEmptyRecordingStream is returned when boundary discovery is given no
// recording-state records at all.
var ErrEmptyRecordingStream = errors.New("recording stream is empty")

// ErrEmptySlice is wrapped by MalformedTrialError when a boundary selects no
// rows from a stream a trial cannot do without.
var ErrEmptySlice = errors.New("empty slice")

// MalformedTrialError reports a boundary whose sample or recording slice is
// empty. It is fatal for that trial only.
type MalformedTrialError struct {
	Recording   string
	TrialNumber int
	Boundary    Boundary
	Stream      string
}

func (e *MalformedTrialError) Error() string {
	prefix := ""
	if e.Recording != "" {
		prefix = e.Recording + ": "
	}
	return fmt.Sprintf("%strial %d %s: no %s rows", prefix, e.TrialNumber, e.Boundary, e.Stream)
}

func (e *MalformedTrialError) Unwrap() error { return ErrEmptySlice }

// WarningKind classifies a soft boundary-discovery problem.
type WarningKind int

const (
	// SupersededStart is a START overwritten by a later START before any END.
	SupersededStart WarningKind = iota
	// UnmatchedEnd is an END seen while no START was pending.
	UnmatchedEnd
	// UnterminatedStart is a START still pending when the stream ran out.
	UnterminatedStart
)

func (k WarningKind) String() string {
	switch k {
	case SupersededStart:
		return "superseded START"
	case UnmatchedEnd:
		return "END without START"
	case UnterminatedStart:
		return "unterminated START"
	}
	return fmt.Sprintf("WarningKind(%d)", int(k))
}

// Warning is a non-fatal START/END mismatch. The marker it names was dropped
// from the boundary list.
type Warning struct {
	Kind        WarningKind
	Position    int
	OriginIndex int64
}

func (w Warning) String() string {
	return fmt.Sprintf("%s at recording %d (elementIndex %d)", w.Kind, w.Position, w.OriginIndex)
}

// MarshalText lets warnings travel as plain strings in JSON responses.
func (w Warning) MarshalText() ([]byte, error) {
	return []byte(w.String()), nil
}
