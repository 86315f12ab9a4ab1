package trial

import (
	"fmt"

	"github.com/banshee-data/nystagmus.report/internal/edf"
	"github.com/banshee-data/nystagmus.report/internal/monitoring"
)

// Boundary is the inclusive origin-index interval of one trial, taken from a
// START/END pair.
type Boundary struct {
	Start int64 `json:"startIndex"`
	End   int64 `json:"endIndex"`
}

func (b Boundary) String() string {
	return fmt.Sprintf("[%d, %d]", b.Start, b.End)
}

// Contains reports whether originIndex lies inside b.
func (b Boundary) Contains(originIndex int64) bool {
	return b.Start <= originIndex && originIndex <= b.End
}

// FindBoundaries scans the recording stream once and pairs each END with the
// most recent pending START. A START seen while another is pending replaces
// it; an END with nothing pending and a START left pending at the end of the
// stream are dropped. Each dropped marker is returned as a Warning and logged
// to the ops stream. Records with any other tracker state are ignored.
//
// The only error is ErrEmptyRecordingStream.
func FindBoundaries(recs []edf.RecordingRecord) ([]Boundary, []Warning, error) {
	if len(recs) == 0 {
		return nil, nil, ErrEmptyRecordingStream
	}

	var (
		bounds   []Boundary
		warnings []Warning
		pending  = -1 // position of the pending START, -1 while awaiting START
	)
	warn := func(kind WarningKind, pos int) {
		w := Warning{Kind: kind, Position: pos, OriginIndex: recs[pos].OriginIndex}
		warnings = append(warnings, w)
		monitoring.Opsf("[trial] dropped %s", w)
	}

	for i, r := range recs {
		switch r.TrackerState {
		case edf.StateStart:
			if pending >= 0 {
				warn(SupersededStart, pending)
			}
			pending = i
		case edf.StateEnd:
			if pending < 0 {
				warn(UnmatchedEnd, i)
				continue
			}
			bounds = append(bounds, Boundary{Start: recs[pending].OriginIndex, End: r.OriginIndex})
			pending = -1
		default:
			monitoring.Tracef("[trial] ignoring recording %d with tracker state %q", i, r.TrackerState)
		}
	}
	if pending >= 0 {
		warn(UnterminatedStart, pending)
	}

	monitoring.Diagf("[trial] %d boundaries from %d recording records (%d warnings)", len(bounds), len(recs), len(warnings))
	return bounds, warnings, nil
}
