package trial

import (
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/nystagmus.report/internal/edf"
	"github.com/banshee-data/nystagmus.report/internal/monitoring"
)

// Trial is one START..END segment of a recording. It owns copies of every
// stream's rows inside Boundary; nothing in a Trial aliases the source
// streams.
type Trial struct {
	Number     int
	Boundary   Boundary
	Recordings []edf.RecordingRecord
	Messages   []edf.MessageRecord
	Samples    *SampleTable
	Events     []edf.EventRecord
	IOEvents   []edf.IOEventRecord

	// EyeTracked comes from the first recording row.
	EyeTracked edf.Eye
	// StartTime and EndTime are the first and last sample times.
	StartTime float64
	EndTime   float64
}

// Duration returns EndTime-StartTime in tracker milliseconds.
func (t *Trial) Duration() float64 { return t.EndTime - t.StartTime }

// SubTables is the five-stream slice selected by one boundary.
type SubTables struct {
	Recordings []edf.RecordingRecord
	Messages   []edf.MessageRecord
	Samples    edf.SampleStream
	Events     []edf.EventRecord
	IOEvents   []edf.IOEventRecord
}

// ExtractTrialData copies every record whose origin index lies in
// [start, end] out of each non-header stream, preserving stream order.
// The streams must satisfy Validate; they are not modified.
func ExtractTrialData(s *edf.Streams, start, end int64) SubTables {
	var sub SubTables

	lo, hi := edf.Span(len(s.Recordings), func(i int) int64 { return s.Recordings[i].OriginIndex }, start, end)
	sub.Recordings = append([]edf.RecordingRecord(nil), s.Recordings[lo:hi]...)

	lo, hi = edf.Span(len(s.Messages), func(i int) int64 { return s.Messages[i].OriginIndex }, start, end)
	sub.Messages = append([]edf.MessageRecord(nil), s.Messages[lo:hi]...)

	lo, hi = edf.Span(len(s.Samples.Records), func(i int) int64 { return s.Samples.Records[i].OriginIndex }, start, end)
	sub.Samples = s.Samples.CopyRange(lo, hi)

	lo, hi = edf.Span(len(s.Events), func(i int) int64 { return s.Events[i].OriginIndex }, start, end)
	sub.Events = append([]edf.EventRecord(nil), s.Events[lo:hi]...)

	lo, hi = edf.Span(len(s.IOEvents), func(i int) int64 { return s.IOEvents[i].OriginIndex }, start, end)
	sub.IOEvents = append([]edf.IOEventRecord(nil), s.IOEvents[lo:hi]...)

	return sub
}

// Segmenter turns decoded streams into trials.
type Segmenter struct {
	// Sentinel is the raw sample value meaning "no data".
	Sentinel float64
	// Workers bounds how many trials are built concurrently. Values below 2
	// build sequentially.
	Workers int
}

// DefaultSegmenter uses the tracker's sentinel and builds sequentially.
var DefaultSegmenter = Segmenter{Sentinel: edf.MissingValue, Workers: 1}

// BuildTrial wraps sub into a Trial numbered n. It fails with a
// *MalformedTrialError when sub has no sample or no recording rows. Sentinel
// cells in the sample table are rewritten as NaN after the start and end
// times are read.
func (s Segmenter) BuildTrial(n int, b Boundary, sub SubTables) (*Trial, error) {
	if len(sub.Samples.Records) == 0 {
		return nil, &MalformedTrialError{TrialNumber: n, Boundary: b, Stream: edf.StreamSamples}
	}
	if len(sub.Recordings) == 0 {
		return nil, &MalformedTrialError{TrialNumber: n, Boundary: b, Stream: edf.StreamRecordings}
	}

	t := &Trial{
		Number:     n,
		Boundary:   b,
		Recordings: sub.Recordings,
		Messages:   sub.Messages,
		Samples:    NewSampleTable(sub.Samples),
		Events:     sub.Events,
		IOEvents:   sub.IOEvents,
		EyeTracked: sub.Recordings[0].EyeTracked,
	}
	t.StartTime = t.Samples.Time[0]
	t.EndTime = t.Samples.Time[t.Samples.Len()-1]

	missing := t.Samples.normalizeMissing(s.Sentinel)
	monitoring.Diagf("[trial] trial %d %s: %d samples, %d messages, %d events, eye=%s, %d missing cells",
		n, b, t.Samples.Len(), len(t.Messages), len(t.Events), t.EyeTracked, missing)
	if monitoring.TraceEnabled() {
		for _, m := range t.Messages {
			monitoring.Tracef("[trial] trial %d message @%d t=%d: %s", n, m.OriginIndex, m.Time, m.Message)
		}
	}
	return t, nil
}

// Result is the outcome of segmenting one recording.
type Result struct {
	Boundaries []Boundary
	// Trials holds the trials that built, in discovery order. Trial numbers
	// follow the boundary list, so a failed trial leaves a gap in numbering.
	Trials   []*Trial
	Warnings []Warning
	Failures []*MalformedTrialError
}

// Trial returns the trial numbered n, or nil if it failed or does not exist.
func (r *Result) Trial(n int) *Trial {
	for _, t := range r.Trials {
		if t.Number == n {
			return t
		}
	}
	return nil
}

// Err joins every trial failure into one error, or returns nil.
func (r *Result) Err() error {
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}

// Segment discovers the trial boundaries in s once and builds one trial per
// boundary. name identifies the recording in trial errors. A malformed trial
// is reported in Result.Failures and does not affect the others. An error is
// returned only when the recording stream is empty or a stream is out of
// order.
func (s Segmenter) Segment(name string, streams *edf.Streams) (*Result, error) {
	if streams == nil {
		return nil, ErrEmptyRecordingStream
	}
	if err := streams.Validate(); err != nil {
		return nil, fmt.Errorf("segment %s: %w", nameOr(name), err)
	}
	bounds, warnings, err := FindBoundaries(streams.Recordings)
	if err != nil {
		return nil, fmt.Errorf("segment %s: %w", nameOr(name), err)
	}

	trials := make([]*Trial, len(bounds))
	errs := make([]error, len(bounds))
	build := func(i int) {
		b := bounds[i]
		trials[i], errs[i] = s.BuildTrial(i, b, ExtractTrialData(streams, b.Start, b.End))
	}

	if s.Workers < 2 || len(bounds) < 2 {
		for i := range bounds {
			build(i)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(s.Workers)
		for i := range bounds {
			g.Go(func() error {
				build(i)
				return nil
			})
		}
		g.Wait()
	}

	res := &Result{Boundaries: bounds, Warnings: warnings, Trials: make([]*Trial, 0, len(bounds))}
	for i, t := range trials {
		if errs[i] != nil {
			var mte *MalformedTrialError
			if !errors.As(errs[i], &mte) {
				return nil, errs[i]
			}
			mte.Recording = name
			res.Failures = append(res.Failures, mte)
			monitoring.Opsf("[trial] %v", mte)
			continue
		}
		res.Trials = append(res.Trials, t)
	}
	return res, nil
}

// SegmentAll segments s with DefaultSegmenter.
func SegmentAll(s *edf.Streams) (*Result, error) {
	return DefaultSegmenter.Segment("", s)
}

// BuildTrial builds a trial with DefaultSegmenter.
func BuildTrial(n int, b Boundary, sub SubTables) (*Trial, error) {
	return DefaultSegmenter.BuildTrial(n, b, sub)
}

func nameOr(name string) string {
	if name == "" {
		return "recording"
	}
	return name
}
