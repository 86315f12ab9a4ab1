// Package testutil provides shared test helpers and recording fixtures.
package testutil

import (
	"bytes"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/banshee-data/nystagmus.report/internal/edf"
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertFloats compares two float slices element by element within tol. NaN
// matches only NaN.
func AssertFloats(t *testing.T, got, want []float64, tol float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d (got %v)", len(got), len(want), got)
	}
	if i := firstMismatch(got, want, tol); i >= 0 {
		t.Errorf("[%d] = %v, want %v (got %v)", i, got[i], want[i], got)
	}
}

func firstMismatch(got, want []float64, tol float64) int {
	for i := range want {
		g, w := got[i], want[i]
		if math.IsNaN(w) || math.IsNaN(g) {
			if math.IsNaN(w) != math.IsNaN(g) {
				return i
			}
			continue
		}
		if math.Abs(g-w) > tol {
			return i
		}
	}
	return -1
}

// NewTestRequest creates a test HTTP request with an optional body.
func NewTestRequest(method, path string, body []byte) *http.Request {
	if body == nil {
		return httptest.NewRequest(method, path, nil)
	}
	return httptest.NewRequest(method, path, bytes.NewReader(body))
}

// NewTestRecorder creates a test response recorder.
func NewTestRecorder() *httptest.ResponseRecorder {
	return httptest.NewRecorder()
}

// Markers builds a recording stream of alternating START/END records at the
// given origin indices, starting with START.
func Markers(eye edf.Eye, indices ...int64) []edf.RecordingRecord {
	recs := make([]edf.RecordingRecord, len(indices))
	for i, idx := range indices {
		state := edf.StateStart
		if i%2 == 1 {
			state = edf.StateEnd
		}
		recs[i] = edf.RecordingRecord{
			SamplingRate:   500,
			EyeTracked:     eye,
			TrackerState:   state,
			OriginIndex:    idx,
			RecordingIndex: int64(i),
		}
	}
	return recs
}

// Samples builds one sample per origin index in [from, to]. Time starts at
// t0 and advances by step; every channel holds the origin index as its
// value.
func Samples(from, to int64, t0, step float64, channels ...string) edf.SampleStream {
	s := edf.SampleStream{Channels: append([]string(nil), channels...)}
	for idx := from; idx <= to; idx++ {
		k := idx - from
		r := edf.SampleRecord{
			OriginIndex: idx,
			SampleIndex: k,
			Time:        t0 + step*float64(k),
			Values:      make([]float64, len(channels)),
		}
		for j := range channels {
			r.Values[j] = float64(idx)
		}
		s.Records = append(s.Records, r)
	}
	return s
}

// PositionChannels are the four gaze position channels.
var PositionChannels = []string{"posXLeft", "posXRight", "posYLeft", "posYRight"}
