package trial

import (
	"math"

	"github.com/banshee-data/nystagmus.report/internal/edf"
)

// SampleTable is a trial's sample slice in column form. Every column has
// Len() entries and row i of each column comes from the same sample record.
type SampleTable struct {
	OriginIndex []int64
	SampleIndex []int64
	Time        []float64

	channels []string
	columns  map[string][]float64
}

// NewSampleTable pivots sample records into columns. The records are copied.
func NewSampleTable(s edf.SampleStream) *SampleTable {
	n := len(s.Records)
	t := &SampleTable{
		OriginIndex: make([]int64, n),
		SampleIndex: make([]int64, n),
		Time:        make([]float64, n),
		channels:    append([]string(nil), s.Channels...),
		columns:     make(map[string][]float64, len(s.Channels)),
	}
	for _, c := range s.Channels {
		t.columns[c] = make([]float64, n)
	}
	for i, r := range s.Records {
		t.OriginIndex[i] = r.OriginIndex
		t.SampleIndex[i] = r.SampleIndex
		t.Time[i] = r.Time
		for j, c := range s.Channels {
			v := math.NaN()
			if j < len(r.Values) {
				v = r.Values[j]
			}
			t.columns[c][i] = v
		}
	}
	return t
}

// Len returns the number of rows.
func (t *SampleTable) Len() int { return len(t.Time) }

// Channels returns the value column names in stream order, excluding time.
func (t *SampleTable) Channels() []string {
	return append([]string(nil), t.channels...)
}

// Column returns the named column. "time" returns the Time column. The slice
// is the table's own storage; callers must not modify it.
func (t *SampleTable) Column(name string) ([]float64, bool) {
	if name == edf.ColumnTime {
		return t.Time, true
	}
	c, ok := t.columns[name]
	return c, ok
}

// Row returns row i as the decoder's record shape.
func (t *SampleTable) Row(i int) edf.SampleRecord {
	r := edf.SampleRecord{
		OriginIndex: t.OriginIndex[i],
		SampleIndex: t.SampleIndex[i],
		Time:        t.Time[i],
		Values:      make([]float64, len(t.channels)),
	}
	for j, c := range t.channels {
		r.Values[j] = t.columns[c][i]
	}
	return r
}

// normalizeMissing replaces sentinel cells in the time and value columns
// with NaN.
func (t *SampleTable) normalizeMissing(sentinel float64) int {
	n := NormalizeMissing(t.Time, sentinel)
	for _, c := range t.channels {
		n += NormalizeMissing(t.columns[c], sentinel)
	}
	return n
}

// NormalizeMissing rewrites every element of values equal to sentinel as
// NaN, in place, and returns how many it rewrote. A second pass over the
// same slice finds nothing to rewrite.
func NormalizeMissing(values []float64, sentinel float64) int {
	n := 0
	for i, v := range values {
		if v == sentinel {
			values[i] = math.NaN()
			n++
		}
	}
	return n
}
