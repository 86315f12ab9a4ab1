package edf

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
)

// ColumnTime is the sample timestamp column (milliseconds, tracker clock).
const ColumnTime = "time"

// SampleChannels is the decoder's canonical sample channel order. A decoded
// stream carries whichever subset the decoder was configured to emit.
var SampleChannels = []string{
	"posXLeft",
	"posXRight",
	"posYLeft",
	"posYRight",
	"pupilSizeLeft",
	"pupilSizeRight",
	"PpdX",
	"PpdY",
	"velXLeft",
	"velXRight",
	"velYLeft",
	"velYRight",
	"headTrackerType",
	"headTargetDataX",
	"headTargetDataY",
	"headTargetDataZ",
	"headTargetDataFlags",
	"inputPortData",
	"buttonData",
	"flags",
	"errors",
}

// keys that are not value channels
var sampleReserved = map[string]bool{
	"elementIndex": true,
	"sampleIndex":  true,
	ColumnTime:     true,
}

// SampleRecord is one tracker sample tick. Values is aligned with the owning
// SampleStream's Channels; a channel the decoder left empty is NaN.
type SampleRecord struct {
	OriginIndex int64
	SampleIndex int64
	Time        float64
	Values      []float64
}

// SampleStream is the decoded sample stream plus the list of channels it
// carries.
type SampleStream struct {
	Channels []string
	Records  []SampleRecord
}

// ChannelIndex returns the position of name in Channels, or -1.
func (s *SampleStream) ChannelIndex(name string) int {
	for i, c := range s.Channels {
		if c == name {
			return i
		}
	}
	return -1
}

// Len returns the number of sample records.
func (s *SampleStream) Len() int { return len(s.Records) }

// CopyRange returns a deep copy of Records[lo:hi] sharing no memory with s.
func (s *SampleStream) CopyRange(lo, hi int) SampleStream {
	out := SampleStream{
		Channels: append([]string(nil), s.Channels...),
		Records:  make([]SampleRecord, hi-lo),
	}
	for i, r := range s.Records[lo:hi] {
		r.Values = append([]float64(nil), r.Values...)
		out.Records[i] = r
	}
	return out
}

// MarshalJSON writes the stream as an array of row objects in channel order.
// NaN cells are written as null.
func (s SampleStream) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, r := range s.Records {
		if i > 0 {
			buf.WriteByte(',')
		}
		fmt.Fprintf(&buf, `{"elementIndex":%d,"sampleIndex":%d,"time":`, r.OriginIndex, r.SampleIndex)
		writeJSONFloat(&buf, r.Time)
		for j, name := range s.Channels {
			buf.WriteString(`,"`)
			buf.WriteString(name)
			buf.WriteString(`":`)
			v := math.NaN()
			if j < len(r.Values) {
				v = r.Values[j]
			}
			writeJSONFloat(&buf, v)
		}
		buf.WriteByte('}')
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func writeJSONFloat(buf *bytes.Buffer, v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		buf.WriteString("null")
		return
	}
	buf.Write(strconv.AppendFloat(nil, v, 'g', -1, 64))
}

// UnmarshalJSON reads an array of row objects. Every numeric key other than
// elementIndex, sampleIndex and time becomes a channel; the channel set is the
// union over all rows, canonical channels first.
func (s *SampleStream) UnmarshalJSON(data []byte) error {
	var rows []map[string]*float64
	if err := json.Unmarshal(data, &rows); err != nil {
		return fmt.Errorf("decode samples: %w", err)
	}

	seen := make(map[string]bool)
	for _, row := range rows {
		for k := range row {
			if !sampleReserved[k] {
				seen[k] = true
			}
		}
	}
	channels := make([]string, 0, len(seen))
	for _, c := range SampleChannels {
		if seen[c] {
			channels = append(channels, c)
			delete(seen, c)
		}
	}
	extra := make([]string, 0, len(seen))
	for k := range seen {
		extra = append(extra, k)
	}
	sort.Strings(extra)
	channels = append(channels, extra...)

	records := make([]SampleRecord, len(rows))
	for i, row := range rows {
		idx, ok := row["elementIndex"]
		if !ok || idx == nil {
			return fmt.Errorf("sample %d: missing elementIndex", i)
		}
		tm, ok := row[ColumnTime]
		if !ok || tm == nil {
			return fmt.Errorf("sample %d (elementIndex %d): missing %s", i, int64(*idx), ColumnTime)
		}
		r := SampleRecord{
			OriginIndex: int64(*idx),
			Time:        *tm,
			Values:      make([]float64, len(channels)),
		}
		if si := row["sampleIndex"]; si != nil {
			r.SampleIndex = int64(*si)
		}
		for j, c := range channels {
			if v := row[c]; v != nil {
				r.Values[j] = *v
			} else {
				r.Values[j] = math.NaN()
			}
		}
		records[i] = r
	}

	s.Channels = channels
	s.Records = records
	return nil
}
