package edf

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/nystagmus.report/internal/fsutil"
)

const dumpJSON = `{
  "header": ["** CONVERTED FROM subject01.edf"],
  "recordings": [
    {"samplingRate": 500, "eyeTracked": "Left", "trackerState": "START", "elementIndex": 10, "recordingIndex": 0},
    {"samplingRate": 500, "eyeTracked": "Left", "trackerState": "END", "elementIndex": 50, "recordingIndex": 1}
  ],
  "messages": [
    {"time": 999, "message": "TRIALID 1", "elementIndex": 11, "msgIndex": 0}
  ],
  "samples": [
    {"elementIndex": 12, "sampleIndex": 0, "time": 1000, "posXLeft": -4000, "posYLeft": 120, "pupilSizeLeft": 800},
    {"elementIndex": 13, "sampleIndex": 1, "time": 1002, "posXLeft": -32768, "posYLeft": null, "custom": 7}
  ],
  "events": [
    {"time": 1001, "eventType": "STARTFIX", "eyeTracked": "Left", "elementIndex": 14, "eventIndex": 0}
  ],
  "ioEvents": []
}`

func TestDecodeStreams(t *testing.T) {
	s, err := DecodeStreams(strings.NewReader(dumpJSON), 0)
	require.NoError(t, err)

	assert.Equal(t, Counts{Header: 1, Recordings: 2, Messages: 1, Samples: 2, Events: 1, IOEvents: 0}, s.Counts())
	assert.Equal(t, StateStart, s.Recordings[0].TrackerState)
	assert.Equal(t, EyeLeft, s.Recordings[0].EyeTracked)
	assert.Equal(t, int64(50), s.Recordings[1].OriginIndex)

	// canonical channels first, unknown extras appended
	assert.Equal(t, []string{"posXLeft", "posYLeft", "pupilSizeLeft", "custom"}, s.Samples.Channels)

	second := s.Samples.Records[1]
	assert.Equal(t, int64(13), second.OriginIndex)
	assert.Equal(t, 1002.0, second.Time)
	assert.Equal(t, -32768.0, second.Values[0], "sentinel is left for the segmenter to normalise")
	assert.True(t, math.IsNaN(second.Values[1]), "null cell decodes as NaN")
	assert.True(t, math.IsNaN(second.Values[2]), "absent cell decodes as NaN")
	assert.Equal(t, 7.0, second.Values[3])
	assert.True(t, math.IsNaN(s.Samples.Records[0].Values[3]))
}

func TestDecodeStreams_Gzip(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	zw.Write([]byte(dumpJSON))
	zw.Close()

	s, err := DecodeStreams(&buf, int64(len(dumpJSON)))
	require.NoError(t, err)
	assert.Len(t, s.Samples.Records, 2)
}

func TestDecodeStreams_GzipExpansionLimit(t *testing.T) {
	// a few KB of gzip that inflates to 1 MiB of header text
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	zw.Write([]byte(`{"header": ["`))
	zw.Write(bytes.Repeat([]byte("a"), 1<<20))
	zw.Write([]byte(`"]}`))
	zw.Close()
	require.Less(t, buf.Len(), 1<<14)
	compressed := buf.Bytes()

	_, err := DecodeStreams(bytes.NewReader(compressed), 64*1024)
	assert.ErrorIs(t, err, ErrTooLarge)

	s, err := DecodeStreams(bytes.NewReader(compressed), 2<<20)
	require.NoError(t, err)
	assert.Len(t, s.Header, 1)
}

func TestDecodeStreams_SampleMissingRequiredField(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"no elementIndex", `{"samples": [{"time": 1}]}`, "elementIndex"},
		{"no time", `{"samples": [{"elementIndex": 2, "posXLeft": 1}]}`, "sample 0 (elementIndex 2): missing time"},
		{"null time", `{"samples": [{"elementIndex": 2, "time": 4}, {"elementIndex": 3, "time": null}]}`, "sample 1 (elementIndex 3): missing time"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeStreams(strings.NewReader(tt.body), 0)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestSampleStream_MarshalJSON(t *testing.T) {
	in := SampleStream{
		Channels: []string{"posXLeft", "posXRight"},
		Records: []SampleRecord{
			{OriginIndex: 3, SampleIndex: 0, Time: 10, Values: []float64{1.5, math.NaN()}},
		},
	}
	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"elementIndex":3,"sampleIndex":0,"time":10,"posXLeft":1.5,"posXRight":null}]`, string(data))

	var out SampleStream
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in.Channels, out.Channels)
	assert.True(t, math.IsNaN(out.Records[0].Values[1]))
}

func TestSampleStream_CopyRangeIsDeep(t *testing.T) {
	s := SampleStream{
		Channels: []string{"posXLeft"},
		Records: []SampleRecord{
			{OriginIndex: 1, Values: []float64{1}},
			{OriginIndex: 2, Values: []float64{2}},
			{OriginIndex: 3, Values: []float64{3}},
		},
	}
	c := s.CopyRange(1, 3)
	require.Len(t, c.Records, 2)
	c.Records[0].Values[0] = 99
	c.Channels[0] = "changed"

	assert.Equal(t, 2.0, s.Records[1].Values[0])
	assert.Equal(t, "posXLeft", s.Channels[0])
	assert.Equal(t, 0, s.ChannelIndex("posXLeft"))
	assert.Equal(t, -1, s.ChannelIndex("posYLeft"))
}

func TestValidate(t *testing.T) {
	good := &Streams{
		Recordings: []RecordingRecord{{OriginIndex: 1}, {OriginIndex: 5}},
		Samples:    SampleStream{Records: []SampleRecord{{OriginIndex: 2}, {OriginIndex: 2}, {OriginIndex: 3}}},
	}
	require.NoError(t, good.Validate())

	bad := &Streams{
		Events: []EventRecord{{OriginIndex: 8}, {OriginIndex: 7}},
	}
	err := bad.Validate()
	var oe *OrderError
	require.True(t, errors.As(err, &oe), "err = %v", err)
	assert.Equal(t, StreamEvents, oe.Stream)
	assert.Equal(t, 1, oe.Position)
}

func TestSpan(t *testing.T) {
	idx := []int64{100, 101, 103, 103, 105, 110, 111}
	at := func(i int) int64 { return idx[i] }

	tests := []struct {
		name       string
		start, end int64
		lo, hi     int
	}{
		{"inclusive both ends", 101, 105, 1, 5},
		{"duplicates kept together", 103, 103, 2, 4},
		{"gap inside range", 104, 109, 4, 5},
		{"before all", 0, 99, 0, 0},
		{"after all", 200, 300, 7, 7},
		{"whole stream", 0, 1000, 0, 7},
		{"inverted range", 110, 100, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lo, hi := Span(len(idx), at, tt.start, tt.end)
			if lo != tt.lo || hi != tt.hi {
				t.Errorf("Span(%d, %d) = [%d, %d), want [%d, %d)", tt.start, tt.end, lo, hi, tt.lo, tt.hi)
			}
		})
	}
}

func TestLoadStreams(t *testing.T) {
	m := fsutil.NewMemoryFileSystem()
	m.WriteFile("data/subject01.json", []byte(dumpJSON), 0644)
	m.WriteFile("data/subject01.npy", []byte(dumpJSON), 0644)

	s, err := LoadStreams(m, "data/subject01.json")
	require.NoError(t, err)
	assert.Len(t, s.Recordings, 2)

	_, err = LoadStreams(m, "data/subject01.npy")
	assert.Error(t, err)

	_, err = LoadStreams(m, "data/missing.json")
	assert.Error(t, err)
}

func TestStem(t *testing.T) {
	tests := map[string]string{
		"uploads/subject01.json":      "subject01",
		"subject01.edf.json.gz":       "subject01",
		"/tmp/br_whole_file.EDF.json": "br_whole_file",
		"session.v2.json":             "session.v2",
	}
	for in, want := range tests {
		if got := Stem(in); got != want {
			t.Errorf("Stem(%q) = %q, want %q", in, got, want)
		}
	}
}
