package edf

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/banshee-data/nystagmus.report/internal/fsutil"
)

// DefaultMaxDumpBytes bounds how much of a decoded dump LoadStreams will read.
const DefaultMaxDumpBytes = 512 * 1024 * 1024

// Stream names used in errors and logs.
const (
	StreamRecordings = "recordings"
	StreamMessages   = "messages"
	StreamSamples    = "samples"
	StreamEvents     = "events"
	StreamIOEvents   = "ioEvents"
)

// Streams is one decoded recording: the header plus the five indexed streams.
// Streams are treated as read-only once decoded.
type Streams struct {
	Header     []string          `json:"header,omitempty"`
	Recordings []RecordingRecord `json:"recordings"`
	Messages   []MessageRecord   `json:"messages"`
	Samples    SampleStream      `json:"samples"`
	Events     []EventRecord     `json:"events"`
	IOEvents   []IOEventRecord   `json:"ioEvents"`
}

// OrderError reports an origin index that goes backwards within a stream.
type OrderError struct {
	Stream   string
	Position int
	Previous int64
	Got      int64
}

func (e *OrderError) Error() string {
	return fmt.Sprintf("%s[%d]: origin index %d after %d", e.Stream, e.Position, e.Got, e.Previous)
}

// Validate checks that origin indices are non-decreasing within every stream.
// Range slicing across streams depends on it.
func (s *Streams) Validate() error {
	checks := []struct {
		name string
		n    int
		at   func(int) int64
	}{
		{StreamRecordings, len(s.Recordings), func(i int) int64 { return s.Recordings[i].OriginIndex }},
		{StreamMessages, len(s.Messages), func(i int) int64 { return s.Messages[i].OriginIndex }},
		{StreamSamples, len(s.Samples.Records), func(i int) int64 { return s.Samples.Records[i].OriginIndex }},
		{StreamEvents, len(s.Events), func(i int) int64 { return s.Events[i].OriginIndex }},
		{StreamIOEvents, len(s.IOEvents), func(i int) int64 { return s.IOEvents[i].OriginIndex }},
	}
	for _, c := range checks {
		for i := 1; i < c.n; i++ {
			if prev, got := c.at(i-1), c.at(i); got < prev {
				return &OrderError{Stream: c.name, Position: i, Previous: prev, Got: got}
			}
		}
	}
	return nil
}

// Span returns the half-open position range [lo, hi) of records whose origin
// index lies in [start, end] inclusive. at must return origin indices in
// non-decreasing order.
func Span(n int, at func(int) int64, start, end int64) (lo, hi int) {
	if end < start {
		return 0, 0
	}
	lo = sort.Search(n, func(i int) bool { return at(i) >= start })
	hi = sort.Search(n, func(i int) bool { return at(i) > end })
	if hi < lo {
		hi = lo
	}
	return lo, hi
}

// Counts is the number of records in each stream.
type Counts struct {
	Header     int `json:"header"`
	Recordings int `json:"recordings"`
	Messages   int `json:"messages"`
	Samples    int `json:"samples"`
	Events     int `json:"events"`
	IOEvents   int `json:"ioEvents"`
}

// Counts returns per-stream record counts.
func (s *Streams) Counts() Counts {
	return Counts{
		Header:     len(s.Header),
		Recordings: len(s.Recordings),
		Messages:   len(s.Messages),
		Samples:    len(s.Samples.Records),
		Events:     len(s.Events),
		IOEvents:   len(s.IOEvents),
	}
}

func (c Counts) String() string {
	return fmt.Sprintf("header=%d recordings=%d messages=%d samples=%d events=%d ioEvents=%d",
		c.Header, c.Recordings, c.Messages, c.Samples, c.Events, c.IOEvents)
}

// ErrTooLarge is returned when a dump, after decompression, exceeds the
// caller's size limit.
var ErrTooLarge = errors.New("decoded dump too large")

// DecodeStreams reads a decoded recording dump from r. The reader may be
// gzip-compressed; the magic bytes decide. maxBytes caps the decompressed
// size; maxBytes <= 0 disables the cap.
func DecodeStreams(r io.Reader, maxBytes int64) (*Streams, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read decoded streams: %w", err)
	}
	return decodeBytes(data, maxBytes)
}

func decodeBytes(data []byte, maxBytes int64) (*Streams, error) {
	if len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b {
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("open gzip stream: %w", err)
		}
		defer zr.Close()
		var src io.Reader = zr
		if maxBytes > 0 {
			src = io.LimitReader(zr, maxBytes+1)
		}
		if data, err = io.ReadAll(src); err != nil {
			return nil, fmt.Errorf("decompress decoded streams: %w", err)
		}
		if maxBytes > 0 && int64(len(data)) > maxBytes {
			return nil, fmt.Errorf("decompressed dump exceeds %d bytes: %w", maxBytes, ErrTooLarge)
		}
	}

	var s Streams
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse decoded streams: %w", err)
	}
	return &s, nil
}

// LoadStreams reads a decoded dump (.json or .json.gz) from fsys.
func LoadStreams(fsys fsutil.FileSystem, path string) (*Streams, error) {
	clean := filepath.Clean(path)
	if !strings.HasSuffix(clean, ".json") && !strings.HasSuffix(clean, ".json.gz") {
		return nil, fmt.Errorf("decoded dump must have .json or .json.gz extension, got %q", filepath.Base(clean))
	}
	data, err := fsutil.ReadFileLimit(fsys, clean, DefaultMaxDumpBytes)
	if err != nil {
		return nil, err
	}
	s, err := decodeBytes(data, DefaultMaxDumpBytes)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", clean, err)
	}
	return s, nil
}

// Stem returns the file name without directory and dump extensions; it names
// a recording after the file it came from.
func Stem(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, ".gz")
	base = strings.TrimSuffix(base, ".json")
	if ext := filepath.Ext(base); strings.EqualFold(ext, ".edf") {
		base = strings.TrimSuffix(base, ext)
	}
	return base
}
