package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/nystagmus.report/internal/config"
	"github.com/banshee-data/nystagmus.report/internal/edf"
	"github.com/banshee-data/nystagmus.report/internal/testutil"
)

func runCLI(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code = run(args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

// writeDump writes subject01.json: trials at [10, 14] and [20, 24] plus an
// unterminated START at 40.
func writeDump(t *testing.T, dir string) string {
	t.Helper()
	recs := testutil.Markers(edf.EyeLeft, 10, 14, 20, 24)
	recs = append(recs, edf.RecordingRecord{TrackerState: edf.StateStart, OriginIndex: 40, EyeTracked: edf.EyeLeft})
	s := &edf.Streams{
		Recordings: recs,
		Samples:    testutil.Samples(10, 24, 1000, 2, testutil.PositionChannels...),
	}
	data, err := json.Marshal(s)
	require.NoError(t, err)
	return writeFile(t, dir, "subject01.json", data)
}

func TestRun_Usage(t *testing.T) {
	code, _, stderr := runCLI(t)
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "Usage: nystagmus")

	code, _, stderr = runCLI(t, "frobnicate")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "Unknown command: frobnicate")

	code, stdout, _ := runCLI(t, "help")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "Commands:")
}

func TestRun_Version(t *testing.T) {
	code, stdout, _ := runCLI(t, "version")
	assert.Equal(t, 0, code)
	assert.True(t, strings.HasPrefix(stdout, "nystagmus dev"), stdout)
}

func TestRun_Config(t *testing.T) {
	dir := t.TempDir()

	code, _, stderr := runCLI(t, "-config", filepath.Join(dir, "missing.json"), "version")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "failed to stat config file")

	bad := writeFile(t, dir, "bad.json", []byte(`{"segment_workers": 0}`))
	code, _, stderr = runCLI(t, "-config", bad, "version")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "segment_workers")

	good := writeFile(t, dir, "good.json", []byte(`{"segment_workers": 2, "log_diag": true}`))
	dump := writeDump(t, dir)
	code, _, stderr = runCLI(t, "-config", good, "segment", dump)
	assert.Equal(t, 0, code)
	assert.Contains(t, stderr, "boundaries from", "diag stream enabled by config")
}

func TestRun_Segment(t *testing.T) {
	dump := writeDump(t, t.TempDir())

	code, stdout, _ := runCLI(t, "segment", dump)
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "subject01: 2 trials, 1 warnings, 0 failed")
	assert.Contains(t, stdout, "TRIAL  START  END")
	assert.Contains(t, stdout, "unterminated START")

	lines := strings.Split(stdout, "\n")
	require.GreaterOrEqual(t, len(lines), 4)
	assert.Equal(t, []string{"0", "10", "14", "Left", "5", "0", "0", "1000", "1008"}, strings.Fields(lines[2]))

	code, _, _ = runCLI(t, "segment")
	assert.Equal(t, 2, code)

	code, _, stderr := runCLI(t, "segment", filepath.Join(t.TempDir(), "nope.json"))
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "nystagmus segment:")

	untimed := writeFile(t, t.TempDir(), "untimed.json", []byte(`{
		"recordings": [{"trackerState": "START", "elementIndex": 1}, {"trackerState": "END", "elementIndex": 3}],
		"samples": [{"elementIndex": 2, "posXLeft": 1}]}`))
	code, stdout, stderr = runCLI(t, "segment", untimed)
	assert.Equal(t, 1, code)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "missing time")
}

func TestRun_Calibrate(t *testing.T) {
	dir := t.TempDir()
	dump := writeDump(t, dir)
	spec := writeFile(t, dir, "spec.json", []byte(`{"XLeft": {"plus10Degs": 30, "minus10Degs": 10}}`))

	t.Run("stdout", func(t *testing.T) {
		code, stdout, _ := runCLI(t, "calibrate", dump, spec)
		require.Equal(t, 0, code)
		lines := strings.Split(strings.TrimSpace(stdout), "\n")
		require.Len(t, lines, 11)
		assert.Equal(t, "trial,row,posXLeft", lines[0])
		assert.Equal(t, "0,0,10", lines[1])
		assert.Equal(t, "1,4,-4", lines[10])
	})

	t.Run("out after positionals", func(t *testing.T) {
		out := filepath.Join(dir, "subject01.csv")
		code, stdout, stderr := runCLI(t, "calibrate", dump, spec, "-out", out)
		require.Equal(t, 0, code, stderr)
		assert.Empty(t, stdout)
		assert.Contains(t, stderr, "subject01 - Calibrated")
		data, err := os.ReadFile(out)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(string(data), "trial,row,posXLeft\n0,0,10\n"))
	})

	t.Run("degenerate spec", func(t *testing.T) {
		bad := writeFile(t, dir, "bad.json", []byte(`{"YLeft": {"plus10Degs": 3, "minus10Degs": 3}}`))
		code, _, stderr := runCLI(t, "calibrate", dump, bad)
		assert.Equal(t, 1, code)
		assert.Contains(t, stderr, "calibration failure")
		assert.Contains(t, stderr, "no trial of subject01 could be calibrated")
	})

	t.Run("empty spec", func(t *testing.T) {
		empty := writeFile(t, dir, "empty.json", []byte(`{}`))
		code, _, stderr := runCLI(t, "calibrate", dump, empty)
		assert.Equal(t, 1, code)
		assert.Contains(t, stderr, "enables no calibration keys")
	})

	t.Run("usage", func(t *testing.T) {
		code, _, _ := runCLI(t, "calibrate", dump)
		assert.Equal(t, 2, code)
		code, _, _ = runCLI(t, "calibrate", dump, spec, "extra")
		assert.Equal(t, 2, code)
	})
}

func TestRun_Migrate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cli.db")

	code, stdout, _ := runCLI(t, "migrate", "-db", path, "up")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "Current version: 2")

	code, stdout, _ = runCLI(t, "migrate", "-db", path, "status")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "Pending: 0")

	code, _, _ = runCLI(t, "migrate", "-db", path)
	assert.Equal(t, 2, code)
}

func TestRunServe(t *testing.T) {
	cfg := config.Empty()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- runServe(ctx, []string{"-listen", "127.0.0.1:0", "-db", filepath.Join(t.TempDir(), "serve.db")}, cfg)
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not stop")
	}
}

func TestRun_CalibrateRejectsUnsafeOut(t *testing.T) {
	dir := t.TempDir()
	dump := writeDump(t, dir)
	spec := writeFile(t, dir, "spec.json", []byte(`{"XLeft": {"plus10Degs": 30, "minus10Degs": 10}}`))

	code, _, stderr := runCLI(t, "calibrate", "-out", "/proc/self/trials.csv", dump, spec)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "export path")
}
