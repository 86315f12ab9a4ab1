package fsutil

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryFileSystem_CreateThenRead(t *testing.T) {
	m := NewMemoryFileSystem()

	w, err := m.Create("/out/data.csv")
	require.NoError(t, err)
	io.WriteString(w, "trial,row\n")

	// nothing visible until Close
	got, err := m.ReadFile("out/data.csv")
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, w.Close())
	got, err = m.ReadFile("out/./data.csv")
	require.NoError(t, err)
	assert.Equal(t, "trial,row\n", string(got))

	info, err := m.Stat("out/data.csv")
	require.NoError(t, err)
	assert.Equal(t, "data.csv", info.Name())
	assert.EqualValues(t, len("trial,row\n"), info.Size())
}

func TestMemoryFileSystem_Missing(t *testing.T) {
	m := NewMemoryFileSystem()
	_, err := m.ReadFile("nope")
	assert.ErrorIs(t, err, fs.ErrNotExist)
	_, err = m.Stat("nope")
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestReadFileLimit(t *testing.T) {
	m := NewMemoryFileSystem()
	m.WriteFile("small.json", []byte(`{}`), 0644)
	m.WriteFile("cal/big.json", []byte(strings.Repeat("x", 64)), 0644)

	tests := []struct {
		name     string
		path     string
		maxBytes int64
		wantErr  string
	}{
		{"under limit", "small.json", 16, ""},
		{"over limit", "cal/big.json", 16, "too large"},
		{"limit disabled", "cal/big.json", 0, ""},
		{"directory", "cal", 16, "is a directory"},
		{"missing", "gone.json", 16, "failed to stat"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadFileLimit(m, tt.path, tt.maxBytes)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}

func TestOSFileSystem(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spec.json")
	var fsys FileSystem = OSFileSystem{}

	w, err := fsys.Create(path)
	require.NoError(t, err)
	_, err = io.WriteString(w, `{"XLeft":{}}`)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	data, err := ReadFileLimit(fsys, path, 1024)
	require.NoError(t, err)
	assert.Equal(t, `{"XLeft":{}}`, string(data))

	onDisk, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, onDisk)
}
