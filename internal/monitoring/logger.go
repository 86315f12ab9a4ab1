// Package monitoring holds the process-wide diagnostic log streams.
//
// There are three streams:
//   - ops: actionable warnings and lifecycle events (recording added,
//     unmatched START/END markers, calibration failures)
//   - diag: per-trial diagnostics (boundaries, row counts, fits)
//   - trace: high-volume detail (individual filtered rows)
//
// Ops defaults to the standard logger; diag and trace are muted until
// SetLogWriters enables them.
package monitoring

import (
	"io"
	"log"
	"os"
	"sync"
)

// LogWriters holds the io.Writers for each logging stream.
type LogWriters struct {
	Ops   io.Writer
	Diag  io.Writer
	Trace io.Writer
}

var (
	mu          sync.RWMutex
	opsLogger   = newLogger("[nystagmus] ", os.Stderr)
	diagLogger  *log.Logger
	traceLogger *log.Logger
)

// SetLogWriters configures all three logging streams at once.
// Pass nil for any writer to disable that stream.
func SetLogWriters(w LogWriters) {
	mu.Lock()
	defer mu.Unlock()
	opsLogger = newLogger("[nystagmus] ", w.Ops)
	diagLogger = newLogger("[nystagmus] ", w.Diag)
	traceLogger = newLogger("[nystagmus] ", w.Trace)
}

func newLogger(prefix string, w io.Writer) *log.Logger {
	if w == nil {
		return nil
	}
	return log.New(w, prefix, log.LstdFlags|log.Lmicroseconds)
}

// Opsf logs to the ops stream.
func Opsf(format string, args ...interface{}) {
	logTo(&opsLogger, format, args...)
}

// Diagf logs to the diag stream.
func Diagf(format string, args ...interface{}) {
	logTo(&diagLogger, format, args...)
}

// Tracef logs to the trace stream.
func Tracef(format string, args ...interface{}) {
	logTo(&traceLogger, format, args...)
}

// TraceEnabled reports whether the trace stream has a writer. Callers use it
// to skip building per-row messages nobody will read.
func TraceEnabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return traceLogger != nil
}

func logTo(l **log.Logger, format string, args ...interface{}) {
	mu.RLock()
	lg := *l
	mu.RUnlock()
	if lg != nil {
		lg.Printf(format, args...)
	}
}
