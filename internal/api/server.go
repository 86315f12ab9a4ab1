// Package api serves recordings, trials and calibrations as JSON over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/nystagmus.report/internal/config"
	"github.com/banshee-data/nystagmus.report/internal/db"
	"github.com/banshee-data/nystagmus.report/internal/monitoring"
	"github.com/banshee-data/nystagmus.report/internal/recording"
)

// ANSI escape codes for request logs
const (
	colorCyan      = "\033[36m"
	colorReset     = "\033[0m"
	colorYellow    = "\033[33m"
	colorBoldGreen = "\033[1;32m"
	colorBoldRed   = "\033[1;31m"
)

type Server struct {
	registry  *recording.Registry
	db        *db.DB
	maxUpload int64
}

// NewServer serves reg. database may be nil, in which case the /stored
// routes are not mounted.
func NewServer(reg *recording.Registry, database *db.DB, maxUploadBytes int64) *Server {
	if maxUploadBytes <= 0 {
		maxUploadBytes = config.DefaultMaxUploadBytes
	}
	return &Server{registry: reg, db: database, maxUpload: maxUploadBytes}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Opsf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /recordings", s.uploadRecording)
	mux.HandleFunc("GET /recordings", s.listRecordings)
	mux.HandleFunc("GET /recordings/{id}", s.showRecording)
	mux.HandleFunc("DELETE /recordings/{id}", s.deleteRecording)
	mux.HandleFunc("GET /recordings/{id}/trials/{n}", s.showTrial)
	mux.HandleFunc("POST /recordings/{id}/calibrate", s.calibrateRecording)
	mux.HandleFunc("GET /calibrated", s.listCalibrated)
	mux.HandleFunc("GET /calibrated/{id}", s.showCalibrated)
	mux.HandleFunc("GET /calibrated/{id}/trials/{n}", s.showCalibratedTrial)
	mux.HandleFunc("GET /calibrated/{id}/csv", s.downloadCalibratedCSV)
	if s.db != nil {
		mux.HandleFunc("GET /stored/recordings", s.listStoredRecordings)
		mux.HandleFunc("GET /stored/recordings/{id}", s.showStoredRecording)
		mux.HandleFunc("GET /stored/calibrations", s.listStoredCalibrations)
		mux.HandleFunc("GET /stored/calibrations/{id}", s.showStoredCalibration)
	}
	return mux
}

// ListenAndServe serves h on addr until ctx is cancelled, then shuts down.
func ListenAndServe(ctx context.Context, addr string, h http.Handler) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		errc <- server.ListenAndServe()
	}()
	monitoring.Opsf("listening on %s", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	monitoring.Opsf("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		monitoring.Opsf("HTTP server shutdown error: %v", err)
		if err := server.Close(); err != nil {
			monitoring.Opsf("HTTP server force close error: %v", err)
		}
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
