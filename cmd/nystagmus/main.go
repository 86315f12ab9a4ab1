// Command nystagmus segments eye-tracker recordings into trials, calibrates
// gaze positions to degrees and serves the results over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/nystagmus.report/internal/config"
	"github.com/banshee-data/nystagmus.report/internal/db"
	"github.com/banshee-data/nystagmus.report/internal/monitoring"
	"github.com/banshee-data/nystagmus.report/internal/trial"
	"github.com/banshee-data/nystagmus.report/internal/version"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one command line and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("nystagmus", flag.ContinueOnError)
	global.SetOutput(stderr)
	global.Usage = func() { printUsage(stderr) }
	configPath := global.String("config", "", "Path to JSON config file")
	devMode := global.Bool("dev", false, "Read migrations from internal/db/migrations on disk")
	if err := global.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if global.NArg() < 1 {
		printUsage(stderr)
		return 2
	}

	cfg := config.Empty()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			fmt.Fprintf(stderr, "nystagmus: %v\n", err)
			return 1
		}
	}
	setupLogging(cfg, stderr)
	db.DevMode = *devMode

	command, rest := global.Arg(0), global.Args()[1:]
	var err error
	switch command {
	case "segment":
		err = runSegment(rest, cfg, stdout)
	case "calibrate":
		err = runCalibrate(rest, cfg, stdout, stderr)
	case "serve":
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		err = runServe(ctx, rest, cfg)
	case "migrate":
		err = runMigrate(rest, cfg, stdout)
	case "version":
		fmt.Fprintln(stdout, version.String())
	case "help":
		printUsage(stdout)
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", command)
		printUsage(stderr)
		return 2
	}

	switch {
	case err == nil:
		return 0
	case errors.Is(err, flag.ErrHelp):
		return 0
	case errors.Is(err, errUsage), errors.Is(err, db.ErrUsage):
		return 2
	default:
		fmt.Fprintf(stderr, "nystagmus %s: %v\n", command, err)
		return 1
	}
}

var errUsage = errors.New("usage")

// setupLogging sends ops to stderr and enables diag and trace when the
// config asks for them.
func setupLogging(cfg *config.Config, stderr io.Writer) {
	w := monitoring.LogWriters{Ops: stderr}
	if cfg.GetLogDiag() {
		w.Diag = stderr
	}
	if cfg.GetLogTrace() {
		w.Trace = stderr
	}
	monitoring.SetLogWriters(w)
}

func segmenter(cfg *config.Config) trial.Segmenter {
	return trial.Segmenter{
		Sentinel: cfg.GetMissingValueSentinel(),
		Workers:  cfg.GetSegmentWorkers(),
	}
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `nystagmus - trial segmentation and gaze calibration for eye-tracker recordings

Usage: nystagmus [-config file.json] [-dev] <command> [options]

Commands:
  segment <dump.json>                       Print the trials found in a decoded recording
  calibrate <dump.json> <spec.json> [-out file.csv]
                                            Calibrate every trial and write CSV
  serve [-listen addr] [-db path]           Serve the JSON API and debug routes
  migrate [-db path] <action>               Manage the database schema (see 'migrate help')
  version                                   Show version information
  help                                      Show this help message

Global Flags:
  -config <file>   JSON config (missing_value_sentinel, segment_workers,
                   calibrate_workers, db_path, listen, max_upload_bytes,
                   log_diag, log_trace)
  -dev             Read migrations from disk instead of the binary
`)
}
