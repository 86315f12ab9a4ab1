package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"text/tabwriter"

	"github.com/banshee-data/nystagmus.report/internal/api"
	"github.com/banshee-data/nystagmus.report/internal/calibration"
	"github.com/banshee-data/nystagmus.report/internal/config"
	"github.com/banshee-data/nystagmus.report/internal/db"
	"github.com/banshee-data/nystagmus.report/internal/edf"
	"github.com/banshee-data/nystagmus.report/internal/fsutil"
	"github.com/banshee-data/nystagmus.report/internal/recording"
	"github.com/banshee-data/nystagmus.report/internal/security"
	"github.com/banshee-data/nystagmus.report/internal/trial"
)

// fsys is where the CLI reads dumps and specs and writes CSV.
var fsys fsutil.FileSystem = fsutil.OSFileSystem{}

func loadAndSegment(path string, cfg *config.Config) (string, *trial.Result, error) {
	streams, err := edf.LoadStreams(fsys, path)
	if err != nil {
		return "", nil, err
	}
	name := edf.Stem(path)
	res, err := segmenter(cfg).Segment(name, streams)
	if err != nil {
		return "", nil, err
	}
	return name, res, nil
}

func runSegment(args []string, cfg *config.Config, stdout io.Writer) error {
	fs := flag.NewFlagSet("segment", flag.ContinueOnError)
	fs.SetOutput(stdout)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stdout, "Usage: nystagmus segment <dump.json>")
		return errUsage
	}

	name, res, err := loadAndSegment(fs.Arg(0), cfg)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%s: %d trials, %d warnings, %d failed\n",
		name, len(res.Trials), len(res.Warnings), len(res.Failures))

	tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TRIAL\tSTART\tEND\tEYE\tSAMPLES\tMESSAGES\tEVENTS\tSTART TIME\tEND TIME")
	for _, t := range res.Trials {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%s\t%d\t%d\t%d\t%g\t%g\n",
			t.Number, t.Boundary.Start, t.Boundary.End, t.EyeTracked,
			t.Samples.Len(), len(t.Messages), len(t.Events), t.StartTime, t.EndTime)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, w := range res.Warnings {
		fmt.Fprintf(stdout, "warning: %s\n", w)
	}
	for _, f := range res.Failures {
		fmt.Fprintf(stdout, "failed: %v\n", f)
	}
	return nil
}

func runCalibrate(args []string, cfg *config.Config, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("calibrate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	out := fs.String("out", "", "Write CSV to this file instead of stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	// Accept -out after the positional arguments too.
	pos := fs.Args()
	if len(pos) > 2 {
		if err := fs.Parse(pos[2:]); err != nil {
			return err
		}
		pos = pos[:2]
		if fs.NArg() > 0 {
			pos = append(pos, fs.Args()...)
		}
	}
	if len(pos) != 2 {
		fmt.Fprintln(stderr, "Usage: nystagmus calibrate <dump.json> <spec.json> [-out file.csv]")
		return errUsage
	}

	spec, err := calibration.LoadSpec(fsys, pos[1])
	if err != nil {
		return err
	}
	if spec.Len() == 0 {
		return fmt.Errorf("%s enables no calibration keys", pos[1])
	}
	name, res, err := loadAndSegment(pos[0], cfg)
	if err != nil {
		return err
	}

	c := calibration.Calibrator{Recording: name, Workers: cfg.GetCalibrateWorkers()}
	trials, failures := c.CalibrateRecording(res.Trials, spec)
	for _, f := range failures {
		fmt.Fprintf(stderr, "calibration failure: %v\n", f)
	}
	if len(trials) == 0 {
		return fmt.Errorf("no trial of %s could be calibrated", name)
	}

	if *out == "" {
		return calibration.WriteCSV(stdout, trials)
	}
	if err := security.ValidateExportPath(*out); err != nil {
		return err
	}
	f, err := fsys.Create(*out)
	if err != nil {
		return fmt.Errorf("create %s: %w", *out, err)
	}
	if err := calibration.WriteCSV(f, trials); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", *out, err)
	}
	fmt.Fprintf(stderr, "wrote %d calibrated trials of %s to %s\n", len(trials), recording.CalibratedName(name), *out)
	return nil
}

func runServe(ctx context.Context, args []string, cfg *config.Config) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	listen := fs.String("listen", cfg.GetListen(), "HTTP listen address")
	dbPath := fs.String("db", cfg.GetDBPath(), "SQLite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	database, err := db.NewDB(*dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer database.Close()

	reg := recording.NewRegistry(recording.Config{
		Segmenter:        segmenter(cfg),
		CalibrateWorkers: cfg.GetCalibrateWorkers(),
		Store:            database,
	})
	mux := api.NewServer(reg, database, cfg.GetMaxUploadBytes()).ServeMux()
	if err := database.AttachAdminRoutes(mux); err != nil {
		return err
	}
	err = api.ListenAndServe(ctx, *listen, api.LoggingMiddleware(mux))
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func runMigrate(args []string, cfg *config.Config, stdout io.Writer) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(stdout)
	dbPath := fs.String("db", cfg.GetDBPath(), "SQLite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return db.RunMigrateCommand(fs.Args(), *dbPath, stdout)
}
