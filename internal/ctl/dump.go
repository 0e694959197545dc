package ctl

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/large-farva/vtol-groundstation/internal/config"
	"github.com/large-farva/vtol-groundstation/internal/session"
)

// DumpOptions controls the dump command.
type DumpOptions struct {
	Out    string // output path, "-" for stdout, empty for a timestamped file
	Format string // csv or sqlite, empty for the configured format
}

// Dump asks the flight controller for its stored flight log and writes it to
// one output artifact.
func Dump(ctx context.Context, cfg config.Config, logger *log.Logger, opts DumpOptions) error {
	format := opts.Format
	if format == "" {
		format = cfg.Output.Format
	}
	if err := config.CheckFormat(format); err != nil {
		return err
	}
	path := opts.Out
	if path == "" {
		path = session.OutputPath(cfg.Output.Dir, format, time.Now())
	}

	// The console moves to stderr when the log itself goes to stdout.
	var console io.Writer = os.Stdout
	if path == "-" {
		console = os.Stderr
	}

	ch, err := openChannel(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer ch.Close()

	sink, err := session.OpenSink(format, path)
	if err != nil {
		return err
	}

	count := cfg.Device.RecordCount()
	if path != "-" {
		need := uint64(count) * approxRowBytes
		if avail, ok := diskAvailable(filepath.Dir(path)); ok && avail < need {
			logger.Printf("only %s free for a dump of up to %s", humanize.Bytes(avail), humanize.Bytes(need))
		}
	}
	fmt.Fprintf(console, "%s %s records from %s\n",
		header("dumping"), humanize.Comma(int64(count)), cfg.Serial.Port)

	start := time.Now()
	s, err := session.Extract(ctx, ch, sink, session.ExtractOptions{
		RecordCount: count,
		LoopPeriod:  cfg.Device.LoopPeriod(),
		ReadTimeout: cfg.Serial.ReadTimeout(),
		Console:     console,
	})
	fmt.Fprintln(console)
	reportEnd(console, s, err)

	if path != "-" {
		size := "?"
		if fi, statErr := os.Stat(path); statErr == nil {
			size = humanize.Bytes(uint64(fi.Size()))
		}
		fmt.Fprintf(console, "  %-8s %s (%s)\n", colorize(dim, "output:"), path, size)
	}
	fmt.Fprintf(console, "  %-8s %s\n", colorize(dim, "took:"), formatDuration(time.Since(start)))
	return err
}
