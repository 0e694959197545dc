package ctl

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/large-farva/vtol-groundstation/internal/config"
	"github.com/large-farva/vtol-groundstation/internal/relay"
	"github.com/large-farva/vtol-groundstation/internal/session"
)

// TetherOptions controls the tether command.
type TetherOptions struct {
	Export bool   // write records to an artifact instead of the terminal
	Out    string // export path, "-" for stdout, empty for a timestamped file
	Format string // export format, empty for the configured format
	Relay  string // bind address for the relay, empty for none
}

// Tether streams live telemetry until the flight controller goes away or
// ctx is cancelled. With a relay bind address the stream is also served to
// remote viewers (see Watch).
func Tether(ctx context.Context, cfg config.Config, logger *log.Logger, opts TetherOptions) error {
	mode := session.ModeHuman
	if opts.Export {
		mode = session.ModeExport
	}

	format, path := "", ""
	if opts.Export {
		format = opts.Format
		if format == "" {
			format = cfg.Output.Format
		}
		if err := config.CheckFormat(format); err != nil {
			return err
		}
		path = opts.Out
		if path == "" {
			path = session.OutputPath(cfg.Output.Dir, format, time.Now())
		}
	}

	var console io.Writer = os.Stdout
	if opts.Export && opts.Out == "-" {
		console = os.Stderr
	}

	// The relay outlives the session by the time it takes to announce ENDED.
	relayCtx, stopRelay := context.WithCancel(context.Background())
	defer stopRelay()

	var rl *relay.Relay
	if opts.Relay != "" {
		rl = relay.New(relay.Options{
			Logger: logger,
			Bind:   opts.Relay,
			Port:   cfg.Serial.Port,
			Mode:   mode.String(),
		})
		if err := rl.Start(relayCtx); err != nil {
			return fmt.Errorf("starting relay: %w", err)
		}
		rl.Transition(relay.StateWaitingForPort)
		defer func() {
			rl.Transition(relay.StateEnded)
			time.Sleep(100 * time.Millisecond)
		}()
	}

	ch, err := openChannel(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer ch.Close()

	topts := session.TetherOptions{Mode: mode, Console: console}
	if rl != nil {
		topts.Relay = rl
	}

	if path != "" {
		if topts.Sink, err = session.OpenSink(format, path); err != nil {
			return err
		}
	}

	t, err := session.NewTether(ch, topts)
	if err != nil {
		if topts.Sink != nil {
			_ = topts.Sink.Close()
		}
		return err
	}

	if rl != nil {
		rl.Transition(relay.StateStreaming)
	}
	fmt.Fprintf(console, "%s %s (%s)\n", header("tethered to"), cfg.Serial.Port, mode)

	s, err := t.Run(ctx)
	fmt.Fprintln(console)
	reportEnd(console, s, err)
	if path != "" && path != "-" {
		fmt.Fprintf(console, "  %-8s %s\n", colorize(dim, "output:"), path)
	}
	return err
}
