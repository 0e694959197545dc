package ctl

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/dustin/go-humanize"

	"github.com/large-farva/vtol-groundstation/internal/config"
	"github.com/large-farva/vtol-groundstation/internal/serialport"
	"github.com/large-farva/vtol-groundstation/internal/session"
	"github.com/large-farva/vtol-groundstation/internal/sim"
)

// openChannel opens the configured port, retrying until it appears. The
// port name "sim" opens the simulated flight controller instead.
func openChannel(ctx context.Context, cfg config.Config, logger *log.Logger) (*serialport.Channel, error) {
	opener := serialport.OpenSerial
	if cfg.Serial.Port == sim.PortName {
		opener = sim.Opener(sim.Options{LoopPeriod: cfg.Device.LoopPeriod()})
	}
	return serialport.Open(ctx, serialport.Options{
		Name:        cfg.Serial.Port,
		Baud:        cfg.Serial.Baud,
		Backoff:     cfg.Serial.RetryInterval(),
		MaxAttempts: cfg.Serial.MaxAttempts,
		Open:        opener,
		Logger:      logger,
	})
}

// reportEnd prints how a session finished. Errors themselves are printed by
// the caller; this line only says how far the session got.
func reportEnd(w io.Writer, s session.Summary, err error) {
	counts := fmt.Sprintf("%s records", humanize.Comma(int64(s.Rows)))
	if s.Failures > 0 {
		counts += fmt.Sprintf(", %s undecodable", humanize.Comma(int64(s.Failures)))
	}

	switch {
	case s.End == session.EndCancelled:
		fmt.Fprintf(w, "%s after %s\n", colorize(yellow, "cancelled"), counts)
	case err != nil:
		fmt.Fprintf(w, "%s after %s (%s)\n", colorize(red, "failed"), counts, s.End)
	default:
		fmt.Fprintf(w, "%s: %s (%s)\n", colorize(green, "finished"), counts, s.End)
	}
}
