// Package session drives the two long-running conversations with the flight
// controller: pulling the stored flight log out of flash, and tethering to
// the live telemetry stream.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/large-farva/vtol-groundstation/internal/command"
	"github.com/large-farva/vtol-groundstation/internal/telemetry"
)

// Conn is the part of *serialport.Channel a session uses.
type Conn interface {
	ReadLine(ctx context.Context, timeout time.Duration) ([]byte, error)
	Write(p []byte) error
	IsOpen() bool
}

// EndReason records why a session loop stopped.
type EndReason int

const (
	EndCountReached EndReason = iota // read the full flash region
	EndTimeout                       // device went quiet
	EndSentinel                      // device sent the end-of-log record
	EndClosed                        // channel closed
	EndCancelled                     // user interrupt
	EndTransportError
	EndOutputError
)

func (r EndReason) String() string {
	switch r {
	case EndCountReached:
		return "record count reached"
	case EndTimeout:
		return "device went quiet"
	case EndSentinel:
		return "end-of-log marker"
	case EndClosed:
		return "channel closed"
	case EndCancelled:
		return "cancelled"
	case EndTransportError:
		return "transport error"
	case EndOutputError:
		return "output error"
	default:
		return fmt.Sprintf("end(%d)", int(r))
	}
}

// Summary describes a finished session.
type Summary struct {
	Lines       int // lines read from the channel
	Rows        int // data rows written
	Failures    int // undecodable lines
	Passthrough int // diagnostic lines from the device
	End         EndReason
}

// ExtractOptions configures Extract.
type ExtractOptions struct {
	RecordCount int           // upper bound on lines read
	LoopPeriod  time.Duration // elapsed time per stored record
	ReadTimeout time.Duration // silence that ends the dump

	// Console receives progress and device diagnostics. May be nil.
	Console io.Writer
}

// ExtractHeader is the first row of an extraction artifact.
func ExtractHeader() []string {
	return append([]string{"time"}, telemetry.Columns[:]...)
}

// Extract requests a flash dump and copies every stored record into sink,
// stamping each with its elapsed flight time. It stops on the first of:
// RecordCount lines read, an empty read, or the sentinel record. Lines that
// fail to decode are written as placeholders and never abort the dump.
// The sink is closed before Extract returns.
func Extract(ctx context.Context, conn Conn, sink Sink, opts ExtractOptions) (s Summary, err error) {
	defer func() {
		if cErr := sink.Close(); cErr != nil {
			err = errors.Join(err, fmt.Errorf("closing output: %w", cErr))
		}
	}()

	console := opts.Console
	if console == nil {
		console = io.Discard
	}

	if err = sink.Header(ExtractHeader()); err != nil {
		s.End = EndOutputError
		return s, fmt.Errorf("writing header: %w", err)
	}

	if err = command.Send(conn, command.DumpLogs); err != nil {
		s.End = EndTransportError
		return s, err
	}
	fmt.Fprintln(console, "requested logs from flight controller")

	dec := telemetry.Decoder{MarkerOptional: true}
	lastPct := -1
	defer fmt.Fprintln(console)

	s.End = EndCountReached
	for i := 0; i < opts.RecordCount; i++ {
		raw, rErr := conn.ReadLine(ctx, opts.ReadTimeout)
		if rErr != nil {
			if ctx.Err() != nil {
				s.End = EndCancelled
				return s, ctx.Err()
			}
			s.End = EndTransportError
			return s, rErr
		}
		if len(raw) == 0 {
			s.End = EndTimeout
			break
		}
		s.Lines++

		line := dec.Decode(raw)
		switch line.Kind {
		case telemetry.KindData:
			if line.Record.IsSentinel() {
				s.End = EndSentinel
				return s, nil
			}
			elapsed := float64(s.Rows+s.Failures) * opts.LoopPeriod.Seconds()
			row := append([]string{fmt.Sprintf("%.2f", elapsed)}, line.Record.Tokens[:]...)
			if err = sink.Row(row); err != nil {
				s.End = EndOutputError
				return s, fmt.Errorf("writing row: %w", err)
			}
			s.Rows++

		case telemetry.KindPassthrough:
			s.Passthrough++
			fmt.Fprintf(console, "\r%s\n", line.Text)

		case telemetry.KindFailure:
			if err = sink.Failure(); err != nil {
				s.End = EndOutputError
				return s, fmt.Errorf("writing row: %w", err)
			}
			s.Failures++
		}

		if pct := 1 + i*100/opts.RecordCount; pct != lastPct {
			fmt.Fprintf(console, "\r%d%%", pct)
			lastPct = pct
		}
	}

	return s, nil
}
