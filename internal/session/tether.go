package session

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"

	"github.com/large-farva/vtol-groundstation/internal/serialport"
	"github.com/large-farva/vtol-groundstation/internal/telemetry"
)

// Mode selects how a tether renders data lines.
type Mode int

const (
	// ModeHuman prints aligned columns with a trailing header line.
	ModeHuman Mode = iota
	// ModeExport writes rows to a sink and prints a running count.
	ModeExport
)

func (m Mode) String() string {
	if m == ModeExport {
		return "export"
	}
	return "human"
}

// Observer sees every decoded line, in order, as the tether reads it.
type Observer interface {
	Observe(seq int64, l telemetry.Line)
}

// TetherOptions fixes the rendering behaviour for the life of a tether.
type TetherOptions struct {
	Mode    Mode
	Console io.Writer
	Sink    Sink     // required for ModeExport, owned by the tether
	Relay   Observer // optional
}

// Tether renders the live telemetry stream until the channel closes.
type Tether struct {
	conn Conn
	opts TetherOptions
}

// NewTether validates opts and binds them to conn.
func NewTether(conn Conn, opts TetherOptions) (*Tether, error) {
	if opts.Mode == ModeExport && opts.Sink == nil {
		return nil, errors.New("export mode needs an output sink")
	}
	if opts.Console == nil {
		opts.Console = io.Discard
	}
	return &Tether{conn: conn, opts: opts}, nil
}

// Run reads and renders lines while the channel is open. Decode failures
// are reported in place and never end the loop. A deliberate close ends it
// normally; a transport failure or cancellation ends it with that error.
// The sink is closed before Run returns.
func (t *Tether) Run(ctx context.Context) (s Summary, err error) {
	if t.opts.Sink != nil {
		defer func() {
			if cErr := t.opts.Sink.Close(); cErr != nil {
				err = errors.Join(err, fmt.Errorf("closing output: %w", cErr))
			}
		}()
	}

	out := t.opts.Console
	if t.opts.Mode == ModeExport {
		if err = t.opts.Sink.Header(telemetry.Columns[:]); err != nil {
			s.End = EndOutputError
			return s, fmt.Errorf("writing header: %w", err)
		}
		defer fmt.Fprintln(out)
	}

	s.End = EndClosed
	for t.conn.IsOpen() {
		raw, rErr := t.conn.ReadLine(ctx, 0)
		if rErr != nil {
			if ctx.Err() != nil {
				s.End = EndCancelled
				return s, ctx.Err()
			}
			if !t.conn.IsOpen() && errors.Is(rErr, serialport.ErrTransportClosed) {
				break
			}
			s.End = EndTransportError
			return s, rErr
		}
		s.Lines++

		line := telemetry.Decode(raw)
		if t.opts.Relay != nil {
			t.opts.Relay.Observe(int64(s.Lines), line)
		}

		switch line.Kind {
		case telemetry.KindData:
			s.Rows++
			if t.opts.Mode == ModeExport {
				if err = t.opts.Sink.Row(line.Record.Tokens[:]); err != nil {
					s.End = EndOutputError
					return s, fmt.Errorf("writing row: %w", err)
				}
				fmt.Fprintf(out, "\r%s records", humanize.Comma(int64(s.Rows)))
			} else {
				fmt.Fprint(out, telemetry.FormatHuman(line.Record))
			}

		case telemetry.KindPassthrough:
			s.Passthrough++
			if t.opts.Mode == ModeHuman {
				fmt.Fprintf(out, "%s\n", line.Text)
			}

		case telemetry.KindFailure:
			s.Failures++
			if t.opts.Mode == ModeExport {
				fmt.Fprintf(out, "\nerror: %s\n", telemetry.FailureNotice)
			} else {
				fmt.Fprintf(out, "error: %s\n", telemetry.FailureNotice)
			}
		}
	}

	return s, nil
}
