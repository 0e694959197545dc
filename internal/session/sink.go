package session

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/large-farva/vtol-groundstation/internal/config"
	"github.com/large-farva/vtol-groundstation/internal/telemetry"
)

// Sink is the single output artifact of a session. Rows are written in
// order; Close flushes and releases the artifact and is safe to call on
// any exit path.
type Sink interface {
	Header(cols []string) error
	Row(fields []string) error
	// Failure records a line that could not be decoded.
	Failure() error
	Close() error
}

// Separator joins fields in tabular text output.
const Separator = ", "

// TextSink writes comma-space separated rows.
type TextSink struct {
	w      *bufio.Writer
	c      io.Closer
	closed bool
}

// NewTextSink wraps w. When w is an io.Closer it is closed by Close.
func NewTextSink(w io.Writer) *TextSink {
	s := &TextSink{w: bufio.NewWriter(w)}
	if c, ok := w.(io.Closer); ok {
		s.c = c
	}
	return s
}

func (s *TextSink) Header(cols []string) error {
	return s.line(strings.Join(cols, Separator))
}

func (s *TextSink) Row(fields []string) error {
	return s.line(strings.Join(fields, Separator))
}

func (s *TextSink) Failure() error {
	return s.line(telemetry.FailureNotice)
}

func (s *TextSink) line(text string) error {
	if _, err := s.w.WriteString(text); err != nil {
		return err
	}
	return s.w.WriteByte('\n')
}

func (s *TextSink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	err := s.w.Flush()
	if s.c != nil {
		if cErr := s.c.Close(); cErr != nil && err == nil {
			err = cErr
		}
	}
	return err
}

// OutputPath builds a timestamped artifact name under dir.
func OutputPath(dir, format string, now time.Time) string {
	ext := "csv"
	if format == config.FormatSQLite {
		ext = "sqlite"
	}
	return filepath.Join(dir, fmt.Sprintf("flight_%s.%s", now.UTC().Format("20060102T150405Z"), ext))
}

// OpenSink creates the artifact at path. "-" writes text rows to stdout.
func OpenSink(format, path string) (Sink, error) {
	if path == "-" {
		return NewTextSink(nopCloser{os.Stdout}), nil
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create output dir: %w", err)
		}
	}

	switch format {
	case config.FormatSQLite:
		return NewSQLiteSink(path)
	case config.FormatCSV, "":
		f, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("create output: %w", err)
		}
		return NewTextSink(f), nil
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
