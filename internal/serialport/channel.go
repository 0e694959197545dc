// Package serialport owns the serial link to the flight controller: opening
// it with a blocking retry, line-oriented reads with a deadline, raw writes,
// and an idempotent close.
package serialport

import (
	"bytes"
	"context"
	"io"
	"log"
	"time"

	"go.bug.st/serial"
)

// DefaultBaud is the flight controller's USB CDC rate.
const DefaultBaud = 115200

// Port is the subset of serial.Port a Channel needs.
type Port interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
}

// OpenFunc opens a port by name.
type OpenFunc func(name string, baud int) (Port, error)

// OpenSerial opens a hardware serial port with 8N1 framing.
func OpenSerial(name string, baud int) (Port, error) {
	return serial.Open(name, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
}

// Options configures Open.
type Options struct {
	Name string
	Baud int

	// Backoff is the pause between failed open attempts. Defaults to 1s.
	Backoff time.Duration
	// MaxAttempts bounds the retry loop; 0 retries until ctx is cancelled.
	MaxAttempts int
	// Poll bounds a single blocking read so cancellation is noticed.
	// Defaults to 100ms.
	Poll time.Duration

	Open   OpenFunc
	Logger *log.Logger
}

// Channel is an open serial link. It is not safe for concurrent use; a
// session owns its channel exclusively.
type Channel struct {
	name    string
	port    Port
	log     *log.Logger
	poll    time.Duration
	timeout time.Duration // last value passed to SetReadTimeout
	pending []byte
	buf     []byte
	closed  bool
}

// Open blocks until the port opens, ctx is cancelled, or MaxAttempts is
// exhausted. Each failure is reported as a "waiting for port" notice.
// Cancellation returns ctx.Err(), never a transport error.
func Open(ctx context.Context, opts Options) (*Channel, error) {
	if opts.Baud <= 0 {
		opts.Baud = DefaultBaud
	}
	if opts.Backoff <= 0 {
		opts.Backoff = time.Second
	}
	if opts.Poll <= 0 {
		opts.Poll = 100 * time.Millisecond
	}
	if opts.Open == nil {
		opts.Open = OpenSerial
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		p, err := opts.Open(opts.Name, opts.Baud)
		if err == nil {
			logger.Printf("opened port %s", opts.Name)
			return &Channel{
				name: opts.Name,
				port: p,
				log:  logger,
				poll: opts.Poll,
				buf:  make([]byte, 512),
			}, nil
		}

		if opts.MaxAttempts > 0 && attempt >= opts.MaxAttempts {
			return nil, portUnavailable(opts.Name, attempt, err)
		}
		logger.Printf("waiting for port %s", opts.Name)

		t := time.NewTimer(opts.Backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}

// Name returns the port name the channel was opened with.
func (c *Channel) Name() string {
	return c.name
}

// IsOpen reports whether Close has not yet been called.
func (c *Channel) IsOpen() bool {
	return !c.closed
}

// ReadLine returns the next newline-terminated line, including the newline.
// With timeout > 0 it returns whatever arrived before the deadline, which is
// empty when the device stayed silent. With timeout == 0 it blocks until a
// full line arrives, ctx is cancelled, or the channel fails.
func (c *Channel) ReadLine(ctx context.Context, timeout time.Duration) ([]byte, error) {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	for {
		if i := bytes.IndexByte(c.pending, '\n'); i >= 0 {
			return c.take(i + 1), nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if c.closed {
			return nil, ErrTransportClosed
		}

		wait := c.poll
		if !deadline.IsZero() {
			left := time.Until(deadline)
			if left <= 0 {
				return c.take(len(c.pending)), nil
			}
			if left < wait {
				wait = left
			}
		}

		if wait != c.timeout {
			if err := c.port.SetReadTimeout(wait); err != nil {
				return nil, c.transportErr("set read timeout", err)
			}
			c.timeout = wait
		}

		n, err := c.port.Read(c.buf)
		c.pending = append(c.pending, c.buf[:n]...)
		if err != nil {
			return nil, c.transportErr("read", err)
		}
	}
}

func (c *Channel) take(n int) []byte {
	line := make([]byte, n)
	copy(line, c.pending[:n])
	c.pending = c.pending[n:]
	return line
}

// Write sends p in full.
func (c *Channel) Write(p []byte) error {
	if c.closed {
		return ErrTransportClosed
	}
	if _, err := c.port.Write(p); err != nil {
		return c.transportErr("write", err)
	}
	return nil
}

// Close releases the port. Calling it again is a no-op.
func (c *Channel) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	err := c.port.Close()
	c.log.Printf("closed port %s", c.name)
	return err
}
