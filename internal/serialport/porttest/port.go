// Package porttest provides a scripted serial port for tests.
package porttest

import (
	"bytes"
	"errors"
	"sync"
	"time"

	"github.com/large-farva/vtol-groundstation/internal/serialport"
)

// ErrClosed is returned by reads and writes after Close.
var ErrClosed = errors.New("porttest: port closed")

// Port replays scripted chunks to readers and records writes. Once the
// script runs out, reads behave like a silent device: they wait for the
// configured read timeout and return nothing, or fail with ReadErr when set.
type Port struct {
	mu       sync.Mutex
	chunks   [][]byte
	written  bytes.Buffer
	timeout  time.Duration
	closed   bool
	closes   int
	ReadErr  error
	WriteErr error
}

// New returns a port that will deliver lines in order.
func New(lines ...string) *Port {
	p := &Port{}
	for _, l := range lines {
		p.chunks = append(p.chunks, []byte(l))
	}
	return p
}

// Feed appends raw chunks to the script.
func (p *Port) Feed(chunks ...[]byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.chunks = append(p.chunks, chunks...)
}

func (p *Port) Read(b []byte) (int, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return 0, ErrClosed
	}
	if len(p.chunks) > 0 {
		n := copy(b, p.chunks[0])
		if n < len(p.chunks[0]) {
			p.chunks[0] = p.chunks[0][n:]
		} else {
			p.chunks = p.chunks[1:]
		}
		p.mu.Unlock()
		return n, nil
	}
	readErr, timeout := p.ReadErr, p.timeout
	p.mu.Unlock()

	if readErr != nil {
		return 0, readErr
	}
	time.Sleep(timeout)
	return 0, nil
}

func (p *Port) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, ErrClosed
	}
	if p.WriteErr != nil {
		return 0, p.WriteErr
	}
	return p.written.Write(b)
}

func (p *Port) SetReadTimeout(t time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.timeout = t
	return nil
}

func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.closes++
	return nil
}

// Written returns everything written so far.
func (p *Port) Written() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written.String()
}

// Closes returns how many times Close reached the port.
func (p *Port) Closes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closes
}

// Opener returns an OpenFunc that fails the first failures calls and then
// hands out p.
func (p *Port) Opener(failures int) serialport.OpenFunc {
	var calls int
	return func(name string, baud int) (serialport.Port, error) {
		calls++
		if calls <= failures {
			return nil, errors.New("porttest: no such device")
		}
		return p, nil
	}
}
