package serialport_test

import (
	"bytes"
	"context"
	"errors"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/large-farva/vtol-groundstation/internal/serialport"
	"github.com/large-farva/vtol-groundstation/internal/serialport/porttest"
)

func openTest(t *testing.T, p *porttest.Port, failures int, logs *bytes.Buffer) *serialport.Channel {
	t.Helper()
	ch, err := serialport.Open(context.Background(), serialport.Options{
		Name:    "/dev/ttyTEST",
		Backoff: time.Millisecond,
		Poll:    5 * time.Millisecond,
		Open:    p.Opener(failures),
		Logger:  log.New(logs, "", 0),
	})
	require.NoError(t, err)
	return ch
}

func TestOpenRetries(t *testing.T) {
	var logs bytes.Buffer
	ch := openTest(t, porttest.New(), 3, &logs)
	defer ch.Close()

	require.True(t, ch.IsOpen())
	require.Equal(t, 3, strings.Count(logs.String(), "waiting for port /dev/ttyTEST"))
	require.Contains(t, logs.String(), "opened port /dev/ttyTEST")
}

func TestOpenCancelled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := serialport.Open(ctx, serialport.Options{
		Name:    "/dev/ttyTEST",
		Backoff: 5 * time.Millisecond,
		Open:    porttest.New().Opener(1 << 30),
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.False(t, errors.Is(err, serialport.ErrTransportClosed))
}

func TestOpenMaxAttempts(t *testing.T) {
	_, err := serialport.Open(context.Background(), serialport.Options{
		Name:        "/dev/ttyTEST",
		Backoff:     time.Millisecond,
		MaxAttempts: 2,
		Open:        porttest.New().Opener(5),
	})
	require.ErrorIs(t, err, serialport.ErrPortUnavailable)
}

func TestReadLine(t *testing.T) {
	p := porttest.New("hel", "lo\nwor", "ld\n", "partial")
	ch := openTest(t, p, 0, &bytes.Buffer{})
	defer ch.Close()

	ctx := context.Background()
	line, err := ch.ReadLine(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, "hello\n", string(line))

	line, err = ch.ReadLine(ctx, time.Second)
	require.NoError(t, err)
	require.Equal(t, "world\n", string(line))

	line, err = ch.ReadLine(ctx, 20*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, "partial", string(line))

	line, err = ch.ReadLine(ctx, 20*time.Millisecond)
	require.NoError(t, err)
	require.Empty(t, line)
}

func TestReadLineCancelled(t *testing.T) {
	ch := openTest(t, porttest.New(), 0, &bytes.Buffer{})
	defer ch.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := ch.ReadLine(ctx, 0)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestReadLineTransportError(t *testing.T) {
	p := porttest.New()
	p.ReadErr = errors.New("device disconnected")
	ch := openTest(t, p, 0, &bytes.Buffer{})
	defer ch.Close()

	_, err := ch.ReadLine(context.Background(), 0)
	require.ErrorIs(t, err, serialport.ErrTransportClosed)
	require.Contains(t, err.Error(), "device disconnected")
}

func TestWrite(t *testing.T) {
	p := porttest.New()
	ch := openTest(t, p, 0, &bytes.Buffer{})

	require.NoError(t, ch.Write([]byte("d")))
	require.Equal(t, "d", p.Written())

	require.NoError(t, ch.Close())
	require.ErrorIs(t, ch.Write([]byte("r")), serialport.ErrTransportClosed)
}

func TestCloseIdempotent(t *testing.T) {
	var logs bytes.Buffer
	p := porttest.New()
	ch := openTest(t, p, 0, &logs)

	require.NoError(t, ch.Close())
	require.NoError(t, ch.Close())
	require.False(t, ch.IsOpen())
	require.Equal(t, 1, p.Closes())
	require.Equal(t, 1, strings.Count(logs.String(), "closed port"))

	_, err := ch.ReadLine(context.Background(), time.Millisecond)
	require.ErrorIs(t, err, serialport.ErrTransportClosed)
}
