package ctl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/large-farva/vtol-groundstation/internal/command"
	"github.com/large-farva/vtol-groundstation/internal/config"
	"github.com/large-farva/vtol-groundstation/internal/relay"
	"github.com/large-farva/vtol-groundstation/internal/session"
	"github.com/large-farva/vtol-groundstation/internal/sim"
	"github.com/large-farva/vtol-groundstation/internal/telemetry"
)

func simConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Serial.Port = sim.PortName
	cfg.Output.Dir = t.TempDir()
	return cfg
}

func quiet() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestDumpThenValidate(t *testing.T) {
	cfg := simConfig(t)
	path := filepath.Join(cfg.Output.Dir, "flight.csv")

	require.NoError(t, Dump(context.Background(), cfg, quiet(), DumpOptions{Out: path}))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	require.Equal(t, "time, input thro", lines[0][:len("time, input thro")])
	require.Len(t, lines, 501)
	require.True(t, strings.HasPrefix(lines[1], "0.00, "))

	require.NoError(t, Validate(path, false))
}

func TestDumpSQLite(t *testing.T) {
	cfg := simConfig(t)

	require.NoError(t, Dump(context.Background(), cfg, quiet(), DumpOptions{Format: config.FormatSQLite}))

	matches, err := filepath.Glob(filepath.Join(cfg.Output.Dir, "flight_*.sqlite"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
}

func TestDumpCancelled(t *testing.T) {
	cfg := simConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Dump(ctx, cfg, quiet(), DumpOptions{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestBadFormatRejectedBeforeOpen(t *testing.T) {
	cfg := config.Default()
	cfg.Serial.Port = filepath.Join(t.TempDir(), "ttyACM9")
	cfg.Output.Dir = t.TempDir()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := Dump(ctx, cfg, quiet(), DumpOptions{Format: "xlsx"})
	require.ErrorContains(t, err, "output.format")
	require.NotErrorIs(t, err, context.DeadlineExceeded)

	err = Tether(ctx, cfg, quiet(), TetherOptions{Export: true, Format: "xlsx"})
	require.ErrorContains(t, err, "output.format")
	require.NotErrorIs(t, err, context.DeadlineExceeded)
}

func TestHealthReportsRelayState(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rl := relay.New(relay.Options{Logger: quiet(), Bind: "127.0.0.1:0", Port: sim.PortName, Mode: "human"})
	require.NoError(t, rl.Start(ctx))
	rl.Transition(relay.StateStreaming)

	rep := checkHealth("http://" + rl.Addr().String())
	require.True(t, rep.Healthy)
	require.Empty(t, rep.Error)
	require.Equal(t, relay.StateStreaming, rep.State)
	require.Equal(t, sim.PortName, rep.Port)
	require.NoError(t, Health("http://"+rl.Addr().String()+"/", false))

	down := checkHealth("http://127.0.0.1:1")
	require.False(t, down.Healthy)
	require.NotEmpty(t, down.Error)
	require.Error(t, Health("http://127.0.0.1:1", false))
}

func TestSendSim(t *testing.T) {
	cfg := simConfig(t)
	require.NoError(t, Send(context.Background(), cfg, quiet(), command.Reboot))
}

func TestValidateFailure(t *testing.T) {
	fields := make([]string, telemetry.FieldCount)
	for i := range fields {
		fields[i] = "0"
	}
	fields[telemetry.FlagsField] = "32"

	var buf bytes.Buffer
	buf.WriteString(strings.Join(telemetry.Columns[:], session.Separator) + "\n")
	buf.WriteString(strings.Join(fields, session.Separator) + "\n")

	path := filepath.Join(t.TempDir(), "bad.csv")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	err := Validate(path, true)
	require.True(t, errors.Is(err, ErrChecksFailed))
}

func TestWSURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
		err  bool
	}{
		{in: "http://127.0.0.1:8090", want: "ws://127.0.0.1:8090/ws"},
		{in: "https://relay.local/", want: "wss://relay.local/ws"},
		{in: "ws://10.0.0.2:9000/api?x=1", want: "ws://10.0.0.2:9000/ws"},
		{in: "ftp://relay", err: true},
	}
	for _, tt := range tests {
		got, err := wsURL(tt.in)
		if tt.err {
			require.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		require.Equal(t, tt.want, got)
	}
}

func TestRenderEvent(t *testing.T) {
	line := telemetry.Decode([]byte("log: 1 2 3 4 5 6 0.5 0.5 0.5 0 0 0 0 0 0 0 0 -100 -100 0 1 0 0 32\n"))
	require.Equal(t, telemetry.KindData, line.Kind)

	b, err := json.Marshal(telemetry.NewLineEvent(1, line))
	require.NoError(t, err)

	var out bytes.Buffer
	renderEvent(&out, b)
	require.Contains(t, out.String(), telemetry.FormatTokens(line.Record.Tokens[:]))
	require.Contains(t, out.String(), "WAITING")

	b, err = json.Marshal(telemetry.NewLineEvent(2, telemetry.Decode([]byte("imu: ok\n"))))
	require.NoError(t, err)
	out.Reset()
	renderEvent(&out, b)
	require.Contains(t, out.String(), "imu: ok")
}

func TestReportEnd(t *testing.T) {
	var out bytes.Buffer
	reportEnd(&out, session.Summary{Rows: 1234, Failures: 2, End: session.EndSentinel}, nil)
	require.Contains(t, out.String(), "finished")
	require.Contains(t, out.String(), "1,234 records, 2 undecodable")

	out.Reset()
	reportEnd(&out, session.Summary{Rows: 3, End: session.EndCancelled}, context.Canceled)
	require.Contains(t, out.String(), "cancelled after 3 records")
}
