package sim

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/large-farva/vtol-groundstation/internal/serialport"
	"github.com/large-farva/vtol-groundstation/internal/session"
	"github.com/large-farva/vtol-groundstation/internal/telemetry"
	"github.com/large-farva/vtol-groundstation/internal/validate"
)

type bufCloser struct{ bytes.Buffer }

func (*bufCloser) Close() error { return nil }

func open(t *testing.T, opts Options) *serialport.Channel {
	t.Helper()
	ch, err := serialport.Open(context.Background(), serialport.Options{
		Name: PortName,
		Poll: 5 * time.Millisecond,
		Open: Opener(opts),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ch.Close() })
	return ch
}

func TestDumpRoundTrip(t *testing.T) {
	ch := open(t, Options{Stored: 250})

	var out bufCloser
	s, err := session.Extract(context.Background(), ch, session.NewTextSink(&out), session.ExtractOptions{
		RecordCount: 1000,
		LoopPeriod:  20 * time.Millisecond,
		ReadTimeout: 200 * time.Millisecond,
	})
	require.NoError(t, err)
	require.Equal(t, session.EndSentinel, s.End)
	require.Equal(t, 250, s.Rows)
	require.Equal(t, 3, s.Passthrough)
	require.Zero(t, s.Failures)

	rep, err := validate.Run(strings.NewReader(out.String()))
	require.NoError(t, err)
	require.True(t, rep.Log.Timed)
	require.Len(t, rep.Log.Rows, 250)
	for _, r := range rep.Results {
		require.NoErrorf(t, r.Err, "check %s", r.Name)
	}
}

func TestLiveStream(t *testing.T) {
	ch := open(t, Options{LoopPeriod: time.Millisecond, LiveEvery: 1})

	ctx := context.Background()
	var data int
	for i := 0; i < 10; i++ {
		raw, err := ch.ReadLine(ctx, time.Second)
		require.NoError(t, err)
		l := telemetry.Decode(raw)
		require.NotEqual(t, telemetry.KindFailure, l.Kind)
		if l.Kind == telemetry.KindData {
			data++
			require.False(t, l.Record.IsSentinel())
		}
	}
	require.GreaterOrEqual(t, data, 7)
}

func TestCommandsDetach(t *testing.T) {
	ch := open(t, Options{})
	require.NoError(t, ch.Write([]byte("r")))

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := ch.ReadLine(ctx, time.Second)
		require.NoError(t, err)
	}
	_, err := ch.ReadLine(ctx, time.Second)
	require.ErrorIs(t, err, serialport.ErrTransportClosed)
	require.ErrorIs(t, err, ErrDetached)
}

func TestSampleMotorSafety(t *testing.T) {
	for i := 0; i < 1000; i += 7 {
		s := sample(i, 20*time.Millisecond)
		flags := telemetry.Flags(s[telemetry.FlagsField])
		if flags.Has(telemetry.FlagWaiting) || s[telemetry.InputThrottle] < -95 {
			require.Equal(t, -100.0, s[telemetry.OutRightMotor])
			require.Equal(t, -100.0, s[telemetry.OutLeftMotor])
		}
	}
}
