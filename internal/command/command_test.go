package command

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type recorder struct {
	written []byte
	err     error
}

func (r *recorder) Write(p []byte) error {
	if r.err != nil {
		return r.err
	}
	r.written = append(r.written, p...)
	return nil
}

func TestSend(t *testing.T) {
	testCases := []struct {
		cmd    Command
		expect string
	}{
		{cmd: Bootsel, expect: "b"},
		{cmd: Reboot, expect: "r"},
		{cmd: DumpLogs, expect: "d"},
	}
	for _, tc := range testCases {
		t.Run(tc.cmd.String(), func(t *testing.T) {
			var r recorder
			require.NoError(t, Send(&r, tc.cmd))
			require.Equal(t, tc.expect, string(r.written))
		})
	}
}

func TestSendUnknown(t *testing.T) {
	var r recorder
	require.Error(t, Send(&r, Command('x')))
	require.Empty(t, r.written)
}

func TestSendWriteError(t *testing.T) {
	cause := errors.New("broken pipe")
	r := recorder{err: cause}
	err := Send(&r, Reboot)
	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "send reboot")
}

func TestParse(t *testing.T) {
	for name, expect := range map[string]Command{
		"bootsel":   Bootsel,
		"REBOOT":    Reboot,
		"dump":      DumpLogs,
		"dump_logs": DumpLogs,
	} {
		c, err := Parse(name)
		require.NoError(t, err)
		require.Equal(t, expect, c)
	}
	_, err := Parse("flash")
	require.Error(t, err)
}
