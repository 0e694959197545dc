package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fcctl.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, Validate(cfg))
	require.Equal(t, 30720, cfg.Device.RecordCount())
	require.Equal(t, 20*time.Millisecond, cfg.Device.LoopPeriod())
	require.Equal(t, time.Second, cfg.Serial.RetryInterval())
	require.Equal(t, 3*time.Second, cfg.Serial.ReadTimeout())
	require.Equal(t, 115200, cfg.Serial.Baud)
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
[serial]
port = "/dev/ttyUSB1"

[device]
flash_size = 1048576
record_size = 32

[output]
format = "sqlite"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/dev/ttyUSB1", cfg.Serial.Port)
	require.Equal(t, 115200, cfg.Serial.Baud)
	require.Equal(t, (1048576-131072)/32, cfg.Device.RecordCount())
	require.Equal(t, FormatSQLite, cfg.Output.Format)
}

func TestLoadInvalid(t *testing.T) {
	testCases := []struct {
		name string
		body string
	}{
		{name: "bad toml", body: "[serial\nport ="},
		{name: "zero baud", body: "[serial]\nbaud = 0"},
		{name: "log start outside flash", body: "[device]\nlog_start = 4194304"},
		{name: "unknown format", body: "[output]\nformat = \"xlsx\""},
		{name: "negative attempts", body: "[serial]\nmax_attempts = -1"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.body))
			require.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
