// Package config handles loading, defaulting, and validation of the fcctl
// TOML configuration file. Every section maps to a typed struct so the rest
// of the codebase gets strong typing without manual key lookups.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config is the top-level configuration, mirroring the TOML sections.
type Config struct {
	Serial  SerialConfig  `toml:"serial"  json:"serial"`
	Device  DeviceConfig  `toml:"device"  json:"device"`
	Output  OutputConfig  `toml:"output"  json:"output"`
	Relay   RelayConfig   `toml:"relay"   json:"relay"`
	Logging LoggingConfig `toml:"logging" json:"logging"`
}

type SerialConfig struct {
	Port          string `toml:"port"            json:"port"`
	Baud          int    `toml:"baud"            json:"baud"`
	RetryMillis   int    `toml:"retry_ms"        json:"retry_ms"`
	MaxAttempts   int    `toml:"max_attempts"    json:"max_attempts"`
	ReadTimeoutMS int    `toml:"read_timeout_ms" json:"read_timeout_ms"`
}

// DeviceConfig describes the flash layout and control loop of the firmware
// image. The defaults match the RP2040 build.
type DeviceConfig struct {
	FlashSize    int `toml:"flash_size"     json:"flash_size"`
	LogStart     int `toml:"log_start"      json:"log_start"`
	RecordSize   int `toml:"record_size"    json:"record_size"`
	LoopPeriodMS int `toml:"loop_period_ms" json:"loop_period_ms"`
}

type OutputConfig struct {
	Dir    string `toml:"dir"    json:"dir"`
	Format string `toml:"format" json:"format"`
}

type RelayConfig struct {
	Bind string `toml:"bind" json:"bind"`
}

type LoggingConfig struct {
	Debug bool `toml:"debug" json:"debug"`
}

// Output formats.
const (
	FormatCSV    = "csv"
	FormatSQLite = "sqlite"
)

// Default returns a Config populated with sane defaults. Values here are
// used whenever the TOML file omits a field.
func Default() Config {
	return Config{
		Serial: SerialConfig{
			Port:          "/dev/ttyACM0",
			Baud:          115200,
			RetryMillis:   1000,
			MaxAttempts:   0,
			ReadTimeoutMS: 3000,
		},
		Device: DeviceConfig{
			FlashSize:    2 * 1024 * 1024,
			LogStart:     128 * 1024,
			RecordSize:   64,
			LoopPeriodMS: 20,
		},
		Output: OutputConfig{
			Dir:    ".",
			Format: FormatCSV,
		},
	}
}

// Load reads the TOML file at path, layers it on top of the defaults, and
// validates the result. An error is returned if the file can't be read,
// parsed, or if any constraint is violated.
func Load(path string) (Config, error) {
	cfg := Default()

	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	if err := toml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Validate checks constraints that Load enforces. Callers that override
// fields after loading should run it again.
func Validate(cfg Config) error {
	if cfg.Serial.Port == "" {
		return errors.New("serial.port must not be empty")
	}
	if cfg.Serial.Baud <= 0 {
		return errors.New("serial.baud must be > 0")
	}
	if cfg.Serial.RetryMillis <= 0 {
		return errors.New("serial.retry_ms must be > 0")
	}
	if cfg.Serial.MaxAttempts < 0 {
		return errors.New("serial.max_attempts must be >= 0")
	}
	if cfg.Serial.ReadTimeoutMS <= 0 {
		return errors.New("serial.read_timeout_ms must be > 0")
	}
	if cfg.Device.RecordSize <= 0 {
		return errors.New("device.record_size must be > 0")
	}
	if cfg.Device.LogStart < 0 || cfg.Device.LogStart >= cfg.Device.FlashSize {
		return errors.New("device.log_start must be inside flash")
	}
	if cfg.Device.LoopPeriodMS <= 0 {
		return errors.New("device.loop_period_ms must be > 0")
	}
	return CheckFormat(cfg.Output.Format)
}

// CheckFormat rejects output formats no sink can write.
func CheckFormat(format string) error {
	switch format {
	case FormatCSV, FormatSQLite:
		return nil
	default:
		return fmt.Errorf("output.format must be %q or %q, got %q", FormatCSV, FormatSQLite, format)
	}
}

// RecordCount is the number of log records the flash region can hold.
func (d DeviceConfig) RecordCount() int {
	return (d.FlashSize - d.LogStart) / d.RecordSize
}

// LoopPeriod is the control loop interval, one stored record per loop.
func (d DeviceConfig) LoopPeriod() time.Duration {
	return time.Duration(d.LoopPeriodMS) * time.Millisecond
}

func (s SerialConfig) RetryInterval() time.Duration {
	return time.Duration(s.RetryMillis) * time.Millisecond
}

func (s SerialConfig) ReadTimeout() time.Duration {
	return time.Duration(s.ReadTimeoutMS) * time.Millisecond
}
