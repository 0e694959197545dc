// Package command sends the flight controller's single-byte control
// commands. Dispatch is fire-and-forget: success means the byte was
// written, not that the device acted on it.
package command

import (
	"fmt"
	"strings"
)

// Command is one control byte understood by the firmware.
type Command byte

const (
	Bootsel  Command = 'b' // reboot into the USB mass-storage bootloader
	Reboot   Command = 'r'
	DumpLogs Command = 'd' // print every stored log record
)

var names = map[Command]string{
	Bootsel:  "bootsel",
	Reboot:   "reboot",
	DumpLogs: "dump_logs",
}

func (c Command) String() string {
	if n, ok := names[c]; ok {
		return n
	}
	return fmt.Sprintf("command(%q)", byte(c))
}

// Parse maps a command name ("bootsel", "reboot", "dump_logs" or "dump")
// to its byte.
func Parse(name string) (Command, error) {
	switch strings.ToLower(name) {
	case "bootsel":
		return Bootsel, nil
	case "reboot":
		return Reboot, nil
	case "dump", "dump_logs", "dump-logs":
		return DumpLogs, nil
	}
	return 0, fmt.Errorf("unknown command %q", name)
}

// Writer is satisfied by *serialport.Channel.
type Writer interface {
	Write(p []byte) error
}

// Send writes c once. Write errors are returned unchanged so the caller
// can end its session; there is no retry.
func Send(w Writer, c Command) error {
	if _, ok := names[c]; !ok {
		return fmt.Errorf("send %s: not a known command", c)
	}
	if err := w.Write([]byte{byte(c)}); err != nil {
		return fmt.Errorf("send %s: %w", c, err)
	}
	return nil
}
