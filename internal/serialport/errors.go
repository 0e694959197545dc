package serialport

import (
	"errors"
	"fmt"

	"go.bug.st/serial"
)

var (
	// ErrTransportClosed wraps any read or write failure on an open channel.
	// It ends the session that owns the channel.
	ErrTransportClosed = errors.New("transport closed")
	// ErrPortUnavailable is returned by Open only when MaxAttempts is set
	// and every attempt failed.
	ErrPortUnavailable = errors.New("port unavailable")
)

func (c *Channel) transportErr(op string, err error) error {
	return fmt.Errorf("%w: %s on %s: %w", ErrTransportClosed, op, c.name, err)
}

func portUnavailable(name string, attempts int, err error) error {
	return fmt.Errorf("%w: %s after %d attempts: %s", ErrPortUnavailable, name, attempts, describe(err))
}

// describe adds the driver's error code for serial.PortError values.
func describe(err error) string {
	var pe *serial.PortError
	if errors.As(err, &pe) {
		switch pe.Code() {
		case serial.PortNotFound:
			return "port not found"
		case serial.PortBusy:
			return "port busy"
		case serial.PermissionDenied:
			return "permission denied"
		}
	}
	return err.Error()
}
