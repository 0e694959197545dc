package ctl

import (
	"context"
	"fmt"
	"log"

	"github.com/large-farva/vtol-groundstation/internal/command"
	"github.com/large-farva/vtol-groundstation/internal/config"
)

// Send opens the port, writes one command byte and closes the port again.
// The flight controller does not answer; after bootsel or reboot it drops
// off the bus.
func Send(ctx context.Context, cfg config.Config, logger *log.Logger, c command.Command) error {
	ch, err := openChannel(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := command.Send(ch, c); err != nil {
		return err
	}

	fmt.Printf("  %s %s to %s\n", colorize(green, "sent"), colorize(bold, c.String()), cfg.Serial.Port)
	return nil
}
