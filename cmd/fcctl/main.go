// Fcctl is the ground-station tool for the VTOL flight controller. It sends
// control commands over the controller's USB serial port, dumps the flight
// log stored in flash, tethers to the live telemetry stream, and checks
// recorded logs for controller invariants.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/large-farva/vtol-groundstation/internal/command"
	"github.com/large-farva/vtol-groundstation/internal/config"
	"github.com/large-farva/vtol-groundstation/internal/ctl"
)

const defaultHost = "http://127.0.0.1:8090"

func main() {
	var (
		configPath = pflag.StringP("config", "c", "", "Path to config TOML (defaults apply when empty)")
		port       = pflag.StringP("port", "p", "", "Serial port, or \"sim\" for the simulator (overrides serial.port)")
		baud       = pflag.Int("baud", 0, "Baud rate (overrides serial.baud)")
		jsonOut    = pflag.Bool("json", false, "Output raw JSON instead of formatted text")
		debug      = pflag.Bool("debug", false, "Include source locations in diagnostics")
	)

	// Stop parsing global flags at the first non-flag argument (the command
	// name), so subcommand-specific flags like --export are not rejected.
	pflag.CommandLine.SetInterspersed(false)
	pflag.Parse()

	if pflag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	cmd := pflag.Arg(0)
	subArgs := pflag.Args()[1:]

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			fmt.Fprintln(os.Stderr, "error: config load failed:", err)
			os.Exit(1)
		}
	}
	if *port != "" {
		cfg.Serial.Port = *port
	}
	if *baud != 0 {
		cfg.Serial.Baud = *baud
	}
	if *debug {
		cfg.Logging.Debug = true
	}
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(2)
	}

	flags := log.LstdFlags | log.Lmicroseconds
	if cfg.Logging.Debug {
		flags |= log.Lshortfile
	}
	logger := log.New(os.Stderr, "fcctl ", flags)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch cmd {
	// ── Device commands ───────────────────────────────────────────
	case "bootsel", "reboot":
		c, _ := command.Parse(cmd)
		err = ctl.Send(ctx, cfg, logger, c)

	case "dump":
		opts := ctl.DumpOptions{}
		dumpFlags := pflag.NewFlagSet("dump", pflag.ContinueOnError)
		dumpFlags.StringVarP(&opts.Out, "out", "o", "", "Output file (\"-\" for stdout, default timestamped file in output.dir)")
		dumpFlags.StringVar(&opts.Format, "format", "", "Output format: csv or sqlite (default output.format)")
		parseOrExit(dumpFlags, subArgs)
		err = ctl.Dump(ctx, cfg, logger, opts)

	case "tether":
		opts := ctl.TetherOptions{Relay: cfg.Relay.Bind}
		tetherFlags := pflag.NewFlagSet("tether", pflag.ContinueOnError)
		tetherFlags.BoolVarP(&opts.Export, "export", "e", false, "Write records to a file instead of the terminal")
		tetherFlags.StringVarP(&opts.Out, "out", "o", "", "Export file (\"-\" for stdout, default timestamped file in output.dir)")
		tetherFlags.StringVar(&opts.Format, "format", "", "Export format: csv or sqlite (default output.format)")
		tetherFlags.StringVar(&opts.Relay, "relay", opts.Relay, "Serve the stream to viewers on this address (e.g. 0.0.0.0:8090)")
		parseOrExit(tetherFlags, subArgs)
		err = ctl.Tether(ctx, cfg, logger, opts)

	// ── Offline ───────────────────────────────────────────────────
	case "validate":
		if len(subArgs) != 1 {
			usage()
			os.Exit(2)
		}
		err = ctl.Validate(subArgs[0], *jsonOut)

	// ── Relay viewers ─────────────────────────────────────────────
	case "watch":
		opts := ctl.WatchOptions{JSON: *jsonOut}
		host := defaultHost
		watchFlags := pflag.NewFlagSet("watch", pflag.ContinueOnError)
		watchFlags.StringVarP(&host, "host", "H", defaultHost, "Relay URL")
		watchFlags.StringSliceVar(&opts.Filter, "filter", nil, "Event types to show (e.g. --filter record,state)")
		parseOrExit(watchFlags, subArgs)
		err = ctl.Watch(ctx, host, opts)

	case "status", "health":
		host := defaultHost
		hostFlags := pflag.NewFlagSet(cmd, pflag.ContinueOnError)
		hostFlags.StringVarP(&host, "host", "H", defaultHost, "Relay URL")
		parseOrExit(hostFlags, subArgs)
		if cmd == "status" {
			err = ctl.Status(host, *jsonOut)
		} else {
			err = ctl.Health(host, *jsonOut)
		}

	case "version":
		err = ctl.VersionInfo(*jsonOut)

	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(130)
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func parseOrExit(fs *pflag.FlagSet, args []string) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(2)
	}
}

func usage() {
	fmt.Print(`
  fcctl: VTOL flight controller ground-station tool

  USAGE
    fcctl [flags] <command> [command-flags]

  COMMANDS (device)
    bootsel         Reboot the controller into its USB bootloader
    reboot          Reboot the controller
    dump            Dump the flight log stored in flash to a file
    tether          Stream live telemetry (Ctrl-C to stop)

  COMMANDS (offline)
    validate FILE   Check a recorded log for controller invariants

  COMMANDS (relay)
    watch           Stream events from a relayed tether (Ctrl-C to stop)
    status          Show a relay's state and counters
    health          Check that a relay is reachable

  COMMANDS (other)
    version         Show build information

  GLOBAL FLAGS
    -c, --config PATH   Config TOML (default: built-in defaults)
    -p, --port NAME     Serial port, or "sim" for the simulator
        --baud N        Baud rate (default: 115200)
        --json          Output raw JSON instead of formatted text
        --debug         Include source locations in diagnostics

  COMMAND FLAGS
    dump:
    -o, --out PATH          Output file, "-" for stdout
        --format FMT        csv or sqlite

    tether:
    -e, --export            Write records to a file instead of the terminal
    -o, --out PATH          Export file, "-" for stdout
        --format FMT        csv or sqlite
        --relay ADDR        Serve the stream to viewers on ADDR

    watch, status, health:
    -H, --host URL          Relay URL (default: http://127.0.0.1:8090)
        --filter TYPE       Event types to show in watch (comma-separated)

  EXAMPLES
    fcctl -p /dev/ttyACM0 bootsel
    fcctl dump --out flight.csv
    fcctl -p sim dump --format sqlite
    fcctl tether
    fcctl tether --export --out - > live.csv
    fcctl tether --relay 0.0.0.0:8090
    fcctl watch --host http://192.168.8.20:8090 --filter record,state
    fcctl validate flight.csv

`)
}
