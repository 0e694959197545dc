package ctl

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// StatusResponse mirrors the JSON returned by a relay's GET /api/status.
type StatusResponse struct {
	Name          string `json:"name"`
	Version       string `json:"version"`
	State         string `json:"state"`
	Port          string `json:"port"`
	Mode          string `json:"mode"`
	Lines         int64  `json:"lines"`
	Viewers       int64  `json:"viewers"`
	Dropped       int64  `json:"dropped"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// Status fetches a relay's status and prints a formatted summary.
func Status(baseURL string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	var s StatusResponse
	if err := getJSON(baseURL, "/api/status", &s); err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(s)
	}

	uptime := formatDuration(time.Duration(s.UptimeSeconds) * time.Second)
	stateStr := colorize(stateColor(s.State), s.State)

	fmt.Println()
	fmt.Println(header("  TETHER RELAY STATUS"))
	fmt.Println(colorize(dim, "  "+strings.Repeat("─", 38)))
	fmt.Printf("  %-12s %s\n", colorize(dim, "Relay:"), s.Name+" "+s.Version)
	fmt.Printf("  %-12s %s\n", colorize(dim, "State:"), stateStr)
	fmt.Printf("  %-12s %s\n", colorize(dim, "Port:"), s.Port)
	fmt.Printf("  %-12s %s\n", colorize(dim, "Mode:"), s.Mode)
	fmt.Printf("  %-12s %s\n", colorize(dim, "Lines:"), humanize.Comma(s.Lines))
	fmt.Printf("  %-12s %d\n", colorize(dim, "Viewers:"), s.Viewers)
	if s.Dropped > 0 {
		fmt.Printf("  %-12s %s\n", colorize(dim, "Dropped:"), colorize(yellow, humanize.Comma(s.Dropped)))
	}
	fmt.Printf("  %-12s %s\n", colorize(dim, "Uptime:"), uptime)
	fmt.Printf("  %-12s %s\n", colorize(dim, "Host:"), baseURL)
	fmt.Println()

	return nil
}
