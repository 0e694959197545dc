package ctl

import (
	"fmt"
	"net/http"
	"strings"
)

// HealthReport is what fcctl health prints with --json.
type HealthReport struct {
	URL     string `json:"url"`
	Healthy bool   `json:"healthy"`
	State   string `json:"state,omitempty"`
	Port    string `json:"port,omitempty"`
	Viewers int64  `json:"viewers"`
	Error   string `json:"error,omitempty"`
}

// checkHealth probes /healthz and, when the relay answers, reads which
// tether state it is serving from /api/status.
func checkHealth(baseURL string) HealthReport {
	rep := HealthReport{URL: baseURL}

	code, _, err := getRaw(baseURL, "/healthz")
	if err != nil {
		rep.Error = err.Error()
		return rep
	}
	if code != http.StatusOK {
		rep.Error = fmt.Sprintf("healthz returned HTTP %d", code)
		return rep
	}
	rep.Healthy = true

	var s StatusResponse
	if err := getJSON(baseURL, "/api/status", &s); err != nil {
		rep.Error = err.Error()
		return rep
	}
	rep.State = s.State
	rep.Port = s.Port
	rep.Viewers = s.Viewers
	return rep
}

// Health reports whether a relay is reachable and what it is relaying. A
// reachable relay whose tether has ENDED is reported, not treated as an error.
func Health(baseURL string, jsonOutput bool) error {
	rep := checkHealth(strings.TrimRight(baseURL, "/"))

	if jsonOutput {
		return printJSON(rep)
	}
	if !rep.Healthy {
		return fmt.Errorf("relay at %s: %s", rep.URL, rep.Error)
	}

	fmt.Println()
	fmt.Printf("  %s  %s", colorize(green, "HEALTHY"), colorize(dim, rep.URL))
	if rep.State != "" {
		fmt.Printf("  %s on %s, %d viewing", colorize(stateColor(rep.State), rep.State), rep.Port, rep.Viewers)
	}
	fmt.Println()
	fmt.Println()
	return nil
}
