package ctl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/large-farva/vtol-groundstation/internal/telemetry"
)

// WatchOptions controls the watch command behavior.
type WatchOptions struct {
	Filter []string // event types to show (empty = all)
	JSON   bool     // output raw JSON per event
}

// Watch connects to a relay's WebSocket endpoint and renders the tether's
// events until ctx is cancelled or the relay goes away.
func Watch(ctx context.Context, baseURL string, opts WatchOptions) error {
	endpoint, err := wsURL(baseURL)
	if err != nil {
		return err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	if !opts.JSON {
		fmt.Println()
		fmt.Printf("  %s %s\n", colorize(green, "connected"), colorize(dim, endpoint))
		if len(opts.Filter) > 0 {
			fmt.Printf("  %s %s\n", colorize(dim, "filter:"), colorize(dim, strings.Join(opts.Filter, ", ")))
		}
		fmt.Println(colorize(dim, "  "+strings.Repeat("─", 50)))
		fmt.Println()
	}

	filterSet := make(map[string]bool, len(opts.Filter))
	for _, f := range opts.Filter {
		filterSet[f] = true
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}

			if len(filterSet) > 0 {
				var ev map[string]any
				if err := json.Unmarshal(msg, &ev); err == nil {
					evType, _ := ev["type"].(string)
					if !filterSet[evType] {
						continue
					}
				}
			}

			if opts.JSON {
				fmt.Println(string(msg))
			} else {
				renderEvent(os.Stdout, msg)
			}
		}
	}()

	select {
	case <-ctx.Done():
		if !opts.JSON {
			fmt.Println()
			fmt.Println(colorize(dim, "  disconnecting..."))
		}
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
			time.Now().Add(1*time.Second),
		)
		return nil
	case <-done:
		if !opts.JSON {
			fmt.Println()
			fmt.Println(colorize(dim, "  relay closed the connection"))
		}
		return nil
	}
}

// renderEvent parses a JSON event and prints it in a human-friendly format.
// Falls back to raw JSON for unrecognized event types.
func renderEvent(w io.Writer, raw []byte) {
	var ev map[string]any
	if err := json.Unmarshal(raw, &ev); err != nil {
		fmt.Fprintf(w, "  %s\n", string(raw))
		return
	}

	evType, _ := ev["type"].(string)
	ts := formatEventTime(ev)

	switch telemetry.EventType(evType) {
	case telemetry.EventHeartbeat:
		state, _ := ev["state"].(string)
		uptime, _ := ev["uptime_seconds"].(float64)
		lines, _ := ev["lines"].(float64)
		fmt.Fprintf(w, "  %s %s  %s  %d lines  up %s\n",
			colorize(dim, ts),
			colorize(dim, "heartbeat"),
			colorize(stateColor(state), state),
			int64(lines),
			colorize(dim, formatDuration(time.Duration(uptime)*time.Second)),
		)

	case telemetry.EventState:
		from, _ := ev["from"].(string)
		to, _ := ev["to"].(string)
		fmt.Fprintf(w, "  %s %s  %s %s %s\n",
			colorize(dim, ts),
			colorize(bold, "STATE"),
			colorize(stateColor(from), from),
			colorize(dim, "->"),
			colorize(stateColor(to), to),
		)

	case telemetry.EventRecord:
		tokens := eventTokens(ev)
		if tokens == nil {
			fmt.Fprintf(w, "  %s %s\n", colorize(dim, ts), colorize(red, "malformed record event"))
			return
		}
		flags, _ := ev["flags"].(string)
		flagStr := colorize(dim, flags)
		if flags != "none" {
			flagStr = colorize(yellow, flags)
		}
		fmt.Fprintf(w, "%s  %s\n", telemetry.FormatTokens(tokens), flagStr)

	case telemetry.EventPassthrough:
		text, _ := ev["text"].(string)
		fmt.Fprintf(w, "  %s %s  %s\n", colorize(dim, ts), colorize(cyan, "device"), text)

	case telemetry.EventDecodeFailure:
		reason, _ := ev["reason"].(string)
		fmt.Fprintf(w, "  %s %s  %s\n", colorize(dim, ts), colorize(red, "ERROR"), reason)

	default:
		pretty, err := json.MarshalIndent(ev, "  ", "  ")
		if err != nil {
			fmt.Fprintf(w, "  %s\n", string(raw))
			return
		}
		fmt.Fprintf(w, "  %s\n", string(pretty))
	}
}

// eventTokens extracts the record tokens from a decoded record event, or nil
// when the event does not carry a full record.
func eventTokens(ev map[string]any) []string {
	raw, ok := ev["tokens"].([]any)
	if !ok || len(raw) != telemetry.FieldCount {
		return nil
	}
	tokens := make([]string, len(raw))
	for i, v := range raw {
		s, ok := v.(string)
		if !ok {
			return nil
		}
		tokens[i] = s
	}
	return tokens
}

// formatEventTime extracts and shortens the timestamp from an event.
func formatEventTime(ev map[string]any) string {
	tsRaw, ok := ev["ts"].(string)
	if !ok {
		return "        "
	}
	t, err := time.Parse(time.RFC3339Nano, tsRaw)
	if err != nil {
		return tsRaw
	}
	return t.Local().Format("15:04:05")
}
