package telemetry

import "time"

// EventType identifies the kind of relay event.
type EventType string

const (
	EventHeartbeat     EventType = "heartbeat"
	EventState         EventType = "state"
	EventRecord        EventType = "record"
	EventPassthrough   EventType = "passthrough"
	EventDecodeFailure EventType = "decode_failure"
)

// Event is the base envelope shared by every event type.
type Event struct {
	Type EventType `json:"type"`
	TS   string    `json:"ts"`
}

// NowTS returns the current UTC time as an RFC 3339 nano string, matching the
// timestamp format used across all events.
func NowTS() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// Heartbeat is sent periodically so viewers can detect a stalled relay.
type Heartbeat struct {
	Event
	State         string `json:"state"`
	Port          string `json:"port"`
	Lines         int64  `json:"lines"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// StateTransition is emitted whenever the tether moves between states
// (e.g. WAITING_FOR_PORT -> STREAMING).
type StateTransition struct {
	Event
	From string `json:"from"`
	To   string `json:"to"`
}

// RecordEvent carries one decoded telemetry record. Tokens keep the wire
// text so viewers can render the same aligned columns as a local tether.
type RecordEvent struct {
	Event
	Seq    int64              `json:"seq"`
	Tokens [FieldCount]string `json:"tokens"`
	Flags  string             `json:"flags"`
}

// PassthroughEvent carries a diagnostic line from the device.
type PassthroughEvent struct {
	Event
	Seq  int64  `json:"seq"`
	Text string `json:"text"`
}

// DecodeFailureEvent reports a line that could not be decoded.
type DecodeFailureEvent struct {
	Event
	Seq    int64  `json:"seq"`
	Reason string `json:"reason"`
}

// NewLineEvent wraps a decoded line in the matching event type.
func NewLineEvent(seq int64, l Line) any {
	base := func(t EventType) Event { return Event{Type: t, TS: NowTS()} }

	switch l.Kind {
	case KindData:
		return RecordEvent{
			Event:  base(EventRecord),
			Seq:    seq,
			Tokens: l.Record.Tokens,
			Flags:  l.Record.Flags().String(),
		}
	case KindPassthrough:
		return PassthroughEvent{Event: base(EventPassthrough), Seq: seq, Text: l.Text}
	default:
		reason := FailureNotice
		if l.Err != nil {
			reason = l.Err.Error()
		}
		return DecodeFailureEvent{Event: base(EventDecodeFailure), Seq: seq, Reason: reason}
	}
}
