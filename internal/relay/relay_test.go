package relay

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/large-farva/vtol-groundstation/internal/telemetry"
)

func startRelay(t *testing.T) (*Relay, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	r := New(Options{
		Logger: log.New(io.Discard, "", 0),
		Bind:   "127.0.0.1:0",
		Port:   "sim",
		Mode:   "human",
	})
	require.NoError(t, r.Start(ctx))
	t.Cleanup(cancel)
	return r, cancel
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	var ev map[string]any
	require.NoError(t, json.Unmarshal(msg, &ev))
	return ev
}

func TestRelayBroadcast(t *testing.T) {
	r, _ := startRelay(t)
	r.Transition(StateStreaming)

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+r.Addr().String()+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	ev := readEvent(t, conn)
	require.Equal(t, "state", ev["type"])
	require.Equal(t, StateStreaming, ev["to"])

	// the hub registers the viewer asynchronously
	require.Eventually(t, func() bool { return r.wsHub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	l := telemetry.Decode([]byte("log: 1 2 3 4 5 6 0.5 0.5 0.5 0 0 0 0 0 0 0 0 -100 -100 0 1 0 0 32\n"))
	r.Observe(1, l)
	r.Observe(2, telemetry.Decode([]byte("imu ok\n")))

	ev = readEvent(t, conn)
	require.Equal(t, "record", ev["type"])
	require.Equal(t, float64(1), ev["seq"])
	require.Equal(t, "WAITING", ev["flags"])
	tokens := ev["tokens"].([]any)
	require.Len(t, tokens, telemetry.FieldCount)
	require.Equal(t, "0.5", tokens[telemetry.CurrentRoll])

	ev = readEvent(t, conn)
	require.Equal(t, "passthrough", ev["type"])
	require.Equal(t, "imu ok", ev["text"])
}

func TestRelayStatus(t *testing.T) {
	r, _ := startRelay(t)
	r.Observe(7, telemetry.Decode([]byte("hello\n")))

	resp, err := http.Get("http://" + r.Addr().String() + "/api/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	var status map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	require.Equal(t, "sim", status["port"])
	require.Equal(t, StateBooting, status["state"])
	require.Equal(t, float64(7), status["lines"])

	resp, err = http.Get("http://" + r.Addr().String() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
