// Package relay serves a running tether session to remote viewers. It wires
// together the HTTP server and the WebSocket hub, tracks the tether's
// operating state, and turns every decoded line into a broadcast event.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/large-farva/vtol-groundstation/internal/build"
	"github.com/large-farva/vtol-groundstation/internal/telemetry"
	"github.com/large-farva/vtol-groundstation/internal/ws"
)

// Tether states reported to viewers.
const (
	StateBooting        = "BOOTING"
	StateWaitingForPort = "WAITING_FOR_PORT"
	StateStreaming      = "STREAMING"
	StateEnded          = "ENDED"
)

// Options holds everything the Relay needs from the caller.
type Options struct {
	Logger *log.Logger
	Bind   string
	Port   string // serial port name, for status
	Mode   string // tether render mode, for status
}

// Relay is the HTTP/WebSocket side of a relayed tether.
type Relay struct {
	log    *log.Logger
	bind   string
	port   string
	mode   string
	server *http.Server
	addr   net.Addr

	startedAt time.Time
	state     atomic.Value // current state string
	lines     atomic.Int64

	wsHub *ws.Hub
}

// New creates a Relay in the BOOTING state. Call Start to begin serving.
func New(opts Options) *Relay {
	r := &Relay{
		log:       opts.Logger,
		bind:      opts.Bind,
		port:      opts.Port,
		mode:      opts.Mode,
		startedAt: time.Now(),
		wsHub:     ws.NewHub(),
	}
	if r.log == nil {
		r.log = log.New(log.Writer(), "relay ", log.LstdFlags)
	}
	r.state.Store(StateBooting)
	return r
}

// Start binds the listener and serves in the background until ctx is
// cancelled. Bind errors are returned before anything is started.
func (r *Relay) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", r.handleHealthz)
	mux.HandleFunc("/api/status", r.handleStatus)
	mux.Handle("/ws", r.wsHub.Handler())

	r.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ln, err := net.Listen("tcp", r.bind)
	if err != nil {
		return err
	}
	r.addr = ln.Addr()
	r.log.Printf("relaying on ws://%s/ws", r.addr)

	go r.wsHub.Run(ctx)
	go r.heartbeatLoop(ctx)

	go func() {
		if err := r.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.log.Printf("relay server: %v", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = r.server.Shutdown(shutdownCtx)
	}()
	return nil
}

// Addr returns the bound listener address, valid after Start.
func (r *Relay) Addr() net.Addr {
	return r.addr
}

// Transition atomically updates the tether state and broadcasts the change
// to all connected viewers.
func (r *Relay) Transition(newState string) {
	old := r.state.Load().(string)
	if old == newState {
		return
	}
	r.state.Store(newState)

	r.wsHub.RetainJSON(telemetry.StateTransition{
		Event: telemetry.Event{Type: telemetry.EventState, TS: telemetry.NowTS()},
		From:  old,
		To:    newState,
	})
}

// Observe implements session.Observer.
func (r *Relay) Observe(seq int64, l telemetry.Line) {
	r.lines.Store(seq)
	r.wsHub.BroadcastJSON(telemetry.NewLineEvent(seq, l))
}

// heartbeatLoop sends a periodic heartbeat event so viewers can detect a
// stalled relay without polling.
func (r *Relay) heartbeatLoop(ctx context.Context) {
	t := time.NewTicker(10 * time.Second)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.wsHub.BroadcastJSON(telemetry.Heartbeat{
				Event:         telemetry.Event{Type: telemetry.EventHeartbeat, TS: telemetry.NowTS()},
				State:         r.state.Load().(string),
				Port:          r.port,
				Lines:         r.lines.Load(),
				UptimeSeconds: int64(time.Since(r.startedAt).Seconds()),
			})
		}
	}
}

func (r *Relay) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func (r *Relay) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{
		"name":           "fcctl",
		"version":        build.Version,
		"state":          r.state.Load().(string),
		"port":           r.port,
		"mode":           r.mode,
		"lines":          r.lines.Load(),
		"viewers":        r.wsHub.Clients(),
		"dropped":        r.wsHub.Dropped(),
		"uptime_seconds": int64(time.Since(r.startedAt).Seconds()),
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
