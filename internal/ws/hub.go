// Package ws provides a lightweight WebSocket pub/sub hub for relaying a
// tether session to remote viewers. The session broadcasts JSON events
// through the hub and every connected viewer receives them in real time.
// The hub also handles ping/pong keepalives so stale connections get
// cleaned up automatically.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Hub manages viewer connections and fans out broadcast messages to all of
// them. It is safe for concurrent use; register, unregister, and broadcast
// all go through channels. Messages sent with Retain are replayed to every
// viewer that connects later, so a new viewer learns the current state
// without waiting for the next transition.
type Hub struct {
	clients    map[*websocket.Conn]struct{}
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	broadcast  chan message
	upgrader   websocket.Upgrader

	retained []byte
	count    atomic.Int64
	dropped  atomic.Int64
}

type message struct {
	data   []byte
	retain bool
}

// NewHub allocates a hub with buffered channels.
// Call Run in a goroutine to start the event loop.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]struct{}),
		register:   make(chan *websocket.Conn, 16),
		unregister: make(chan *websocket.Conn, 16),
		broadcast:  make(chan message, 1024),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Run processes registrations, unregistrations, broadcasts, and keepalive
// pings in a single select loop. It closes all viewers when ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	ping := time.NewTicker(20 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				_ = c.WriteControl(
					websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "tether ended"),
					time.Now().Add(time.Second),
				)
				_ = c.Close()
			}
			h.count.Store(0)
			return

		case c := <-h.register:
			if h.retained != nil {
				_ = c.SetWriteDeadline(time.Now().Add(3 * time.Second))
				if err := c.WriteMessage(websocket.TextMessage, h.retained); err != nil {
					_ = c.Close()
					continue
				}
			}
			h.clients[c] = struct{}{}
			h.count.Store(int64(len(h.clients)))

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				_ = c.Close()
				h.count.Store(int64(len(h.clients)))
			}

		case msg := <-h.broadcast:
			if msg.retain {
				h.retained = msg.data
			}
			for c := range h.clients {
				_ = c.SetWriteDeadline(time.Now().Add(3 * time.Second))
				if err := c.WriteMessage(websocket.TextMessage, msg.data); err != nil {
					delete(h.clients, c)
					_ = c.Close()
				}
			}
			h.count.Store(int64(len(h.clients)))

		case <-ping.C:
			for c := range h.clients {
				_ = c.SetWriteDeadline(time.Now().Add(2 * time.Second))
				if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
					delete(h.clients, c)
					_ = c.Close()
				}
			}
			h.count.Store(int64(len(h.clients)))
		}
	}
}

// Handler returns an http.Handler that upgrades incoming requests to
// WebSocket connections and registers them with the hub.
func (h *Hub) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			http.Error(w, "websocket upgrade failed", http.StatusBadRequest)
			return
		}
		h.register <- conn

		go func() {
			defer func() { h.unregister <- conn }()
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			conn.SetPongHandler(func(string) error {
				_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
				return nil
			})

			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	})
}

// BroadcastJSON marshals v to JSON and queues it for delivery to all
// connected viewers. If the broadcast channel is full the message is
// dropped and counted so a slow viewer never stalls the tether.
func (h *Hub) BroadcastJSON(v any) {
	h.send(v, false)
}

// RetainJSON broadcasts v and keeps it for viewers that connect later.
func (h *Hub) RetainJSON(v any) {
	h.send(v, true)
}

func (h *Hub) send(v any, retain bool) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case h.broadcast <- message{data: b, retain: retain}:
	default:
		h.dropped.Add(1)
	}
}

// Clients returns the number of connected viewers.
func (h *Hub) Clients() int64 {
	return h.count.Load()
}

// Dropped returns how many broadcasts were discarded because the queue was
// full.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}
