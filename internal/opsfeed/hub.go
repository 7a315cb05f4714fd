// Package opsfeed is the ops live feed: a gorilla/websocket broadcast hub
// that pushes raid-detection, lockdown-activation, and delivery-failure
// events to connected admin dashboards in real time.
//
// Grounded on the teacher's internal/websocket hub/spoke pattern (a
// registration channel, an unregister channel, and a fan-out broadcast
// channel serviced by one goroutine owning the client set) — generalized
// here from chat-message fan-out to trust-plane operational events, with
// per-client send buffers so one slow dashboard can't stall the hub.
package opsfeed

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// EventKind identifies the category of an ops feed message.
type EventKind string

const (
	EventRaidDetected      EventKind = "raid.detected"
	EventLockdownActivated EventKind = "lockdown.activated"
	EventLockdownLifted    EventKind = "lockdown.lifted"
	EventDeliveryFailed    EventKind = "delivery.failed"
	EventSpamFlagged       EventKind = "spam.flagged"
)

// Message is one ops feed broadcast frame.
type Message struct {
	Kind      EventKind   `json:"kind"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// client wraps one connected dashboard's socket and outbound buffer.
type client struct {
	conn *websocket.Conn
	send chan Message
}

// Hub owns the set of connected admin dashboards and fans out every
// Publish call to all of them. Exactly one goroutine (started by Run)
// mutates the client set, so Register/Unregister/Publish are channel
// operations rather than lock-guarded map writes.
type Hub struct {
	register   chan *client
	unregister chan *client
	broadcast  chan Message
	clients    map[*client]bool

	sendBuffer int
	closeOnce  sync.Once
	done       chan struct{}
}

// NewHub creates a Hub with the given per-client send buffer depth. Call
// Run in its own goroutine before accepting connections.
func NewHub(sendBuffer int) *Hub {
	if sendBuffer <= 0 {
		sendBuffer = 16
	}
	return &Hub{
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan Message, 64),
		clients:    make(map[*client]bool),
		sendBuffer: sendBuffer,
		done:       make(chan struct{}),
	}
}

// Run services the hub's channels until Close is called. It owns the
// client map exclusively — no other goroutine touches it.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.clients[c] = true
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// Slow consumer: drop it rather than block the hub.
					delete(h.clients, c)
					close(c.send)
				}
			}
		case <-h.done:
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			return
		}
	}
}

// Close stops Run and disconnects every client.
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// Publish broadcasts msg to every connected dashboard. Safe to call
// concurrently; never blocks on a slow client.
func (h *Hub) Publish(kind EventKind, data interface{}) {
	select {
	case h.broadcast <- Message{Kind: kind, Timestamp: time.Now(), Data: data}:
	case <-h.done:
	}
}

// Serve registers conn with the hub and blocks, writing every broadcast
// message to it until the connection closes or the hub shuts down. Call
// this from an http.Handler after upgrading the connection.
func (h *Hub) Serve(conn *websocket.Conn) {
	c := &client{conn: conn, send: make(chan Message, h.sendBuffer)}

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		conn.Close()
	}()

	for msg := range c.send {
		payload, err := json.Marshal(msg)
		if err != nil {
			slog.Error("opsfeed: marshal message", "error", err)
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}
