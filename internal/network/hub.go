// Package network is the gorilla/websocket transport. The Hub implements
// comms.Channel for the engine: per-actor delivery, group delivery,
// broadcast and the inbound-message subscription the relay stages use.
package network

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/wolfden-games/wolfden-server/internal/comms"
	"github.com/wolfden-games/wolfden-server/internal/events"
	"github.com/wolfden-games/wolfden-server/internal/platform/logger"
	"github.com/wolfden-games/wolfden-server/internal/platform/metrics"
)

// backlogSize bounds how many unclaimed inbound messages are kept for the
// next subscriber.
const backlogSize = 64

// Frame is the outbound JSON envelope.
type Frame struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
	Data any    `json:"data,omitempty"`
}

// waiter is one pending NextMessage call.
type waiter struct {
	match func(comms.Inbound) bool
	ch    chan comms.Inbound
}

// Hub maintains the set of active clients and routes messages between the
// engine and the websocket connections.
type Hub struct {
	clients    map[*Client]bool
	byActor    map[string]*Client
	register   chan *Client
	unregister chan *Client

	mu      sync.Mutex
	waiters []*waiter
	backlog []comms.Inbound

	logger *logger.Logger
}

// NewHub initializes a new WebSocket Hub.
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		byActor:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     log,
	}
}

// Run starts the Hub's main loop to handle client connections.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("WebSocket Hub shutting down.")
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			if client.actorID != "" {
				h.byActor[client.actorID] = client
			}
			h.mu.Unlock()
			metrics.Get().RecordWSConnection(1)
			h.logger.Info("WebSocket client connected: " + client.actorID)
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				if client.actorID != "" && h.byActor[client.actorID] == client {
					delete(h.byActor, client.actorID)
				}
				close(client.send)
			}
			h.mu.Unlock()
			metrics.Get().RecordWSConnection(-1)
			h.logger.Info("WebSocket client disconnected: " + client.actorID)
		}
	}
}

// SendToActor delivers a private message to one actor's connection.
func (h *Hub) SendToActor(actorID, message string) error {
	h.mu.Lock()
	client, ok := h.byActor[actorID]
	h.mu.Unlock()
	if !ok {
		return fmt.Errorf("actor %s is not connected", actorID)
	}
	h.push(client, Frame{Type: "message", Text: message})
	return nil
}

// SendToGroup delivers a message to several actors. Unreachable members are
// skipped; the engine treats them as timed out.
func (h *Hub) SendToGroup(actorIDs []string, message string) error {
	for _, id := range actorIDs {
		_ = h.SendToActor(id, message)
	}
	return nil
}

// Broadcast delivers a message to every connection, observers included.
func (h *Hub) Broadcast(message string) error {
	h.mu.Lock()
	targets := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.Unlock()
	for _, c := range targets {
		h.push(c, Frame{Type: "broadcast", Text: message})
	}
	return nil
}

// NextMessage blocks until an inbound message matching the predicate
// arrives or the context is done. Recent unclaimed messages are replayed
// first so a subscriber registered between two inbound frames misses
// nothing.
func (h *Hub) NextMessage(ctx context.Context, match func(comms.Inbound) bool) (comms.Inbound, error) {
	h.mu.Lock()
	for i, in := range h.backlog {
		if match(in) {
			h.backlog = append(h.backlog[:i], h.backlog[i+1:]...)
			h.mu.Unlock()
			return in, nil
		}
	}
	w := &waiter{match: match, ch: make(chan comms.Inbound, 1)}
	h.waiters = append(h.waiters, w)
	h.mu.Unlock()

	select {
	case <-ctx.Done():
		h.dropWaiter(w)
		return comms.Inbound{}, ctx.Err()
	case in := <-w.ch:
		return in, nil
	}
}

func (h *Hub) dropWaiter(w *waiter) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, x := range h.waiters {
		if x == w {
			h.waiters = append(h.waiters[:i], h.waiters[i+1:]...)
			return
		}
	}
}

// dispatch hands an inbound message to the first matching subscriber, or
// parks it in the backlog.
func (h *Hub) dispatch(in comms.Inbound) {
	metrics.Get().RecordWSMessage(true)
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, w := range h.waiters {
		if w.match(in) {
			h.waiters = append(h.waiters[:i], h.waiters[i+1:]...)
			w.ch <- in
			return
		}
	}
	h.backlog = append(h.backlog, in)
	if len(h.backlog) > backlogSize {
		h.backlog = h.backlog[len(h.backlog)-backlogSize:]
	}
}

func (h *Hub) push(c *Client, f Frame) {
	payload, err := json.Marshal(f)
	if err != nil {
		h.logger.Error("Failed to serialize frame: " + err.Error())
		return
	}
	select {
	case c.send <- payload:
		metrics.Get().RecordWSMessage(false)
	default:
		metrics.Get().RecordWSError()
	}
}

// StartEventPoller spawns a goroutine that polls the EventLog and pushes
// public events to every connection, so observers follow the game without
// the engine knowing about them.
func (h *Hub) StartEventPoller(ctx context.Context, eventLog *events.EventLog) {
	go func() {
		pollInterval := time.NewTicker(200 * time.Millisecond)
		defer pollInterval.Stop()

		lastProcessed := 0

		for {
			select {
			case <-ctx.Done():
				return
			case <-pollInterval.C:
				all := eventLog.Replay()
				if len(all) <= lastProcessed {
					continue
				}
				for _, event := range all[lastProcessed:] {
					if !event.Public {
						continue
					}
					h.mu.Lock()
					targets := make([]*Client, 0, len(h.clients))
					for c := range h.clients {
						targets = append(targets, c)
					}
					h.mu.Unlock()
					for _, c := range targets {
						h.push(c, Frame{Type: "event", Data: event})
					}
				}
				lastProcessed = len(all)
			}
		}
	}()
}
