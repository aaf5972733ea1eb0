package server

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Tyrowin/roomchat/internal/rooms"
)

// Hub owns every live connection and runs the single event loop that
// dispatches setup, join, message, typing and disconnect events. Room
// membership lives in a rooms.Registry so it can be read concurrently.
type Hub struct {
	rooms    *rooms.Registry
	lookup   RecipientLookup
	clients  map[string]*Client
	events   chan Event
	register chan *Client
	mutex    sync.RWMutex
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	logger   *slog.Logger
}

// NewHub creates a Hub around registry. lookup may be nil, in which case
// envelopes without a recipient list are dropped.
func NewHub(registry *rooms.Registry, lookup RecipientLookup, logger *slog.Logger) *Hub {
	if registry == nil {
		registry = rooms.NewRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		rooms:    registry,
		lookup:   lookup,
		clients:  make(map[string]*Client),
		events:   make(chan Event, 64),
		register: make(chan *Client),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		logger:   logger.With("component", "hub"),
	}
}

// Rooms returns the registry backing the hub.
func (h *Hub) Rooms() *rooms.Registry {
	return h.rooms
}

// Register hands a new client to the loop, which starts its pumps. It
// reports false if the hub has already shut down.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.ctx.Done():
		return false
	}
}

// Submit queues an event for the loop. It reports false if the hub has shut
// down; the event is then discarded.
func (h *Hub) Submit(ev Event) bool {
	select {
	case h.events <- ev:
		return true
	case <-h.ctx.Done():
		return false
	}
}

// Run starts the hub's main event loop. It returns after Shutdown.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			h.handleRegister(client)

		case ev := <-h.events:
			h.dispatch(ev)
		}
	}
}

func (h *Hub) dispatch(ev Event) {
	if ev.Client == nil {
		h.logger.Warn("dropping event without connection", "event", ev.Kind)
		return
	}
	if ev.Kind != Disconnect && !h.isLive(ev.Client) {
		h.logger.Debug("dropping event from closed connection", "event", ev.Kind, "conn", ev.Client.id)
		return
	}

	switch ev.Kind {
	case Setup:
		h.handleSetup(ev.Client, ev.User)
	case JoinChat:
		h.handleJoinChat(ev.Client, ev.ChatID)
	case NewMessage:
		h.Deliver(ev.Message, ev.Payload)
	case Typing:
		h.RelayTyping(ev.Client.id, ev.ChatID, TypingStart)
	case StopTyping:
		h.RelayTyping(ev.Client.id, ev.ChatID, TypingStop)
	case Disconnect:
		h.removeClient(ev.Client, "disconnected")
	default:
		h.logger.Warn("dropping unknown event", "event", ev.Kind)
	}
}

func (h *Hub) handleRegister(client *Client) {
	if client == nil {
		h.logger.Warn("received nil client registration; skipping")
		return
	}

	h.mutex.Lock()
	client.closed = false
	h.clients[client.id] = client
	clientCount := len(h.clients)
	h.mutex.Unlock()
	h.rooms.Register(client.id)

	h.logger.Info("client registered", "conn", client.id, "addr", client.addr, "clients", clientCount)

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		client.writePump()
	}()
	go func() {
		defer h.wg.Done()
		client.readPump()
	}()
}

func (h *Hub) handleJoinChat(client *Client, chatID string) {
	if h.rooms.Join(rooms.ChatRoom(chatID), client.id) {
		h.logger.Debug("joined chat", "conn", client.id, "chat", chatID)
	}
}

func (h *Hub) isLive(client *Client) bool {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	c, ok := h.clients[client.id]
	return ok && c == client && !client.closed
}

func (h *Hub) client(connID string) *Client {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.clients[connID]
}

// ClientCount returns the number of live connections.
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

func (h *Hub) safeSend(client *Client, message []byte) bool {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("recovered from panic in safeSend", "panic", r)
		}
	}()

	// Hold the lock during the entire send so the channel cannot be closed underneath us.
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if _, exists := h.clients[client.id]; !exists || client.closed {
		return false
	}

	select {
	case client.send <- message:
		return true
	default:
		return false
	}
}

// removeClient unregisters client from the registry and closes its send
// queue, which makes the write pump send a close frame. Safe to call twice.
func (h *Hub) removeClient(client *Client, reason string) {
	h.mutex.Lock()
	current, ok := h.clients[client.id]
	if !ok || current != client {
		h.mutex.Unlock()
		return
	}
	delete(h.clients, client.id)
	client.closed = true
	clientCount := len(h.clients)
	h.mutex.Unlock()

	left := h.rooms.Unregister(client.id)
	close(client.send)
	h.logger.Info("client unregistered", "conn", client.id, "addr", client.addr,
		"reason", reason, "rooms_left", len(left), "clients", clientCount)
}

// removeFailedClients disconnects clients whose send queue was full.
func (h *Hub) removeFailedClients(clientsToRemove []*Client) {
	for _, client := range clientsToRemove {
		h.removeClient(client, "send buffer full")
	}
}

// shutdownClients closes every connection and clears the registry.
func (h *Hub) shutdownClients() {
	h.logger.Info("shutting down all client connections")

	h.mutex.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
		client.closed = true
	}
	h.clients = make(map[string]*Client)
	h.mutex.Unlock()

	for _, client := range clients {
		h.rooms.Unregister(client.id)
		if client.conn == nil {
			continue
		}
		if err := client.conn.Close(); err != nil && !isExpectedCloseError(err) {
			h.logger.Warn("error closing client connection", "conn", client.id, "error", err)
		}
	}

	h.logger.Info("closed client connections", "count", len(clients))
}

// Shutdown stops the loop, closes every connection and waits for the pumps
// to finish or the timeout to elapse.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.logger.Info("initiating hub shutdown")

	h.cancel()
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.logger.Info("hub shutdown completed")
		return nil
	case <-time.After(timeout):
		h.logger.Warn("hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
