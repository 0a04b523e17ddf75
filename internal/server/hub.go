package server

import (
	"context"
	"sync"
	"time"

	"github.com/Tyrowin/talkroom/internal/logging"
	"github.com/google/uuid"
)

// HubOptions configures a Hub. Zero values select time.Now, time.Local,
// uuid.NewString and a discarding logger.
type HubOptions struct {
	Logger   logging.Logger
	Now      func() time.Time
	Location *time.Location
	NewID    func() string
}

// Hub manages all WebSocket client connections and handles event broadcasting.
// It is the explicit registry of connected clients; the Run goroutine
// serializes registration, unregistration and broadcasts.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan BroadcastMessage
	register   chan *Client
	unregister chan *Client
	mutex      sync.RWMutex
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}

	log   logging.Logger
	now   func() time.Time
	loc   *time.Location
	newID func() string
}

// NewHub creates a Hub ready to be started with Run.
func NewHub(opts HubOptions) *Hub {
	ctx, cancel := context.WithCancel(context.Background())

	h := &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan BroadcastMessage),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
		log:        opts.Logger,
		now:        opts.Now,
		loc:        opts.Location,
		newID:      opts.NewID,
	}
	if h.log == nil {
		h.log = logging.Discard()
	}
	h.log = h.log.With("component", "hub")
	if h.now == nil {
		h.now = time.Now
	}
	if h.loc == nil {
		h.loc = time.Local
	}
	if h.newID == nil {
		h.newID = uuid.NewString
	}
	return h
}

// GetRegisterChan returns the channel used for registering new clients to the hub.
func (h *Hub) GetRegisterChan() chan<- *Client {
	return h.register
}

// GetUnregisterChan returns the channel used for unregistering clients from the hub.
func (h *Hub) GetUnregisterChan() chan<- *Client {
	return h.unregister
}

// GetBroadcastChan returns the channel used for broadcasting messages to clients.
func (h *Hub) GetBroadcastChan() chan<- BroadcastMessage {
	return h.broadcast
}

// Register hands client to the hub, which starts its pumps. It reports false
// when the hub is already shut down.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.ctx.Done():
		return false
	}
}

// Publish queues msg for broadcast. It reports false when the hub is shut down.
func (h *Hub) Publish(msg BroadcastMessage) bool {
	select {
	case h.broadcast <- msg:
		return true
	case <-h.ctx.Done():
		return false
	}
}

func (h *Hub) leave(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

func (h *Hub) safeSend(client *Client, message []byte) bool {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error(h.ctx, "recovered from panic in safeSend", "panic", r)
		}
	}()

	// Hold the lock during the entire send so the channel cannot be closed underneath.
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	_, exists := h.clients[client]
	if !exists || client.closed {
		return false
	}

	select {
	case client.send <- message:
		return true
	default:
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
			if client == nil {
				h.log.Warn(h.ctx, "received nil client registration; skipping")
				continue
			}
			h.addClient(client)

		case client := <-h.unregister:
			h.removeClient(client)

		case msg := <-h.broadcast:
			h.handleBroadcast(msg)
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mutex.Lock()
	client.closed = false
	h.clients[client] = true
	clientCount := len(h.clients)
	h.mutex.Unlock()
	h.log.Info(h.ctx, "client registered", "addr", client.addr, "user_id", client.userID(), "clients", clientCount)

	if client.conn == nil {
		return
	}

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

func (h *Hub) removeClient(client *Client) {
	h.mutex.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mutex.Unlock()
		return
	}
	delete(h.clients, client)
	client.closed = true
	clientCount := len(h.clients)
	h.mutex.Unlock()

	// Close the channel after releasing the lock
	close(client.send)
	h.log.Info(h.ctx, "client unregistered", "addr", client.addr, "clients", clientCount)
}

// handleBroadcast delivers msg to every client, skipping the sender when asked.
func (h *Hub) handleBroadcast(msg BroadcastMessage) {
	clients := h.getClientSnapshot()

	var failed []*Client
	delivered := 0
	for _, client := range clients {
		if msg.SkipSender && client == msg.Sender {
			continue
		}
		if !h.safeSend(client, msg.Payload) {
			failed = append(failed, client)
			continue
		}
		delivered++
	}

	h.log.Debug(h.ctx, "broadcast delivered", "clients", delivered, "skip_sender", msg.SkipSender)
	h.removeFailedClients(failed)
}

// getClientSnapshot returns a thread-safe snapshot of all current clients
func (h *Hub) getClientSnapshot() []*Client {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	return clients
}

// removeFailedClients drops clients whose send buffer was full. They miss the
// event; there is no retry.
func (h *Hub) removeFailedClients(clientsToRemove []*Client) {
	if len(clientsToRemove) == 0 {
		return
	}

	h.mutex.Lock()
	var channelsToClose []chan []byte
	for _, client := range clientsToRemove {
		if _, exists := h.clients[client]; exists {
			delete(h.clients, client)
			client.closed = true
			channelsToClose = append(channelsToClose, client.send)
			h.log.Warn(h.ctx, "client removed due to full send buffer", "addr", client.addr)
		}
	}
	h.mutex.Unlock()

	for _, ch := range channelsToClose {
		close(ch)
	}
}

// shutdownClients unregisters every client and closes its connection so both
// pumps return.
func (h *Hub) shutdownClients() {
	h.mutex.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		delete(h.clients, client)
		client.closed = true
		clients = append(clients, client)
	}
	h.mutex.Unlock()

	for _, client := range clients {
		close(client.send)
		if client.conn != nil {
			if err := client.conn.Close(); err != nil && !isExpectedCloseError(err) {
				h.log.Warn(h.ctx, "error closing client connection", "addr", client.addr, "err", err)
			}
		}
	}

	h.log.Info(h.ctx, "closed client connections", "count", len(clients))
}

// Shutdown stops the hub and waits for all client goroutines to complete,
// or until timeout.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.log.Info(context.Background(), "initiating hub shutdown")

	h.cancel()
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.log.Info(context.Background(), "hub shutdown completed")
		return nil
	case <-time.After(timeout):
		h.log.Warn(context.Background(), "hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
