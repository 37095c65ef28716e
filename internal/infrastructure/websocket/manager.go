package websocket

import (
	"context"
	"log"
	"sync"

	"github.com/gorilla/websocket"
)

// Client represents one authenticated WebSocket connection.
type Client struct {
	UserID string
	Conn   *websocket.Conn
	Send   chan []byte

	mu     sync.Mutex
	closed bool
}

// deliver queues a frame for the connection. Returns false when the
// client is shut down or its buffer is full.
func (c *Client) deliver(message []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- message:
		return true
	default:
		return false
	}
}

// shutdown closes Send exactly once. Every sender goes through deliver,
// which checks the flag under the same lock, so the channel is never
// written after it closes.
func (c *Client) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.Send)
}

// Manager tracks active connections and which chat room each user has
// open. It is the delivery channel for room-list batches, message-stream
// batches and stock alerts.
type Manager struct {
	clients    map[string]*Client
	rooms      map[string]map[string]bool // roomID -> set of userIDs
	Register   chan *Client
	Unregister chan *Client
	mutex      sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		clients:    make(map[string]*Client),
		rooms:      make(map[string]map[string]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
	}
}

// Start runs the manager's registration loop until ctx is cancelled.
func (m *Manager) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case client := <-m.Register:
				m.mutex.Lock()
				if old, ok := m.clients[client.UserID]; ok {
					old.shutdown()
				}
				m.clients[client.UserID] = client
				m.mutex.Unlock()
				log.Printf("Client registered: %s", client.UserID)

			case client := <-m.Unregister:
				// Shut the connection down even when it has already been
				// replaced in the map, so its WritePump unblocks.
				client.shutdown()
				m.mutex.Lock()
				if current, ok := m.clients[client.UserID]; ok && current == client {
					delete(m.clients, client.UserID)
					for _, members := range m.rooms {
						delete(members, client.UserID)
					}
				}
				m.mutex.Unlock()
				log.Printf("Client unregistered: %s", client.UserID)

			case <-ctx.Done():
				return
			}
		}
	}()
}

// JoinChatRoom marks userID as having roomID open.
func (m *Manager) JoinChatRoom(roomID, userID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.rooms[roomID] == nil {
		m.rooms[roomID] = make(map[string]bool)
	}
	m.rooms[roomID][userID] = true
}

func (m *Manager) LeaveChatRoom(roomID, userID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.rooms[roomID], userID)
}

// SendToUser delivers a frame to one user if connected. Slow consumers
// get frames dropped rather than blocking the caller.
func (m *Manager) SendToUser(userID string, message []byte) {
	m.mutex.RLock()
	client, ok := m.clients[userID]
	m.mutex.RUnlock()

	if !ok {
		return
	}
	if !client.deliver(message) {
		log.Printf("Dropping frame for client %s", userID)
	}
}

// SendToChatRoom delivers a frame to every participant who has the room
// open, except excludeUserID.
func (m *Manager) SendToChatRoom(roomID string, message []byte, excludeUserID string) {
	m.mutex.RLock()
	var targets []string
	for userID := range m.rooms[roomID] {
		if userID != excludeUserID {
			targets = append(targets, userID)
		}
	}
	m.mutex.RUnlock()

	for _, userID := range targets {
		m.SendToUser(userID, message)
	}
}

// ReadPump reads frames from the connection and hands them to onMessage
// until the peer goes away.
func (c *Client) ReadPump(m *Manager, onMessage func(message []byte)) {
	defer func() {
		m.Unregister <- c
		c.Conn.Close()
	}()

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("websocket read error for %s: %v", c.UserID, err)
			}
			break
		}
		onMessage(message)
	}
}

// WritePump drains the Send channel into the connection.
func (c *Client) WritePump() {
	defer c.Conn.Close()

	for {
		message, ok := <-c.Send
		if !ok {
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}

		if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
			log.Printf("websocket write error for %s: %v", c.UserID, err)
			return
		}
	}
}
