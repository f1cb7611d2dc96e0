// internal/broker/broker.go

// Package broker tracks the live connections per room and fans broadcast
// envelopes out to them. Sends never block game logic: each connection has
// a bounded outbound queue and a dedicated writer goroutine; a connection
// whose queue overflows is dropped and must reconnect.
package broker

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	// SendQueueSize bounds the per-connection outbound queue.
	SendQueueSize = 32
	writeTimeout  = 3 * time.Second
)

// Endpoint is the writable side of one client connection. *websocket.Conn
// satisfies it; tests use fakes.
type Endpoint interface {
	Write(ctx context.Context, typ websocket.MessageType, p []byte) error
	Close(code websocket.StatusCode, reason string) error
}

// Client is one registered connection.
type Client struct {
	PlayerID uuid.UUID

	endpoint Endpoint
	send     chan []byte
	closed   chan struct{}
	once     sync.Once
}

// drop closes the client exactly once.
func (c *Client) drop(code websocket.StatusCode, reason string) {
	c.once.Do(func() {
		close(c.closed)
		c.endpoint.Close(code, reason)
	})
}

// Done is closed once the client has been dropped.
func (c *Client) Done() <-chan struct{} { return c.closed }

// Broker is the per-room connection registry.
type Broker struct {
	mu     sync.Mutex
	rooms  map[uuid.UUID]map[*Client]struct{}
	Logger *logrus.Logger
}

func New(logger *logrus.Logger) *Broker {
	return &Broker{
		rooms:  make(map[uuid.UUID]map[*Client]struct{}),
		Logger: logger,
	}
}

// Register adds a connection to the room and starts its writer.
func (b *Broker) Register(roomID, playerID uuid.UUID, ep Endpoint) *Client {
	c := &Client{
		PlayerID: playerID,
		endpoint: ep,
		send:     make(chan []byte, SendQueueSize),
		closed:   make(chan struct{}),
	}
	b.mu.Lock()
	conns, ok := b.rooms[roomID]
	if !ok {
		conns = make(map[*Client]struct{})
		b.rooms[roomID] = conns
	}
	conns[c] = struct{}{}
	b.mu.Unlock()

	go b.writeLoop(roomID, c)
	return c
}

// Unregister removes the connection and stops its writer.
func (b *Broker) Unregister(roomID uuid.UUID, c *Client) {
	b.mu.Lock()
	if conns, ok := b.rooms[roomID]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(b.rooms, roomID)
		}
	}
	b.mu.Unlock()
	c.drop(websocket.StatusNormalClosure, "unregistered")
}

// Broadcast marshals the envelope once and enqueues it on every connection
// in the room. Fire-and-forget: a full queue means the consumer is too
// slow to keep a consistent view, so it is dropped and must reconnect.
func (b *Broker) Broadcast(roomID uuid.UUID, envelope interface{}) {
	data, err := json.Marshal(envelope)
	if err != nil {
		if b.Logger != nil {
			b.Logger.WithError(err).Error("failed to marshal broadcast envelope")
		}
		return
	}
	b.mu.Lock()
	clients := make([]*Client, 0, len(b.rooms[roomID]))
	for c := range b.rooms[roomID] {
		clients = append(clients, c)
	}
	b.mu.Unlock()

	for _, c := range clients {
		select {
		case c.send <- data:
		default:
			if b.Logger != nil {
				b.Logger.WithFields(logrus.Fields{
					"room":   roomID,
					"player": c.PlayerID,
				}).Warn("send queue overflow, dropping connection")
			}
			b.dropClient(roomID, c, websocket.StatusPolicyViolation, "send queue overflow")
		}
	}
}

// Send enqueues a message for a single connection, with the same overflow
// policy as Broadcast.
func (b *Broker) Send(roomID uuid.UUID, c *Client, message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		if b.Logger != nil {
			b.Logger.WithError(err).Error("failed to marshal message")
		}
		return
	}
	select {
	case c.send <- data:
	default:
		b.dropClient(roomID, c, websocket.StatusPolicyViolation, "send queue overflow")
	}
}

// RoomSize reports the number of live connections in the room.
func (b *Broker) RoomSize(roomID uuid.UUID) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.rooms[roomID])
}

func (b *Broker) dropClient(roomID uuid.UUID, c *Client, code websocket.StatusCode, reason string) {
	b.mu.Lock()
	if conns, ok := b.rooms[roomID]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(b.rooms, roomID)
		}
	}
	b.mu.Unlock()
	c.drop(code, reason)
}

// writeLoop drains the send queue onto the wire. Write errors drop the
// connection; the read side notices via Done and cleans up.
func (b *Broker) writeLoop(roomID uuid.UUID, c *Client) {
	for {
		select {
		case data := <-c.send:
			ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
			err := c.endpoint.Write(ctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				if b.Logger != nil {
					b.Logger.WithFields(logrus.Fields{
						"room":   roomID,
						"player": c.PlayerID,
					}).WithError(err).Warn("write failed, dropping connection")
				}
				b.dropClient(roomID, c, websocket.StatusInternalError, "write failed")
				return
			}
		case <-c.closed:
			return
		}
	}
}
