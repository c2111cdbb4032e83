package realtime

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/nicpaesk/killer-game/internal/model"
)

// Config holds websocket connection settings
type Config struct {
	// Time allowed to write a message to the peer
	WriteWait time.Duration
	// Time allowed to read the next pong from the peer
	PongWait time.Duration
	// Time between pings, must be less than PongWait
	PingPeriod time.Duration
	// Largest inbound message accepted
	MaxMessageSize int64
	// Buffer size for outgoing messages
	SendBufferSize int
}

// DefaultConfig returns default websocket settings
func DefaultConfig() Config {
	return Config{
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		PingPeriod:     30 * time.Second,
		MaxMessageSize: 4096,
		SendBufferSize: 64,
	}
}

// Client is one real-time connection. It can sit in several game rooms
// and hold at most one player identity per game.
type Client struct {
	id          string
	send        chan []byte
	connectedAt time.Time

	closeOnce sync.Once
	done      chan struct{}
}

// NewClient creates a client with its outbound buffer
func NewClient(bufferSize int) *Client {
	if bufferSize <= 0 {
		bufferSize = DefaultConfig().SendBufferSize
	}
	return &Client{
		id:          uuid.NewString(),
		send:        make(chan []byte, bufferSize),
		connectedAt: time.Now(),
		done:        make(chan struct{}),
	}
}

// ID identifies the connection in logs
func (c *Client) ID() string {
	return c.id
}

// Messages exposes the outbound queue
func (c *Client) Messages() <-chan []byte {
	return c.send
}

// Done is closed once the client is shut down
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// enqueue queues an event without blocking. It reports false when the
// buffer is full or the client is closed.
func (c *Client) enqueue(event model.Event) bool {
	data, err := json.Marshal(event)
	if err != nil {
		return false
	}
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// Close stops the client. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// writePump forwards queued events to the socket and keeps it alive with
// pings. It owns all writes to conn.
func (c *Client) writePump(conn *websocket.Conn, cfg Config, logger *slog.Logger) {
	ticker := time.NewTicker(cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			_ = conn.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logger.Debug("ws write failed", slog.String("client_id", c.id), slog.Any("error", err))
				c.Close()
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}

		case <-c.done:
			// Flush what is already queued, then say goodbye
			for {
				select {
				case message := <-c.send:
					_ = conn.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
					if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
						return
					}
				default:
					_ = conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
						time.Now().Add(cfg.WriteWait))
					return
				}
			}
		}
	}
}
