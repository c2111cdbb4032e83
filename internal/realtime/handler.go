package realtime

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Handler upgrades HTTP requests to websocket connections and feeds
// their messages to the dispatcher
type Handler struct {
	registry   *Registry
	dispatcher *Dispatcher
	upgrader   websocket.Upgrader
	cfg        Config
	logger     *slog.Logger
}

// NewHandler creates a new websocket Handler
func NewHandler(registry *Registry, dispatcher *Dispatcher, cfg Config, logger *slog.Logger) *Handler {
	def := DefaultConfig()
	if cfg.WriteWait == 0 {
		cfg.WriteWait = def.WriteWait
	}
	if cfg.PongWait == 0 {
		cfg.PongWait = def.PongWait
	}
	if cfg.PingPeriod == 0 || cfg.PingPeriod >= cfg.PongWait {
		cfg.PingPeriod = cfg.PongWait * 9 / 10
	}
	if cfg.MaxMessageSize == 0 {
		cfg.MaxMessageSize = def.MaxMessageSize
	}
	if cfg.SendBufferSize == 0 {
		cfg.SendBufferSize = def.SendBufferSize
	}
	return &Handler{
		registry:   registry,
		dispatcher: dispatcher,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Players join from phones via a shared link or QR code
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		cfg:    cfg,
		logger: logger.With(slog.String("component", "ws")),
	}
}

// ServeHTTP handles GET /ws
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote an HTTP error
		h.logger.Warn("ws upgrade failed", slog.String("error", err.Error()))
		return
	}

	client := NewClient(h.cfg.SendBufferSize)
	h.logger.Info("client connected",
		slog.String("client_id", client.id),
		slog.String("remote_addr", r.RemoteAddr),
	)

	go client.writePump(conn, h.cfg, h.logger)
	h.readPump(r.Context(), conn, client)
}

// readPump handles inbound messages one at a time until the peer goes away
func (h *Handler) readPump(ctx context.Context, conn *websocket.Conn, client *Client) {
	defer func() {
		h.registry.Leave(client)
		client.Close()
	}()

	conn.SetReadLimit(h.cfg.MaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("ws read failed",
					slog.String("client_id", client.id),
					slog.String("error", err.Error()))
			}
			return
		}
		select {
		case <-client.Done():
			return
		default:
		}
		h.dispatcher.HandleMessage(ctx, client, data)
	}
}
