package websocket

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"chatrelay/internal/auth"
	"chatrelay/internal/heartbeat"
	"chatrelay/internal/presence"
	"chatrelay/internal/relay"
	"chatrelay/pkg/types"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Origin checking is a deployment concern; the reverse proxy in
		// front of this service enforces it.
		return true
	},
	HandshakeTimeout: 10 * time.Second,
}

// Handler upgrades connections, runs the handshake, and owns the
// per-connection read loop.
type Handler struct {
	registry   *Registry
	tokens     *auth.TokenService
	supervisor *heartbeat.Supervisor
	relay      *relay.Relay
	presence   *presence.Broadcaster
	buffer     int
	log        *slog.Logger
}

func NewHandler(registry *Registry, tokens *auth.TokenService, supervisor *heartbeat.Supervisor,
	msgRelay *relay.Relay, broadcaster *presence.Broadcaster, buffer int, log *slog.Logger) *Handler {
	return &Handler{
		registry:   registry,
		tokens:     tokens,
		supervisor: supervisor,
		relay:      msgRelay,
		presence:   broadcaster,
		buffer:     buffer,
		log:        log,
	}
}

// HandleWebSocket admits a new duplex connection: handshake, registration,
// heartbeat, presence publish, then the read loop. Handshake verification
// failure is never fatal; the connection proceeds anonymous.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	claims, authErr := h.tokens.FromRequest(r)
	if authErr != nil && !errors.Is(authErr, auth.ErrNoToken) {
		h.log.Debug("handshake token rejected, admitting as anonymous",
			"remote", r.RemoteAddr, "err", authErr)
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	conn.SetReadLimit(2 * types.MaxAttachmentBytes)

	wsConn := NewConnection(conn, h.buffer)
	if authErr == nil {
		if err := wsConn.Bind(claims.UserID, claims.Username); err != nil {
			h.log.Error("failed to bind identity", "connection", wsConn.ID(), "err", err)
			_ = wsConn.Close()
			return
		}
	}

	if err := h.registry.Register(wsConn); err != nil {
		h.log.Error("failed to register connection", "connection", wsConn.ID(), "err", err)
		_ = wsConn.Close()
		return
	}
	h.presence.Publish()

	wsConn.OnPong(func() {
		h.supervisor.HandleResponse(wsConn.ID())
	})
	h.supervisor.Watch(wsConn)

	h.log.Info("connection admitted",
		"connection", wsConn.ID(), "user", wsConn.UserID(), "authenticated", wsConn.Authenticated())

	go h.readLoop(wsConn)
}

// readLoop pumps inbound payloads into the relay until the socket closes.
// Pong control frames are dispatched to the supervisor by gorilla while this
// loop is blocked in ReadMessage.
func (h *Handler) readLoop(conn *Connection) {
	defer func() {
		h.supervisor.Forget(conn.ID())
		if h.registry.Remove(conn) {
			h.presence.Publish()
		}
		_ = conn.Close()
		h.log.Info("connection closed", "connection", conn.ID(), "user", conn.UserID())
	}()

	for {
		messageType, data, err := conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("read error", "connection", conn.ID(), "err", err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		if err := h.relay.HandleInbound(context.Background(), conn, data); err != nil {
			if errors.Is(err, relay.ErrMalformedPayload) {
				// Only the offending connection is dropped.
				h.log.Warn("dropping connection after malformed payload",
					"connection", conn.ID())
				return
			}
			h.log.Error("relay failed", "connection", conn.ID(), "err", err)
		}
	}
}
