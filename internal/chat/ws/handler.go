package ws

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/barterverse-backend/internal/config"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Handler upgrades authenticated HTTP requests to websocket sessions
type Handler struct {
	hub      *Hub
	verifier *TokenVerifier
	upgrader websocket.Upgrader
	cfg      *config.ChatConfig
	logger   *slog.Logger
}

// NewHandler creates the websocket endpoint handler
func NewHandler(hub *Hub, verifier *TokenVerifier, cfg *config.ChatConfig, logger *slog.Logger) *Handler {
	return &Handler{
		hub:      hub,
		verifier: verifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browsers cannot set custom headers on websocket dials, so the
			// handshake is authenticated by token, not origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		cfg:    cfg,
		logger: logger,
	}
}

// Handle authenticates the request, upgrades it and serves the connection
// until it closes
func (h *Handler) Handle(c *gin.Context) {
	identity, err := h.verifier.Verify(extractToken(c))
	if err != nil {
		h.logger.Warn("Websocket handshake rejected", "error", err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or missing token"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the error response
		h.logger.Warn("Websocket upgrade failed", "user_id", identity.UserID, "error", err)
		return
	}

	client := NewClient(conn, *identity, h.cfg, h.logger)
	h.logger.Info("Websocket connected",
		"conn_id", client.ID(),
		"user_id", identity.UserID,
		"username", identity.Username)

	h.hub.Serve(client)

	h.logger.Info("Websocket disconnected",
		"conn_id", client.ID(),
		"user_id", identity.UserID)
}

// extractToken reads the handshake token from the Authorization header or,
// for browser clients, the token query parameter
func extractToken(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); auth != "" {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return c.Query("token")
}
