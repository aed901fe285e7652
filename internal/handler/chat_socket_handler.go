package handler

import (
	"strings"

	"review-rag-be/internal/pkg/logger"
	internalWS "review-rag-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// ChatSocketHandler upgrades /chat/v1/ws/:session_id to a websocket where each
// text frame is a question for that session.
type ChatSocketHandler struct {
	hub      *internalWS.Hub
	answerer internalWS.Answerer
	logger   logger.ILogger
}

func NewChatSocketHandler(hub *internalWS.Hub, answerer internalWS.Answerer, log logger.ILogger) *ChatSocketHandler {
	return &ChatSocketHandler{
		hub:      hub,
		answerer: answerer,
		logger:   log,
	}
}

func (h *ChatSocketHandler) ServeWs(c *fiber.Ctx) error {
	sessionID := strings.TrimSpace(c.Params("session_id"))
	if sessionID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "session_id is required")
	}

	if websocket.IsWebSocketUpgrade(c) {
		return websocket.New(func(conn *websocket.Conn) {
			h.logger.Info("ChatSocket", "Starting WebSocket session", map[string]interface{}{"session_id": sessionID})
			internalWS.ServeWs(h.hub, h.answerer, conn, sessionID)
			h.logger.Info("ChatSocket", "WebSocket session ended", map[string]interface{}{"session_id": sessionID})
		})(c)
	}
	return fiber.ErrUpgradeRequired
}

func (h *ChatSocketHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/chat/v1/ws/:session_id", h.ServeWs)
}
